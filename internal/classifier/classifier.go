package classifier

import (
	"sort"
	"strconv"

	"github.com/bengfarrell/thelearningtablet/internal/packet"
	"github.com/bengfarrell/thelearningtablet/internal/protocol"
	"github.com/bengfarrell/thelearningtablet/internal/stats"
)

// Options は分類アルゴリズムの調整パラメータ
type Options struct {
	// ReportIDIndex はレポートIDが入るバイト位置。この位置は候補から常に除外される
	ReportIDIndex int
	// BipolarGap はバイポーラ判定で2クラスタを「互いに素」とみなす最小の値ギャップ
	BipolarGap int
	// CodeMaxCardinality は離散コードとみなす観測値種数の上限
	CodeMaxCardinality int
	// MaxButtons はビットフラグで報告するボタン数の上限（8または16）
	MaxButtons int
	// MultiByteGroupSize はリトルエンディアン合成するバイト数（通常2）
	MultiByteGroupSize int
}

// DefaultOptions は既定の調整パラメータを返す
func DefaultOptions() Options {
	return Options{
		ReportIDIndex:      0,
		BipolarGap:         16,
		CodeMaxCardinality: 8,
		MaxButtons:         8,
		MultiByteGroupSize: 2,
	}
}

// Classifier はキャプチャウィンドウからチャンネルごとのマッピングを推定する構造体
// 各分類は1つのウィンドウに対する同期バッチ処理で、同じウィンドウからは常に同じ結果が得られる
type Classifier struct {
	opts Options
}

// New は指定パラメータの分類器を作成する
func New(opts Options) *Classifier {
	if opts.MultiByteGroupSize < 2 {
		opts.MultiByteGroupSize = 2
	}
	if opts.MaxButtons <= 0 {
		opts.MaxButtons = 8
	}
	return &Classifier{opts: opts}
}

// candidates は占有済みでもレポートID位置でもないバイト位置を昇順で返す
func (c *Classifier) candidates(win packet.Window, claimed map[int]string) []int {
	length := win.ByteLength()
	idxs := make([]int, 0, length)
	for i := 0; i < length; i++ {
		if i == c.opts.ReportIDIndex {
			continue
		}
		if _, taken := claimed[i]; taken {
			continue
		}
		idxs = append(idxs, i)
	}
	return idxs
}

// Range は単一バイト線形チャンネル（筆圧・単独チルトバイトなど）を分類する
// 未占有バイトのうち分散最大のものを選ぶ。同値の場合はバイト位置の小さい方を採用する
func (c *Classifier) Range(channel string, win packet.Window, claimed map[int]string) (*protocol.RangeMapping, error) {
	best := -1
	bestVar := 0.0
	var bestStats stats.ByteStats

	for _, i := range c.candidates(win, claimed) {
		s := stats.ComputeColumn(win.Column(i))
		if s.Variance > bestVar {
			best = i
			bestVar = s.Variance
			bestStats = s
		}
	}
	if best < 0 {
		return nil, &AmbiguousError{Channel: channel, Reason: "候補バイトの分散がすべてゼロです"}
	}
	return &protocol.RangeMapping{ByteIndex: best, Min: bestStats.Min, Max: bestStats.Max}, nil
}

// MultiByteRange は2バイト以上の広域線形チャンネル（X/Yなど）を分類する
// 隣接する未占有バイトの組をリトルエンディアン合成し、合成値の分散が最大の組を選ぶ
// 同値の場合は下位バイト位置の小さい方を採用する
func (c *Classifier) MultiByteRange(channel string, win packet.Window, claimed map[int]string) (*protocol.MultiByteRangeMapping, error) {
	free := map[int]bool{}
	for _, i := range c.candidates(win, claimed) {
		free[i] = true
	}

	size := c.opts.MultiByteGroupSize
	bestLow := -1
	bestVar := 0.0
	var bestIdx []int

	length := win.ByteLength()
	for low := 0; low+size <= length; low++ {
		group := make([]int, 0, size)
		ok := true
		for o := 0; o < size; o++ {
			if !free[low+o] {
				ok = false
				break
			}
			group = append(group, low+o)
		}
		if !ok {
			continue
		}
		v := stats.CombinedVariance(win, group)
		if v > bestVar {
			bestLow = low
			bestVar = v
			bestIdx = group
		}
	}
	if bestLow < 0 {
		return nil, &AmbiguousError{Channel: channel, Reason: "合成分散がゼロでない隣接バイト組がありません"}
	}

	col := win.CombinedColumn(bestIdx)
	s := stats.ComputeColumn(col)
	return &protocol.MultiByteRangeMapping{ByteIndex: bestIdx, Min: s.Min, Max: s.Max}, nil
}

// BipolarRange は符号付きチャンネル（チルト）を分類する
// 観測値の分布がギャップを挟んで2つの互いに素なクラスタに分かれるバイトを探す
// 複数候補がある場合は分散最大のものを選ぶ。上側クラスタが正、下側クラスタが負になる
func (c *Classifier) BipolarRange(channel string, win packet.Window, claimed map[int]string) (*protocol.BipolarRangeMapping, error) {
	best := -1
	bestVar := 0.0
	var bestSplit bipolarSplit

	for _, i := range c.candidates(win, claimed) {
		values := distinctSorted(win.Column(i))
		split, found := splitClusters(values, c.opts.BipolarGap)
		if !found {
			continue
		}
		v := stats.ComputeColumn(win.Column(i)).Variance
		if v > bestVar {
			best = i
			bestVar = v
			bestSplit = split
		}
	}
	if best < 0 {
		return nil, &AmbiguousError{Channel: channel, Reason: "ギャップで分かれる2クラスタを持つバイトがありません"}
	}
	return &protocol.BipolarRangeMapping{
		ByteIndex:   best,
		PositiveMin: bestSplit.upperMin,
		PositiveMax: bestSplit.upperMax,
		NegativeMin: bestSplit.lowerMin,
		NegativeMax: bestSplit.lowerMax,
	}, nil
}

// BitFlags はタブレットボタンのようなビットフラグバイトを分類する
// 各ビットが互いに独立してトグルするバイトを探す。2つのビットが常に同時に変化する場合は
// 固定の離散コードとみなして候補から外す。トグルしたビット数が最も多いバイトを選ぶ
func (c *Classifier) BitFlags(channel string, win packet.Window, claimed map[int]string) (*protocol.BitFlagsMapping, error) {
	best := -1
	bestCount := 0

	for _, i := range c.candidates(win, claimed) {
		toggled := toggledBits(win, i)
		if len(toggled) == 0 {
			continue
		}
		if !bitsIndependent(win, i, toggled) {
			continue
		}
		if len(toggled) > bestCount {
			best = i
			bestCount = len(toggled)
		}
	}
	if best < 0 {
		return nil, &AmbiguousError{Channel: channel, Reason: "独立してトグルするビットを持つバイトがありません"}
	}
	if bestCount > c.opts.MaxButtons {
		bestCount = c.opts.MaxButtons
	}
	return &protocol.BitFlagsMapping{ByteIndex: best, ButtonCount: bestCount}, nil
}

// Code は離散コードチャンネル（ステータス/モードバイト）を分類する
// 観測値の種数が閾値未満で、滑らかな数値進行を成さないバイトを列挙型とみなす
// 観測された各値は初出順にラベルと対応づけられ、ラベルが足りない値は10進文字列が状態名になる
func (c *Classifier) Code(channel string, win packet.Window, claimed map[int]string, labels []string) (*protocol.CodeMapping, error) {
	best := -1
	var bestValues []int

	for _, i := range c.candidates(win, claimed) {
		values := firstSeenOrder(win, i)
		if len(values) < 2 || len(values) > c.opts.CodeMaxCardinality {
			continue
		}
		if smoothProgression(values) {
			continue
		}
		if best < 0 || len(values) > len(bestValues) {
			best = i
			bestValues = values
		}
	}
	if best < 0 {
		return nil, &AmbiguousError{Channel: channel, Reason: "低種数かつ非連続な値集合を持つバイトがありません"}
	}

	values := make(protocol.CodeValues, len(bestValues))
	for n, v := range bestValues {
		state := strconv.Itoa(v)
		if n < len(labels) {
			state = labels[n]
		}
		values[v] = protocol.CodeValue{State: state}
	}
	return &protocol.CodeMapping{ByteIndex: best, Values: values}, nil
}

// bipolarSplit はギャップで分割された上下クラスタの境界値
type bipolarSplit struct {
	lowerMin, lowerMax int
	upperMin, upperMax int
}

// splitClusters はソート済みの観測値集合を最大ギャップで2クラスタに分割する
// 最大ギャップが閾値未満の場合は分割なしとみなす
func splitClusters(values []int, gap int) (bipolarSplit, bool) {
	if len(values) < 2 {
		return bipolarSplit{}, false
	}
	widest := 0
	at := -1
	for i := 1; i < len(values); i++ {
		d := values[i] - values[i-1]
		if d > widest {
			widest = d
			at = i
		}
	}
	if at < 0 || widest < gap {
		return bipolarSplit{}, false
	}
	return bipolarSplit{
		lowerMin: values[0],
		lowerMax: values[at-1],
		upperMin: values[at],
		upperMax: values[len(values)-1],
	}, true
}

// toggledBits はウィンドウ内で0と1の両方が観測されたビット位置を返す
func toggledBits(win packet.Window, index int) []int {
	var seenSet, seenClear uint16
	for _, p := range win {
		v, ok := p.At(index)
		if !ok {
			continue
		}
		for bit := 0; bit < 8; bit++ {
			if v&(1<<bit) != 0 {
				seenSet |= 1 << bit
			} else {
				seenClear |= 1 << bit
			}
		}
	}
	var bits []int
	for bit := 0; bit < 8; bit++ {
		if seenSet&(1<<bit) != 0 && seenClear&(1<<bit) != 0 {
			bits = append(bits, bit)
		}
	}
	return bits
}

// bitsIndependent はトグルしたビット対のどれもが「常に同時に変化」していないことを確認する
// パケット間の遷移ごとに変化ビット集合を取り、あるビット対が全遷移で連動していれば非独立とみなす
func bitsIndependent(win packet.Window, index int, toggled []int) bool {
	if len(toggled) < 2 {
		return true
	}

	var changes []int
	prev := -1
	for _, p := range win {
		v, ok := p.At(index)
		if !ok {
			continue
		}
		if prev >= 0 && v != prev {
			changes = append(changes, v^prev)
		}
		prev = v
	}

	for a := 0; a < len(toggled); a++ {
		for b := a + 1; b < len(toggled); b++ {
			maskA := 1 << toggled[a]
			maskB := 1 << toggled[b]
			together := true
			for _, ch := range changes {
				if ch&maskA != 0 && ch&maskB == 0 {
					together = false
					break
				}
				if ch&maskB != 0 && ch&maskA == 0 {
					together = false
					break
				}
			}
			if together {
				return false
			}
		}
	}
	return true
}

// distinctSorted は数列の重複を除いて昇順に並べた整数集合を返す
func distinctSorted(col []float64) []int {
	seen := map[int]bool{}
	var values []int
	for _, v := range col {
		n := int(v)
		if !seen[n] {
			seen[n] = true
			values = append(values, n)
		}
	}
	sort.Ints(values)
	return values
}

// firstSeenOrder は指定バイト位置で観測された値を初出順に返す
func firstSeenOrder(win packet.Window, index int) []int {
	seen := map[int]bool{}
	var values []int
	for _, p := range win {
		v, ok := p.At(index)
		if !ok {
			continue
		}
		if !seen[v] {
			seen[v] = true
			values = append(values, v)
		}
	}
	return values
}

// smoothProgression は値集合が滑らかな数値進行（等差の並び）かを判定する
// 4種以上の値が等間隔で並ぶ場合はアナログ値の掃引とみなし、列挙型としては扱わない
func smoothProgression(values []int) bool {
	if len(values) < 4 {
		return false
	}
	sorted := append([]int(nil), values...)
	sort.Ints(sorted)
	step := sorted[1] - sorted[0]
	if step == 0 {
		return false
	}
	for i := 2; i < len(sorted); i++ {
		if sorted[i]-sorted[i-1] != step {
			return false
		}
	}
	return true
}
