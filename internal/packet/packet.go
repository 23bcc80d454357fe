package packet

// RawPacket は固定長のHIDレポート1件分の生バイト列を表す
// 先頭バイト（慣習的にインデックス0）はレポートIDを保持する
// キャプチャ後は不変として扱う
type RawPacket []byte

// ReportID はレポート識別子（先頭バイト）を返す
// 空のパケットの場合は-1を返す
func (p RawPacket) ReportID() int {
	if len(p) == 0 {
		return -1
	}
	return int(p[0])
}

// At は指定位置のバイト値を返す
// 範囲外のインデックスの場合は ok=false を返す
func (p RawPacket) At(index int) (value int, ok bool) {
	if index < 0 || index >= len(p) {
		return 0, false
	}
	return int(p[index]), true
}

// Clone はパケットの独立したコピーを返す
func (p RawPacket) Clone() RawPacket {
	c := make(RawPacket, len(p))
	copy(c, p)
	return c
}

// Window は1つのジェスチャーステップ中に到着順で集めたパケット列を表す
type Window []RawPacket

// ByteLength はウィンドウ内レポートのバイト長を返す
// レポートIDごとに長さは一定という前提のため、先頭パケットの長さを採用する
func (w Window) ByteLength() int {
	if len(w) == 0 {
		return 0
	}
	return len(w[0])
}

// Column は指定バイト位置の値を到着順に並べた数列を返す
// 位置を持たない短いパケットはスキップされる
func (w Window) Column(index int) []float64 {
	col := make([]float64, 0, len(w))
	for _, p := range w {
		if v, ok := p.At(index); ok {
			col = append(col, float64(v))
		}
	}
	return col
}

// CombinedColumn は複数バイトをリトルエンディアンで合成した値の数列を返す
// いずれかのインデックスを持たないパケットはスキップされる
func (w Window) CombinedColumn(indexes []int) []float64 {
	col := make([]float64, 0, len(w))
	for _, p := range w {
		v, ok := CombineLittleEndian(p, indexes)
		if !ok {
			continue
		}
		col = append(col, float64(v))
	}
	return col
}

// CombineLittleEndian は列挙されたバイト位置をリトルエンディアンで合成する
// byte[0]が最下位バイトとなる
func CombineLittleEndian(p RawPacket, indexes []int) (value int, ok bool) {
	shift := 0
	for _, idx := range indexes {
		b, exists := p.At(idx)
		if !exists {
			return 0, false
		}
		value |= b << shift
		shift += 8
	}
	return value, true
}
