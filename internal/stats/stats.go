package stats

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/bengfarrell/thelearningtablet/internal/packet"
)

// ByteStats はバイト位置ごとの要約統計量を表す構造体
type ByteStats struct {
	Min      int     // ウィンドウ内で観測された最小値
	Max      int     // ウィンドウ内で観測された最大値
	Variance float64 // 母分散（偏差二乗の平均）
	Count    int     // サンプル数
}

// Constant はこのバイトがウィンドウ全体で一定だったかを返す
func (s ByteStats) Constant() bool {
	return s.Variance == 0
}

// Compute はウィンドウのバイト位置ごとの統計量を計算する
// 同一のウィンドウからは常に同一の結果が得られる
func Compute(win packet.Window) []ByteStats {
	length := win.ByteLength()
	result := make([]ByteStats, length)
	for i := 0; i < length; i++ {
		result[i] = ComputeColumn(win.Column(i))
	}
	return result
}

// ComputeColumn は1バイト位置分の値の数列から統計量を計算する
func ComputeColumn(col []float64) ByteStats {
	if len(col) == 0 {
		return ByteStats{}
	}
	return ByteStats{
		Min:      int(floats.Min(col)),
		Max:      int(floats.Max(col)),
		Variance: stat.PopVariance(col, nil),
		Count:    len(col),
	}
}

// CombinedVariance は複数バイトをリトルエンディアン合成した値の母分散を返す
func CombinedVariance(win packet.Window, indexes []int) float64 {
	col := win.CombinedColumn(indexes)
	if len(col) == 0 {
		return 0
	}
	return stat.PopVariance(col, nil)
}
