package protocol

import (
	"strconv"

	"github.com/bengfarrell/thelearningtablet/internal/consts"
	"github.com/bengfarrell/thelearningtablet/internal/packet"
)

// DecodedReport は1パケットのデコード結果（チャンネル名→値）を表す
// 値は float64（線形/バイポーラ）、bool（ボタン）、CodeValue または string（コード）のいずれか
type DecodedReport map[string]any

// DecodeRange は単一バイトの線形値を[0,1]に正規化する
// min == max の場合は常に0、範囲外インデックスの場合も0を返す
func DecodeRange(m *RangeMapping, p packet.RawPacket) float64 {
	v, ok := p.At(m.ByteIndex)
	if !ok {
		return 0
	}
	return normalize(float64(v), float64(m.Min), float64(m.Max))
}

// DecodeMultiByteRange はリトルエンディアン合成値を[0,1]に正規化する
// リスト内に範囲外インデックスがある場合は0を返す
func DecodeMultiByteRange(m *MultiByteRangeMapping, p packet.RawPacket) float64 {
	v, ok := packet.CombineLittleEndian(p, m.ByteIndex)
	if !ok {
		return 0
	}
	return normalize(float64(v), float64(m.Min), float64(m.Max))
}

// DecodeBipolarRange は2つの値域に分かれた符号付き値を[-1,1]にデコードする
// 正域なら (v-posMin)/(posMax-posMin)、負域なら -(negMax-v)/(negMax-negMin)
// どちらの値域にも入らない場合、値域の上下限が等しい場合、範囲外インデックスの場合は0を返す
func DecodeBipolarRange(m *BipolarRangeMapping, p packet.RawPacket) float64 {
	v, ok := p.At(m.ByteIndex)
	if !ok {
		return 0
	}
	if v >= m.PositiveMin && v <= m.PositiveMax {
		if m.PositiveMin == m.PositiveMax {
			return 0
		}
		return float64(v-m.PositiveMin) / float64(m.PositiveMax-m.PositiveMin)
	}
	if v >= m.NegativeMin && v <= m.NegativeMax {
		if m.NegativeMin == m.NegativeMax {
			return 0
		}
		return -float64(m.NegativeMax-v) / float64(m.NegativeMax-m.NegativeMin)
	}
	return 0
}

// DecodeBitFlags はバイトの各ビットをボタンのブール値に展開する
// ビットi(0始まり)は button{i+1} になる。範囲外インデックスの場合は空の結果を返す
func DecodeBitFlags(m *BitFlagsMapping, p packet.RawPacket) map[string]bool {
	out := map[string]bool{}
	v, ok := p.At(m.ByteIndex)
	if !ok {
		return out
	}
	for i := 0; i < m.ButtonCount; i++ {
		key := consts.ButtonKeyPrefix + strconv.Itoa(i+1)
		out[key] = v&(1<<i) != 0
	}
	return out
}

// DecodeCode は離散コードの対応表を引く
// 未知のコードは10進文字列のまま返し、破棄しない。範囲外インデックスの場合はnilを返す
func DecodeCode(m *CodeMapping, p packet.RawPacket) any {
	v, ok := p.At(m.ByteIndex)
	if !ok {
		return nil
	}
	if val, found := m.Values[v]; found {
		return val
	}
	return strconv.Itoa(v)
}

// Decode は1パケットにマッピング集合全体を適用する純粋関数
// レポートID（reportIDIndex位置のバイト）が一致しないパケットは空の結果になる
// デコード中の異常はエラーではなく既定値に縮退するため、ストリーム処理を止めない
func Decode(mappings ByteCodeMappings, reportID int, reportIDIndex int, p packet.RawPacket) DecodedReport {
	out := DecodedReport{}
	id, ok := p.At(reportIDIndex)
	if !ok || id != reportID {
		return out
	}
	for name, m := range mappings {
		switch spec := m.(type) {
		case *RangeMapping:
			out[name] = DecodeRange(spec, p)
		case *MultiByteRangeMapping:
			out[name] = DecodeMultiByteRange(spec, p)
		case *BipolarRangeMapping:
			out[name] = DecodeBipolarRange(spec, p)
		case *BitFlagsMapping:
			for key, pressed := range DecodeBitFlags(spec, p) {
				out[key] = pressed
			}
		case *CodeMapping:
			out[name] = DecodeCode(spec, p)
		}
	}
	return out
}

// normalize は線形値を[0,1]に正規化しクランプする
func normalize(v, min, max float64) float64 {
	if min == max {
		return 0
	}
	n := (v - min) / (max - min)
	if n < 0 {
		return 0
	}
	if n > 1 {
		return 1
	}
	return n
}
