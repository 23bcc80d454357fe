package protocol

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Type はマッピングのエンコーディング種別を表す
// JSONの "type" フィールドにそのまま現れる
type Type string

const (
	TypeCode           Type = "code"
	TypeRange          Type = "range"
	TypeMultiByteRange Type = "multi-byte-range"
	TypeBipolarRange   Type = "bipolar-range"
	TypeBitFlags       Type = "bit-flags"
)

// Mapping は1チャンネル分のバイト・エンコーディング対応を表すインターフェース
type Mapping interface {
	// MappingType はエンコーディング種別を返す
	MappingType() Type
	// ByteIndexes はこのマッピングが占有するバイト位置を返す
	ByteIndexes() []int
}

// CodeValue は離散コードに対応づけられたセマンティック値
type CodeValue struct {
	State string `json:"state"`
}

// CodeValues はバイト値をキーとした離散コードの対応表
// 内部では整数キーで保持し、JSON境界でのみ10進文字列になる
type CodeValues map[int]CodeValue

// CodeMapping は離散列挙（ステータス/モードバイト）のマッピング
type CodeMapping struct {
	ByteIndex int        `json:"byteIndex"`
	Values    CodeValues `json:"values"`
}

func (m *CodeMapping) MappingType() Type  { return TypeCode }
func (m *CodeMapping) ByteIndexes() []int { return []int{m.ByteIndex} }

// RangeMapping は単一バイトの線形値のマッピング
type RangeMapping struct {
	ByteIndex int `json:"byteIndex"`
	Min       int `json:"min"`
	Max       int `json:"max"`
}

func (m *RangeMapping) MappingType() Type  { return TypeRange }
func (m *RangeMapping) ByteIndexes() []int { return []int{m.ByteIndex} }

// MultiByteRangeMapping はリトルエンディアン合成による複数バイト線形値のマッピング
// ByteIndexの先頭が最下位バイト
type MultiByteRangeMapping struct {
	ByteIndex []int `json:"byteIndex"`
	Min       int   `json:"min"`
	Max       int   `json:"max"`
}

func (m *MultiByteRangeMapping) MappingType() Type  { return TypeMultiByteRange }
func (m *MultiByteRangeMapping) ByteIndexes() []int { return m.ByteIndex }

// BipolarRangeMapping は2つの互いに素な値域に分かれた符号付き値のマッピング（チルト）
type BipolarRangeMapping struct {
	ByteIndex   int `json:"byteIndex"`
	PositiveMin int `json:"positiveMin"`
	PositiveMax int `json:"positiveMax"`
	NegativeMin int `json:"negativeMin"`
	NegativeMax int `json:"negativeMax"`
}

func (m *BipolarRangeMapping) MappingType() Type  { return TypeBipolarRange }
func (m *BipolarRangeMapping) ByteIndexes() []int { return []int{m.ByteIndex} }

// BitFlagsMapping は独立したブールビット群（タブレットボタン）のマッピング
type BitFlagsMapping struct {
	ByteIndex   int `json:"byteIndex"`
	ButtonCount int `json:"buttonCount"`
}

func (m *BitFlagsMapping) MappingType() Type  { return TypeBitFlags }
func (m *BitFlagsMapping) ByteIndexes() []int { return []int{m.ByteIndex} }

// ByteCodeMappings はチャンネル名からマッピングへの対応表
// 分類器が1チャンネルずつ積み上げ、確定後は不変として扱う
type ByteCodeMappings map[string]Mapping

// Channels はチャンネル名をソート済みで返す
func (m ByteCodeMappings) Channels() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone はマッピング集合の浅いコピーを返す
// Mapping自体は確定後不変のため共有してよい
func (m ByteCodeMappings) Clone() ByteCodeMappings {
	c := make(ByteCodeMappings, len(m))
	for name, spec := range m {
		c[name] = spec
	}
	return c
}

// MarshalJSON は各マッピングに "type" タグを付与してシリアライズする
func (m *CodeMapping) MarshalJSON() ([]byte, error) {
	type alias CodeMapping
	return json.Marshal(struct {
		Type Type `json:"type"`
		*alias
	}{TypeCode, (*alias)(m)})
}

func (m *RangeMapping) MarshalJSON() ([]byte, error) {
	type alias RangeMapping
	return json.Marshal(struct {
		Type Type `json:"type"`
		*alias
	}{TypeRange, (*alias)(m)})
}

func (m *MultiByteRangeMapping) MarshalJSON() ([]byte, error) {
	type alias MultiByteRangeMapping
	return json.Marshal(struct {
		Type Type `json:"type"`
		*alias
	}{TypeMultiByteRange, (*alias)(m)})
}

func (m *BipolarRangeMapping) MarshalJSON() ([]byte, error) {
	type alias BipolarRangeMapping
	return json.Marshal(struct {
		Type Type `json:"type"`
		*alias
	}{TypeBipolarRange, (*alias)(m)})
}

func (m *BitFlagsMapping) MarshalJSON() ([]byte, error) {
	type alias BitFlagsMapping
	return json.Marshal(struct {
		Type Type `json:"type"`
		*alias
	}{TypeBitFlags, (*alias)(m)})
}

// UnmarshalMapping は "type" タグを見て対応する具象マッピングへ復元する
func UnmarshalMapping(data []byte) (Mapping, error) {
	var tag struct {
		Type Type `json:"type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, fmt.Errorf("マッピングの解析に失敗しました: %w", err)
	}

	var m Mapping
	switch tag.Type {
	case TypeCode:
		m = &CodeMapping{}
	case TypeRange:
		m = &RangeMapping{}
	case TypeMultiByteRange:
		m = &MultiByteRangeMapping{}
	case TypeBipolarRange:
		m = &BipolarRangeMapping{}
	case TypeBitFlags:
		m = &BitFlagsMapping{}
	default:
		return nil, fmt.Errorf("未知のマッピング種別です: %q", tag.Type)
	}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("マッピング(%s)の解析に失敗しました: %w", tag.Type, err)
	}
	return m, nil
}

// UnmarshalJSON はチャンネルごとにタグ付きマッピングを復元する
func (m *ByteCodeMappings) UnmarshalJSON(data []byte) error {
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(ByteCodeMappings, len(raw))
	for name, msg := range raw {
		spec, err := UnmarshalMapping(msg)
		if err != nil {
			return fmt.Errorf("チャンネル %q: %w", name, err)
		}
		out[name] = spec
	}
	*m = out
	return nil
}
