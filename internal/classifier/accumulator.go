package classifier

import "github.com/bengfarrell/thelearningtablet/internal/protocol"

// Accumulator はステップごとの分類結果を1つのマッピング集合へ積み上げる構造体
// 先行ステップが占有したバイトを後続ステップが上書きすることはなく、衝突として報告する
type Accumulator struct {
	mappings protocol.ByteCodeMappings
	claimed  map[int]string // バイト位置 → 占有チャンネル
}

// NewAccumulator は空のアキュムレータを作成する
func NewAccumulator() *Accumulator {
	return &Accumulator{
		mappings: protocol.ByteCodeMappings{},
		claimed:  map[int]string{},
	}
}

// Claimed は占有済みバイト位置の対応表を返す（分類ステップの候補除外用）
func (a *Accumulator) Claimed() map[int]string {
	c := make(map[int]string, len(a.claimed))
	for idx, name := range a.claimed {
		c[idx] = name
	}
	return c
}

// Add は1チャンネル分の分類結果を追加する
// 同一チャンネル・同一バイトのCodeマッピング同士は値表をマージする
// それ以外で占有済みバイトに重なる場合は ConflictError を返す
func (a *Accumulator) Add(channel string, m protocol.Mapping) error {
	if existing, ok := a.mappings[channel]; ok {
		if merged, ok := mergeCodes(existing, m); ok {
			a.mappings[channel] = merged
			return nil
		}
	}

	for _, idx := range m.ByteIndexes() {
		if owner, taken := a.claimed[idx]; taken && owner != channel {
			return &ConflictError{Channel: channel, ClaimedBy: owner, ByteIndex: idx}
		}
	}
	for _, idx := range m.ByteIndexes() {
		a.claimed[idx] = channel
	}
	a.mappings[channel] = m
	return nil
}

// Mappings は現在までに確定したマッピング集合のコピーを返す
func (a *Accumulator) Mappings() protocol.ByteCodeMappings {
	return a.mappings.Clone()
}

// Len は確定済みチャンネル数を返す
func (a *Accumulator) Len() int {
	return len(a.mappings)
}

// mergeCodes は同一バイトを指すCodeマッピング同士の値表を統合する
// 既存の対応は保持し、新規の値のみ追加される
func mergeCodes(existing, next protocol.Mapping) (protocol.Mapping, bool) {
	prev, okA := existing.(*protocol.CodeMapping)
	add, okB := next.(*protocol.CodeMapping)
	if !okA || !okB || prev.ByteIndex != add.ByteIndex {
		return nil, false
	}
	values := make(protocol.CodeValues, len(prev.Values)+len(add.Values))
	for v, c := range prev.Values {
		values[v] = c
	}
	for v, c := range add.Values {
		if _, exists := values[v]; !exists {
			values[v] = c
		}
	}
	return &protocol.CodeMapping{ByteIndex: prev.ByteIndex, Values: values}, true
}
