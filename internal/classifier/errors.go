package classifier

import "fmt"

// AmbiguousError は選択基準を満たすバイトが見つからなかった場合の分類エラー
// 推測でマッピングを返すことはせず、チャンネル名と理由を呼び出し側へ伝える
type AmbiguousError struct {
	Channel string
	Reason  string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("チャンネル %q を判別できるバイトが見つかりません: %s", e.Channel, e.Reason)
}

// ConflictError は選ばれたバイトが先行ステップで既に占有されている場合のエラー
// 暗黙の上書きは行わず、衝突として報告する
type ConflictError struct {
	Channel   string // 今回のステップのチャンネル
	ClaimedBy string // 先にバイトを占有したチャンネル
	ByteIndex int    // 衝突したバイト位置
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("チャンネル %q のバイト %d は既にチャンネル %q に占有されています",
		e.Channel, e.ByteIndex, e.ClaimedBy)
}
