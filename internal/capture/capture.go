package capture

import (
	"errors"

	"github.com/bengfarrell/thelearningtablet/internal/packet"
)

// ErrCaptureEmpty はパケットが1件もないままステップが完了した場合のエラー
var ErrCaptureEmpty = errors.New("キャプチャウィンドウにパケットがありません")

// Recorder は現在のジェスチャーステップのパケットを到着順に保持する構造体
// 重複排除は行わず、すべてのパケットを順序通り保持する
type Recorder struct {
	label   string
	packets []packet.RawPacket
}

// NewRecorder はステップラベル付きの新しいレコーダーを作成する
func NewRecorder(label string) *Recorder {
	return &Recorder{label: label}
}

// Append はパケットをコピーして末尾に追加する
// 呼び出し側のバッファ再利用による破壊を避けるためコピーを保持する
func (r *Recorder) Append(p packet.RawPacket) {
	r.packets = append(r.packets, p.Clone())
}

// Count は現在保持しているパケット数を返す
func (r *Recorder) Count() int {
	return len(r.packets)
}

// Label はこのステップのラベルを返す
func (r *Recorder) Label() string {
	return r.label
}

// Window は蓄積されたキャプチャウィンドウを返す
// パケットが1件もない場合は ErrCaptureEmpty を返す
func (r *Recorder) Window() (packet.Window, error) {
	if len(r.packets) == 0 {
		return nil, ErrCaptureEmpty
	}
	win := make(packet.Window, len(r.packets))
	copy(win, r.packets)
	return win, nil
}

// Reset はバッファ中のパケットを破棄する
// 確定済みのマッピングには影響しない
func (r *Recorder) Reset() {
	r.packets = nil
}
