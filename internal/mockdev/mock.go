package mockdev

import (
	"fmt"
	"sync"
	"time"

	"github.com/bengfarrell/thelearningtablet/internal/device"
	"github.com/bengfarrell/thelearningtablet/internal/packet"
)

// Tablet は実機の代わりに合成レポートを配送する模擬デバイス
// device.ReportSource と同じ契約（到着順プッシュ配送）を満たす
type Tablet struct {
	interval time.Duration
	callback func(packet.RawPacket)
	mutex    sync.Mutex
	running  bool
}

// NewTablet は模擬タブレットを作成する
// intervalはパケット配送の間隔で、0の場合は即時配送になる
func NewTablet(interval time.Duration) *Tablet {
	return &Tablet{interval: interval}
}

// Info は模擬デバイスのデバイス情報を返す
func (t *Tablet) Info() device.Info {
	return device.Info{
		Name:           "Mock Learning Tablet",
		Path:           "mock",
		VendorID:       0x5943,
		ProductID:      0x0001,
		DescriptorSize: ReportLength,
	}
}

// Start は配送先コールバックを登録する
// 実機と異なり自発的には送信せず、Playで与えられた列を配送する
func (t *Tablet) Start(cb func(packet.RawPacket)) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if t.running {
		return fmt.Errorf("模擬デバイスは既に開始されています")
	}
	t.callback = cb
	t.running = true
	return nil
}

// Play はジェスチャー列を先頭から最後まで配送する
// ウィザードの「ステップ実行」に相当する操作
func (t *Tablet) Play(seq PacketSeq) error {
	t.mutex.Lock()
	cb := t.callback
	running := t.running
	t.mutex.Unlock()

	if !running || cb == nil {
		return fmt.Errorf("模擬デバイスが開始されていません")
	}

	seq.Reset()
	for {
		p, ok := seq.Next()
		if !ok {
			return nil
		}
		cb(p)
		if t.interval > 0 {
			time.Sleep(t.interval)
		}
	}
}

// Close は配送を停止する
func (t *Tablet) Close() error {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.callback = nil
	t.running = false
	return nil
}
