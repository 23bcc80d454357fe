package mockdev

import (
	"github.com/bengfarrell/thelearningtablet/internal/packet"
)

// 模擬タブレットのレポートレイアウト
// 実機なしでウィザード全体を通すための、素性が既知の固定長プロトコル
const (
	ReportID     = 0x02 // 模擬レポートID
	ReportLength = 10   // 模擬レポートのバイト長

	idxXLow     = 1 // X座標 下位バイト
	idxXHigh    = 2 // X座標 上位バイト
	idxYLow     = 3
	idxYHigh    = 4
	idxPressLow  = 5
	idxPressHigh = 6
	idxTilt     = 7 // バイポーラのチルトバイト
	idxButtons  = 8 // ビットフラグのボタンバイト
	idxStatus   = 9 // 離散コードのステータスバイト
)

// ステータスバイトの離散コード
const (
	StatusHover   = 160
	StatusContact = 161
	StatusButton  = 162
)

// 模擬デバイスの座標・筆圧の最大値
const (
	MaxCoord    = 32000
	MaxPressure = 8191
)

// PacketSeq は有限で再始動可能な遅延パケット列を表すインターフェース
type PacketSeq interface {
	// Next は次のパケットを返す。列が尽きた場合は ok=false を返す
	Next() (p packet.RawPacket, ok bool)
	// Reset は列を先頭から再生できる状態に戻す
	Reset()
}

type sliceSeq struct {
	packets []packet.RawPacket
	pos     int
}

// NewSeq は固定のパケット列から再始動可能なシーケンスを作成する
func NewSeq(packets []packet.RawPacket) PacketSeq {
	return &sliceSeq{packets: packets}
}

func (s *sliceSeq) Next() (packet.RawPacket, bool) {
	if s.pos >= len(s.packets) {
		return nil, false
	}
	p := s.packets[s.pos]
	s.pos++
	return p.Clone(), true
}

func (s *sliceSeq) Reset() {
	s.pos = 0
}

// Collect はシーケンスを先頭から最後まで評価しキャプチャウィンドウとして返す
func Collect(seq PacketSeq) packet.Window {
	seq.Reset()
	var win packet.Window
	for {
		p, ok := seq.Next()
		if !ok {
			return win
		}
		win = append(win, p)
	}
}

// base は静止状態（ホバー中央・筆圧ゼロ・ボタンなし）のレポートを作る
func base() packet.RawPacket {
	p := make(packet.RawPacket, ReportLength)
	p[0] = ReportID
	putLE16(p, idxXLow, MaxCoord/2)
	putLE16(p, idxYLow, MaxCoord/2)
	p[idxTilt] = 128
	p[idxStatus] = StatusHover
	return p
}

func putLE16(p packet.RawPacket, low int, v int) {
	p[low] = byte(v & 0xff)
	p[low+1] = byte(v >> 8)
}

// HorizontalSweep はX軸を左端から右端まで掃引するジェスチャー列を返す
func HorizontalSweep(n int) PacketSeq {
	packets := make([]packet.RawPacket, n)
	for i := 0; i < n; i++ {
		p := base()
		putLE16(p, idxXLow, MaxCoord*i/max(n-1, 1))
		packets[i] = p
	}
	return NewSeq(packets)
}

// VerticalSweep はY軸を上端から下端まで掃引するジェスチャー列を返す
func VerticalSweep(n int) PacketSeq {
	packets := make([]packet.RawPacket, n)
	for i := 0; i < n; i++ {
		p := base()
		putLE16(p, idxYLow, MaxCoord*i/max(n-1, 1))
		packets[i] = p
	}
	return NewSeq(packets)
}

// PressurePress は筆圧ゼロから最大まで押し込むジェスチャー列を返す
func PressurePress(n int) PacketSeq {
	packets := make([]packet.RawPacket, n)
	for i := 0; i < n; i++ {
		p := base()
		putLE16(p, idxPressLow, MaxPressure*i/max(n-1, 1))
		p[idxStatus] = StatusContact
		packets[i] = p
	}
	return NewSeq(packets)
}

// TiltRock はペンを一方向へ倒してから逆方向へ倒すジェスチャー列を返す
// チルトバイトは2つの互いに素な値域（下側20..60、上側200..240）を取る
func TiltRock(n int) PacketSeq {
	half := n / 2
	packets := make([]packet.RawPacket, 0, n)
	for i := 0; i < half; i++ {
		p := base()
		p[idxTilt] = byte(20 + 40*i/max(half-1, 1))
		packets = append(packets, p)
	}
	for i := 0; i < n-half; i++ {
		p := base()
		p[idxTilt] = byte(200 + 40*i/max(n-half-1, 1))
		packets = append(packets, p)
	}
	return NewSeq(packets)
}

// ButtonChord は各ボタンを順に押して離すジェスチャー列を返す
// どの遷移も1ビットしか変化しないため、ビットの独立性が観測できる
func ButtonChord() PacketSeq {
	var packets []packet.RawPacket
	for _, mask := range []byte{0, 1, 0, 2, 0, 4, 0, 8, 0, 3, 0} {
		p := base()
		p[idxButtons] = mask
		packets = append(packets, p)
	}
	return NewSeq(packets)
}

// StatusStates はホバー・接地・ボタン押下の各状態を順に通る列を返す
// 各状態は初出順にラベルと対応づけられる
func StatusStates(perState int) PacketSeq {
	var packets []packet.RawPacket
	for _, status := range []byte{StatusHover, StatusContact, StatusButton} {
		for i := 0; i < perState; i++ {
			p := base()
			p[idxStatus] = status
			packets = append(packets, p)
		}
	}
	return NewSeq(packets)
}

// Idle はすべてのバイトが一定の静止状態の列を返す（分類不能ケースの再現用）
func Idle(n int) PacketSeq {
	packets := make([]packet.RawPacket, n)
	for i := 0; i < n; i++ {
		packets[i] = base()
	}
	return NewSeq(packets)
}
