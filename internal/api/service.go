package api

import (
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/bengfarrell/thelearningtablet/internal/capture"
	"github.com/bengfarrell/thelearningtablet/internal/classifier"
	"github.com/bengfarrell/thelearningtablet/internal/config"
	"github.com/bengfarrell/thelearningtablet/internal/device"
	"github.com/bengfarrell/thelearningtablet/internal/mockdev"
	"github.com/bengfarrell/thelearningtablet/internal/packet"
	"github.com/bengfarrell/thelearningtablet/internal/protocol"
)

// LearnService はプロトコル学習セッション全体を管理する構造体
// デバイス（実機または模擬）、アクティブなキャプチャ、積み上げ中のマッピング集合を所有する
type LearnService struct {
	cfg       *config.Config
	cls       *classifier.Classifier
	acc       *classifier.Accumulator
	source    device.ReportSource
	mock      *mockdev.Tablet
	recorder  *capture.Recorder
	channel   string // 現在のステップが対象とするチャンネル
	sessionID string
	reportID  int // 最初に観測したパケットから学習したレポートID
	reportLen int
	latest    protocol.DecodedReport
	capturing bool
	running   bool
	mutex     sync.RWMutex
}

// NewLearnService は新しい学習サービスを作成する
func NewLearnService(cfg *config.Config) *LearnService {
	opts := classifier.Options{
		ReportIDIndex:      cfg.Capture.ReportIDIndex,
		BipolarGap:         cfg.Classifier.BipolarGap,
		CodeMaxCardinality: cfg.Classifier.CodeMaxCardinality,
		MaxButtons:         cfg.Classifier.MaxButtons,
		MultiByteGroupSize: cfg.Classifier.MultiByteGroupSize,
	}
	return &LearnService{
		cfg:      cfg,
		cls:      classifier.New(opts),
		acc:      classifier.NewAccumulator(),
		reportID: -1,
	}
}

// Start は学習セッションを開始する
// devicePathが"mock"の場合は模擬タブレットを使用する
func (s *LearnService) Start(devicePath string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.running {
		return fmt.Errorf("学習セッションは既に実行中です")
	}

	if devicePath == "mock" {
		s.mock = mockdev.NewTablet(0)
		s.source = s.mock
	} else {
		src, err := device.CreateReportSource(devicePath)
		if err != nil {
			return fmt.Errorf("デバイスのオープンに失敗しました[path=%s]: %v", devicePath, err)
		}
		s.source = src
		s.mock = nil
	}

	if err := s.source.Start(s.onPacket); err != nil {
		_ = s.source.Close()
		return err
	}

	s.sessionID = uuid.NewString()
	s.running = true
	log.Printf("学習セッションを開始しました [session=%s device=%s]", s.sessionID, s.source.Info().Name)
	return nil
}

// Stop は学習セッションを停止する
// 確定済みのマッピングは保持されたまま残る
func (s *LearnService) Stop() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if !s.running {
		return nil
	}
	err := s.source.Close()
	s.running = false
	s.capturing = false
	s.recorder = nil
	log.Printf("学習セッションを停止しました [session=%s]", s.sessionID)
	return err
}

// IsRunning はセッションが実行中かを返す
func (s *LearnService) IsRunning() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.running
}

// SessionID は現在のセッション識別子を返す
func (s *LearnService) SessionID() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.sessionID
}

// DevicePath は学習中のデバイスノードのパスを返す
// セッションが実行中でない場合は空文字列を返す
func (s *LearnService) DevicePath() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if !s.running || s.source == nil {
		return ""
	}
	return s.source.Info().Path
}

// onPacket はデバイスからのプッシュ配送を受け取る
// キャプチャ中であれば到着順のままウィンドウへ追加し、あわせて最新のデコード結果を更新する
func (s *LearnService) onPacket(p packet.RawPacket) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.reportID < 0 && len(p) > 0 {
		// 最初のパケットからレポートIDとレポート長を学習する
		if id, ok := p.At(s.cfg.Capture.ReportIDIndex); ok {
			s.reportID = id
			s.reportLen = len(p)
		}
	}

	if s.capturing && s.recorder != nil && s.recorder.Count() < s.cfg.Capture.MaxPackets {
		s.recorder.Append(p)
	}

	if s.acc.Len() > 0 {
		s.latest = protocol.Decode(s.acc.Mappings(), s.reportID, s.cfg.Capture.ReportIDIndex, p)
	}
}

// BeginStep はジェスチャーステップを開始し、新しいキャプチャウィンドウを用意する
func (s *LearnService) BeginStep(channel, label string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if !s.running {
		return fmt.Errorf("学習セッションが開始されていません")
	}
	s.channel = channel
	s.recorder = capture.NewRecorder(label)
	s.capturing = true
	log.Printf("ステップを開始しました [channel=%s label=%s]", channel, label)
	return nil
}

// ResetStep は現在のウィンドウを破棄して同じステップをやり直せる状態にする
// 確定済みのマッピングには影響しない
func (s *LearnService) ResetStep() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.recorder == nil {
		return fmt.Errorf("進行中のステップがありません")
	}
	s.recorder.Reset()
	s.capturing = true
	return nil
}

// CompleteStep はキャプチャを凍結し、ウィンドウ全体を対象に分類を1回実行する
// 分類結果はアキュムレータへ追加され、以降のステップの候補から当該バイトが外れる
func (s *LearnService) CompleteStep(kind protocol.Type, labels []string) (protocol.Mapping, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.recorder == nil {
		return nil, fmt.Errorf("進行中のステップがありません")
	}

	// 分類はキャプチャを止めてから実行する
	s.capturing = false

	win, err := s.recorder.Window()
	if err != nil {
		return nil, err
	}

	mapping, err := s.classify(kind, win, labels)
	if err != nil {
		return nil, err
	}
	if err := s.acc.Add(s.channel, mapping); err != nil {
		return nil, err
	}

	log.Printf("ステップを確定しました [channel=%s type=%s packets=%d]", s.channel, kind, s.recorder.Count())
	s.recorder = nil
	return mapping, nil
}

// classify はステップ種別に応じた分類を実行する
func (s *LearnService) classify(kind protocol.Type, win packet.Window, labels []string) (protocol.Mapping, error) {
	claimed := s.acc.Claimed()
	switch kind {
	case protocol.TypeRange:
		return s.cls.Range(s.channel, win, claimed)
	case protocol.TypeMultiByteRange:
		return s.cls.MultiByteRange(s.channel, win, claimed)
	case protocol.TypeBipolarRange:
		return s.cls.BipolarRange(s.channel, win, claimed)
	case protocol.TypeBitFlags:
		return s.cls.BitFlags(s.channel, win, claimed)
	case protocol.TypeCode:
		return s.cls.Code(s.channel, win, claimed, labels)
	}
	return nil, fmt.Errorf("未知のステップ種別です: %q", kind)
}

// Mappings は現在までに確定したマッピング集合を返す
func (s *LearnService) Mappings() protocol.ByteCodeMappings {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.acc.Mappings()
}

// LatestDecoded は直近のパケットのデコード結果を返す（操作モニター用）
func (s *LearnService) LatestDecoded() protocol.DecodedReport {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	out := protocol.DecodedReport{}
	for k, v := range s.latest {
		out[k] = v
	}
	return out
}

// Finalize は積み上げたマッピングと操作者メタデータから最終的なConfigを構築する
func (s *LearnService) Finalize(meta protocol.Metadata) (*protocol.Config, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if s.acc.Len() == 0 {
		return nil, fmt.Errorf("確定済みのマッピングがありません")
	}
	if s.reportID < 0 {
		return nil, fmt.Errorf("パケットが1件も観測されていないため確定できません")
	}

	src := s.source.Info()
	info := protocol.DeviceInfo{
		VendorID:    src.VendorID,
		ProductID:   src.ProductID,
		ProductName: src.Name,
	}
	return protocol.BuildConfig(s.acc.Mappings(), meta, info, s.reportID, s.reportLen)
}

// PlayGesture は模擬デバイスに組み込みのジェスチャー列を再生させる（模擬モードのみ）
func (s *LearnService) PlayGesture(name string) error {
	s.mutex.RLock()
	mock := s.mock
	s.mutex.RUnlock()

	if mock == nil {
		return fmt.Errorf("模擬デバイスを使用していません")
	}
	seq, err := gestureByName(name)
	if err != nil {
		return err
	}
	return mock.Play(seq)
}

// gestureByName は組み込みジェスチャー名から合成パケット列を引く
func gestureByName(name string) (mockdev.PacketSeq, error) {
	switch name {
	case "horizontal-sweep":
		return mockdev.HorizontalSweep(64), nil
	case "vertical-sweep":
		return mockdev.VerticalSweep(64), nil
	case "pressure-press":
		return mockdev.PressurePress(64), nil
	case "tilt-rock":
		return mockdev.TiltRock(64), nil
	case "button-chord":
		return mockdev.ButtonChord(), nil
	case "status-states":
		return mockdev.StatusStates(8), nil
	case "idle":
		return mockdev.Idle(32), nil
	}
	return nil, fmt.Errorf("未知のジェスチャーです: %q", name)
}
