package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/pkg/browser"

	"github.com/bengfarrell/thelearningtablet/internal/config"
	"github.com/bengfarrell/thelearningtablet/internal/device"
)

// Server はウィザード向けAPIサーバーを表す構造体
type Server struct {
	server  *http.Server
	service *LearnService
	monitor *device.Monitor
	cfg     *config.Config
	mutex   sync.RWMutex
	port    int
}

// NewServer は新しいAPIサーバーを作成する
func NewServer(cfg *config.Config, port int) *Server {
	return &Server{
		cfg:     cfg,
		service: NewLearnService(cfg),
		port:    port,
	}
}

// Start はAPIサーバーを開始する
func (s *Server) Start() error {
	// ルーターの設定
	router := http.NewServeMux()

	// APIエンドポイントの設定
	s.setupRoutes(router)

	// HTTPサーバーの設定
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: router,
	}

	// hidrawノードの接続状態を監視する
	// 学習中のデバイスが抜かれた場合はセッションを停止する
	monitor, err := device.NewMonitor()
	if err != nil {
		log.Printf("デバイス監視の初期化に失敗しました: %v", err)
	} else {
		monitor.RegisterCallback(s.onDeviceEvent)
		if err := monitor.Start(); err != nil {
			log.Printf("デバイス監視の開始に失敗しました: %v", err)
		} else {
			s.monitor = monitor
		}
	}

	url := fmt.Sprintf("http://localhost:%d", s.port)
	log.Printf("APIサーバーを開始します: %s", url)

	// 設定されていればウィザードページをブラウザで開く
	if s.cfg.Server.OpenBrowser {
		if err := browser.OpenURL(url); err != nil {
			log.Printf("ブラウザの起動に失敗しました: %v", err)
		}
	}

	return s.server.ListenAndServe()
}

// Stop はAPIサーバーを停止する
func (s *Server) Stop() error {
	if s.monitor != nil {
		_ = s.monitor.Stop()
	}
	if s.server != nil {
		log.Println("APIサーバーを停止します...")
		_ = s.service.Stop()
		return s.server.Shutdown(context.Background())
	}
	return nil
}

// onDeviceEvent はhidrawノードの接続・切断イベントを処理する
func (s *Server) onDeviceEvent(e device.Event) {
	switch e.Type {
	case device.DeviceAdded:
		log.Printf("デバイスが接続されました [path=%s]", e.Path)
	case device.DeviceRemoved:
		log.Printf("デバイスが切断されました [path=%s]", e.Path)
		if s.service.DevicePath() == e.Path {
			log.Printf("学習中のデバイスが切断されたためセッションを停止します")
			_ = s.service.Stop()
		}
	}
}

// GetConfig は現在のアプリケーション設定を返す
func (s *Server) GetConfig() *config.Config {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.cfg
}

// UpdateConfig はアプリケーション設定を更新する
func (s *Server) UpdateConfig(cfg *config.Config) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.cfg = cfg
}

// writeJSON はJSONレスポンスを書き込む
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("JSONエンコードエラー: %v", err)
		}
	}
}

// writeError はエラーレスポンスを書き込む
func writeError(w http.ResponseWriter, status int, message string) {
	response := map[string]string{"error": message}
	writeJSON(w, status, response)
}
