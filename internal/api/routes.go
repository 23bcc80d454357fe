package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/bengfarrell/thelearningtablet/internal/capture"
	"github.com/bengfarrell/thelearningtablet/internal/classifier"
	"github.com/bengfarrell/thelearningtablet/internal/device"
	"github.com/bengfarrell/thelearningtablet/internal/protocol"
)

// ルートの設定
func (s *Server) setupRoutes(router *http.ServeMux) {
	// セッション関連のエンドポイント
	router.HandleFunc("POST /api/session/start", s.handleSessionStart)
	router.HandleFunc("POST /api/session/stop", s.handleSessionStop)
	router.HandleFunc("GET /api/session/status", s.handleSessionStatus)

	// ジェスチャーステップ関連のエンドポイント
	router.HandleFunc("POST /api/step/start", s.handleStepStart)
	router.HandleFunc("POST /api/step/complete", s.handleStepComplete)
	router.HandleFunc("POST /api/step/reset", s.handleStepReset)

	// マッピング・デコード関連のエンドポイント
	router.HandleFunc("GET /api/mappings", s.handleGetMappings)
	router.HandleFunc("GET /api/decoded", s.handleGetDecoded)
	router.HandleFunc("POST /api/finalize", s.handleFinalize)

	// デバイス関連のエンドポイント
	router.HandleFunc("GET /api/devices", s.handleGetDevices)
	router.HandleFunc("POST /api/mock/play", s.handleMockPlay)

	// ヘルスチェック用エンドポイント
	router.HandleFunc("GET /api/health", s.handleHealthCheck)
}

// セッション開始ハンドラ
func (s *Server) handleSessionStart(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Device string `json:"device"` // hidrawデバイスのパスまたは "mock"
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, http.StatusBadRequest, "リクエストの解析に失敗しました")
		return
	}
	if request.Device == "" {
		writeError(w, http.StatusBadRequest, "deviceを指定してください")
		return
	}

	if err := s.service.Start(request.Device); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("セッションの開始に失敗しました: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "started",
		"session": s.service.SessionID(),
	})
}

// セッション停止ハンドラ
func (s *Server) handleSessionStop(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Stop(); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("セッションの停止に失敗しました: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

// セッション状態取得ハンドラ
func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	status := "stopped"
	if s.service.IsRunning() {
		status = "running"
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"session": s.service.SessionID(),
	})
}

// ステップ開始ハンドラ
func (s *Server) handleStepStart(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Channel string `json:"channel"`
		Label   string `json:"label"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, http.StatusBadRequest, "リクエストの解析に失敗しました")
		return
	}
	if request.Channel == "" {
		writeError(w, http.StatusBadRequest, "channelを指定してください")
		return
	}

	if err := s.service.BeginStep(request.Channel, request.Label); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "capturing"})
}

// ステップ確定ハンドラ
// キャプチャ済みウィンドウに対して分類を実行し、結果のマッピングを返す
func (s *Server) handleStepComplete(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Type   protocol.Type `json:"type"`
		Labels []string      `json:"labels"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, http.StatusBadRequest, "リクエストの解析に失敗しました")
		return
	}

	mapping, err := s.service.CompleteStep(request.Type, request.Labels)
	if err != nil {
		writeClassificationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapping)
}

// ステップリセットハンドラ
func (s *Server) handleStepReset(w http.ResponseWriter, r *http.Request) {
	if err := s.service.ResetStep(); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// マッピング一覧取得ハンドラ
func (s *Server) handleGetMappings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Mappings())
}

// 最新デコード結果取得ハンドラ（操作モニター用）
func (s *Server) handleGetDecoded(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.LatestDecoded())
}

// 確定ハンドラ
// 積み上げたマッピングと操作者メタデータから設定を構築し、必要に応じて保存する
func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Name         string `json:"name"`
		Manufacturer string `json:"manufacturer"`
		Model        string `json:"model"`
		Description  string `json:"description"`
		ButtonCount  int    `json:"buttonCount"`
		Save         bool   `json:"save"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, http.StatusBadRequest, "リクエストの解析に失敗しました")
		return
	}

	meta := protocol.Metadata{
		Name:         request.Name,
		Manufacturer: request.Manufacturer,
		Model:        request.Model,
		Description:  request.Description,
		ButtonCount:  request.ButtonCount,
	}
	cfg, err := s.service.Finalize(meta)
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	if request.Save {
		path, err := s.saveMappingConfig(cfg)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("設定の保存に失敗しました: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"config": cfg, "path": path})
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// saveMappingConfig は確定した設定をマッピングディレクトリへ書き出す
func (s *Server) saveMappingConfig(cfg *protocol.Config) (string, error) {
	dir := s.GetConfig().Output.MappingDir
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(base, "thelearningtablet", "mappings")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	data, err := cfg.ToJSON(s.GetConfig().Output.Pretty)
	if err != nil {
		return "", err
	}

	name := cfg.Name
	if name == "" {
		name = "tablet"
	}
	path := filepath.Join(dir, name+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}

// デバイス一覧取得ハンドラ
func (s *Server) handleGetDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := device.ScanDevices(s.GetConfig().Capture.DeviceGlob)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "デバイス一覧の取得に失敗しました: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, devices)
}

// 模擬ジェスチャー再生ハンドラ（模擬モードのみ）
func (s *Server) handleMockPlay(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Gesture string `json:"gesture"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, http.StatusBadRequest, "リクエストの解析に失敗しました")
		return
	}

	if err := s.service.PlayGesture(request.Gesture); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "played"})
}

// ヘルスチェックハンドラ
func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeClassificationError は分類エラーの種類をHTTPステータスへ対応づける
// 判別不能は422、衝突は409、空キャプチャは422として操作者へ文脈付きで返す
func writeClassificationError(w http.ResponseWriter, err error) {
	var ambiguous *classifier.AmbiguousError
	var conflict *classifier.ConflictError

	switch {
	case errors.Is(err, capture.ErrCaptureEmpty):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &ambiguous):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &conflict):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
