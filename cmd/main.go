package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/bengfarrell/thelearningtablet/internal/api"
	"github.com/bengfarrell/thelearningtablet/internal/config"
	"github.com/bengfarrell/thelearningtablet/internal/consts"
	"github.com/bengfarrell/thelearningtablet/internal/protocol"
)

func main() {
	// コマンドライン引数の解析
	useMock := flag.Bool("mock", false, "模擬タブレットで学習セッションを一括実行して設定JSONを出力します")
	configPath := flag.String("config", "", "設定ファイルのパス (指定しない場合はデフォルトパスを使用)")
	port := flag.Int("port", 8080, "APIサーバーのポート番号")
	open := flag.Bool("open", false, "起動時にウィザードページをブラウザで開きます")
	flag.Parse()

	// デフォルト設定ファイルパスの設定
	defaultConfigPath := ""
	configDir, err := config.GetDefaultConfigDir()
	if err == nil {
		defaultConfigPath = filepath.Join(configDir, "config.toml")
	}

	// 設定ファイルパスの決定
	cfgPath := defaultConfigPath
	if *configPath != "" {
		cfgPath = *configPath
	}

	// 設定ファイルの読み込み
	var cfg *config.Config
	if cfgPath != "" {
		cfg, err = config.LoadConfig(cfgPath)
		if err != nil {
			fmt.Printf("設定ファイルの読み込みに失敗しました: %v\nデフォルト設定を使用します\n", err)
			cfg = config.DefaultConfig()
		} else {
			fmt.Printf("設定ファイルを読み込みました: %s\n", cfgPath)
		}
	} else {
		cfg = config.DefaultConfig()
	}
	if *open {
		cfg.Server.OpenBrowser = true
	}

	// シグナルハンドラの設定
	handleSignals()

	// 模擬モードかAPIサーバーモードかを判断
	if *useMock {
		// 模擬タブレットで学習セッションを一括実行
		runMockSession(cfg)
	} else {
		// APIサーバーモードで実行
		fmt.Printf("APIサーバーモードで起動します (ポート: %d)...\n", *port)
		runApiServer(cfg, *port)
	}
}

// APIサーバーモードでの実行
func runApiServer(cfg *config.Config, port int) {
	// APIサーバーを作成
	server := api.NewServer(cfg, port)

	// サーバー起動
	if err := server.Start(); err != nil {
		log.Fatalf("APIサーバーの起動に失敗しました: %v", err)
	}
}

// 模擬タブレットでウィザードの全ステップを通し、確定した設定JSONを標準出力へ書き出す
func runMockSession(cfg *config.Config) {
	service := api.NewLearnService(cfg)
	if err := service.Start("mock"); err != nil {
		log.Fatalf("学習セッションの開始に失敗しました: %v", err)
	}
	defer service.Stop()

	steps := []struct {
		channel string
		gesture string
		kind    protocol.Type
		labels  []string
	}{
		{consts.ChannelX, "horizontal-sweep", protocol.TypeMultiByteRange, nil},
		{consts.ChannelY, "vertical-sweep", protocol.TypeMultiByteRange, nil},
		{consts.ChannelPressure, "pressure-press", protocol.TypeMultiByteRange, nil},
		{consts.ChannelTiltX, "tilt-rock", protocol.TypeBipolarRange, nil},
		{consts.ChannelTabletButtons, "button-chord", protocol.TypeBitFlags, nil},
		{consts.ChannelStatus, "status-states", protocol.TypeCode,
			[]string{"hover", "contact", "primary-button-pressed"}},
	}

	for _, step := range steps {
		if err := service.BeginStep(step.channel, step.gesture); err != nil {
			log.Fatalf("ステップの開始に失敗しました [channel=%s]: %v", step.channel, err)
		}
		if err := service.PlayGesture(step.gesture); err != nil {
			log.Fatalf("ジェスチャーの再生に失敗しました [gesture=%s]: %v", step.gesture, err)
		}
		if _, err := service.CompleteStep(step.kind, step.labels); err != nil {
			log.Fatalf("ステップの確定に失敗しました [channel=%s]: %v", step.channel, err)
		}
	}

	mappingConfig, err := service.Finalize(protocol.Metadata{
		Name:         "mock-tablet",
		Manufacturer: "thelearningtablet",
		Model:        "MOCK-01",
		Description:  "模擬タブレットから学習したプロトコルマッピング",
	})
	if err != nil {
		log.Fatalf("設定の確定に失敗しました: %v", err)
	}

	data, err := mappingConfig.ToJSON(cfg.Output.Pretty)
	if err != nil {
		log.Fatalf("設定のシリアライズに失敗しました: %v", err)
	}
	fmt.Println(string(data))
}

func handleSignals() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("シャットダウンします...")
		os.Exit(0)
	}()
}
