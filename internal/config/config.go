package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config はアプリケーション全体の設定を表す構造体
type Config struct {
	Server     ServerConfig     `toml:"server"`
	Capture    CaptureConfig    `toml:"capture"`
	Classifier ClassifierConfig `toml:"classifier"`
	Output     OutputConfig     `toml:"output"`
}

// ServerConfig はウィザードAPIサーバーの設定
type ServerConfig struct {
	Port        int  `toml:"port"`
	OpenBrowser bool `toml:"open_browser"`
}

// CaptureConfig はパケットキャプチャの設定
type CaptureConfig struct {
	DeviceGlob    string `toml:"device_glob"`     // hidrawデバイスノードの検索パターン
	MaxPackets    int    `toml:"max_packets"`     // 1ステップあたりの保持パケット数上限
	ReportIDIndex int    `toml:"report_id_index"` // レポートIDが入るバイト位置
}

// ClassifierConfig は分類アルゴリズムの調整パラメータの設定
type ClassifierConfig struct {
	BipolarGap         int `toml:"bipolar_gap"`          // バイポーラ判定のクラスタ間最小ギャップ
	CodeMaxCardinality int `toml:"code_max_cardinality"` // 離散コードとみなす値種数の上限
	MaxButtons         int `toml:"max_buttons"`          // ビットフラグの最大ボタン数（8または16）
	MultiByteGroupSize int `toml:"multi_byte_group_size"`
}

// OutputConfig はマッピング設定の出力先の設定
type OutputConfig struct {
	MappingDir string `toml:"mapping_dir"` // 確定したマッピングJSONの保存先ディレクトリ
	Pretty     bool   `toml:"pretty"`      // インデント付きで保存するかどうか
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8080,
			OpenBrowser: false,
		},
		Capture: CaptureConfig{
			DeviceGlob:    "/dev/hidraw*",
			MaxPackets:    4096,
			ReportIDIndex: 0,
		},
		Classifier: ClassifierConfig{
			BipolarGap:         16,
			CodeMaxCardinality: 8,
			MaxButtons:         8,
			MultiByteGroupSize: 2,
		},
		Output: OutputConfig{
			MappingDir: "",
			Pretty:     true,
		},
	}
}

// GetDefaultConfigDir はデフォルトの設定ディレクトリを返す
func GetDefaultConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "thelearningtablet"), nil
}

// LoadConfig は設定ファイルから設定を読み込む
func LoadConfig(configPath string) (*Config, error) {
	// デフォルト設定を用意
	config := DefaultConfig()

	// ファイルが存在しない場合はデフォルト設定を保存して返す
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		// 設定ディレクトリの作成
		configDir := filepath.Dir(configPath)
		if err := os.MkdirAll(configDir, 0755); err != nil {
			return config, err
		}

		// デフォルト設定の保存
		if err := SaveConfig(configPath, config); err != nil {
			return config, err
		}

		return config, nil
	}

	// 設定ファイルの読み込み
	if _, err := toml.DecodeFile(configPath, config); err != nil {
		return config, err
	}

	return config, nil
}

// SaveConfig は設定をTOMLファイルに保存する
func SaveConfig(configPath string, config *Config) error {
	// 設定ディレクトリの作成
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return err
	}

	// ファイルを開く（なければ作成）
	f, err := os.Create(configPath)
	if err != nil {
		return err
	}
	defer f.Close()

	// TOML形式でエンコードして書き込み
	encoder := toml.NewEncoder(f)
	return encoder.Encode(config)
}
