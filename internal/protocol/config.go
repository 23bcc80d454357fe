package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bengfarrell/thelearningtablet/internal/consts"
)

// ErrConfigParse は入力が構造化データとして解析できない場合のエラー
var ErrConfigParse = errors.New("設定JSONの解析に失敗しました")

// ErrConfigType は解析はできたがトップレベルがオブジェクトではない場合のエラー
var ErrConfigType = errors.New("設定JSONのトップレベルはオブジェクトである必要があります")

// FieldMissingError は必須フィールドの欠落を表すエラー
// 固定の検査順で最初に欠けていたフィールド名を保持する
type FieldMissingError struct {
	Field string
}

func (e *FieldMissingError) Error() string {
	return fmt.Sprintf("必須フィールド %q がありません", e.Field)
}

// requiredFields は必須トップレベルフィールドの固定検査順
var requiredFields = []string{
	"name",
	"manufacturer",
	"model",
	"description",
	"vendorId",
	"productId",
	"deviceInfo",
	"reportId",
	"digitizerUsagePage",
	"capabilities",
	"byteCodeMappings",
}

// Resolution はX/Y軸の観測分解能を表す
type Resolution struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Capabilities はマッピングと操作者入力から導出されたデバイス性能を表す
type Capabilities struct {
	HasPressure    bool       `json:"hasPressure"`
	HasTilt        bool       `json:"hasTilt"`
	HasButtons     bool       `json:"hasButtons"`
	ButtonCount    int        `json:"buttonCount"`
	PressureLevels int        `json:"pressureLevels"`
	Resolution     Resolution `json:"resolution"`
}

// DeviceInfo はキャプチャ時にOSから報告されたデバイス情報を表す
type DeviceInfo struct {
	VendorID    int    `json:"vendorId"`
	ProductID   int    `json:"productId"`
	ProductName string `json:"productName"`
}

// Config は永続化されるマッピング設定の集約
// 作成後は不変として扱い、変更は新しいConfigを生成する
type Config struct {
	Name               string           `json:"name"`
	Manufacturer       string           `json:"manufacturer"`
	Model              string           `json:"model"`
	Description        string           `json:"description"`
	VendorID           int              `json:"vendorId"`
	ProductID          int              `json:"productId"`
	DeviceInfo         DeviceInfo       `json:"deviceInfo"`
	ReportID           int              `json:"reportId"`
	DigitizerUsagePage int              `json:"digitizerUsagePage"`
	Capabilities       Capabilities     `json:"capabilities"`
	ByteCodeMappings   ByteCodeMappings `json:"byteCodeMappings"`
}

// ParseConfig はJSONバイト列を検証付きでConfigへ復元する
// 構文不正は ErrConfigParse、トップレベル型不正は ErrConfigType、
// 必須フィールド欠落は欠けたフィールド名を持つ FieldMissingError を返す
func ParseConfig(data []byte) (*Config, error) {
	if !json.Valid(data) {
		return nil, ErrConfigParse
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, ErrConfigType
	}

	for _, field := range requiredFields {
		if _, ok := top[field]; !ok {
			return nil, &FieldMissingError{Field: field}
		}
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("設定の復元に失敗しました: %w", err)
	}
	return &cfg, nil
}

// ToJSON はConfigをシリアライズする
// pretty=trueの場合はインデント付き、falseの場合はコンパクト形式になる
// どちらの形式も ParseConfig で等価な値に復元できる
func (c *Config) ToJSON(pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(c, "", "  ")
	}
	return json.Marshal(c)
}

// Metadata は操作者が入力するデバイスのメタデータ
type Metadata struct {
	Name         string
	Manufacturer string
	Model        string
	Description  string
	ButtonCount  int
}

// BuildConfig は分類器の出力と操作者メタデータから新しいConfigを構築する
// 性能フラグはどのチャンネルが分類されたかから直接導出される
// reportByteLength はレポート長で、全byteIndexがこれ未満であることを検証する
func BuildConfig(mappings ByteCodeMappings, meta Metadata, info DeviceInfo, reportID int, reportByteLength int) (*Config, error) {
	for _, name := range mappings.Channels() {
		for _, idx := range mappings[name].ByteIndexes() {
			if idx < 0 || idx >= reportByteLength {
				return nil, fmt.Errorf("チャンネル %q のbyteIndex %d がレポート長 %d を超えています", name, idx, reportByteLength)
			}
		}
	}

	caps := deriveCapabilities(mappings)
	if meta.ButtonCount > 0 {
		caps.ButtonCount = meta.ButtonCount
	}

	return &Config{
		Name:               meta.Name,
		Manufacturer:       meta.Manufacturer,
		Model:              meta.Model,
		Description:        meta.Description,
		VendorID:           info.VendorID,
		ProductID:          info.ProductID,
		DeviceInfo:         info,
		ReportID:           reportID,
		DigitizerUsagePage: consts.DigitizerUsagePage,
		Capabilities:       caps,
		ByteCodeMappings:   mappings.Clone(),
	}, nil
}

// deriveCapabilities はマッピング集合からデバイス性能を導出する
func deriveCapabilities(mappings ByteCodeMappings) Capabilities {
	caps := Capabilities{}

	if m, ok := mappings[consts.ChannelPressure]; ok {
		caps.HasPressure = true
		caps.PressureLevels = linearSpan(m) + 1
	}
	_, tiltX := mappings[consts.ChannelTiltX]
	_, tiltY := mappings[consts.ChannelTiltY]
	caps.HasTilt = tiltX || tiltY

	if m, ok := mappings[consts.ChannelTabletButtons]; ok {
		if flags, isFlags := m.(*BitFlagsMapping); isFlags {
			caps.HasButtons = true
			caps.ButtonCount = flags.ButtonCount
		}
	}

	if m, ok := mappings[consts.ChannelX]; ok {
		caps.Resolution.X = linearSpan(m)
	}
	if m, ok := mappings[consts.ChannelY]; ok {
		caps.Resolution.Y = linearSpan(m)
	}
	return caps
}

// linearSpan は線形マッピングの観測値域幅(max-min)を返す
func linearSpan(m Mapping) int {
	switch spec := m.(type) {
	case *RangeMapping:
		return spec.Max - spec.Min
	case *MultiByteRangeMapping:
		return spec.Max - spec.Min
	}
	return 0
}
