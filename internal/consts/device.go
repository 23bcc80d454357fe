package consts

// hidrawデバイス制御用の定数（hidraw.hから）
const (
	HidIocGRDescSize = 0x80044801 // レポートディスクリプタサイズ取得用のIOCTL
	HidIocGRawInfo   = 0x80084803 // デバイス情報(バスタイプ/ベンダーID/製品ID)取得用のIOCTL
	HidIocGRawName   = 0x80004804 // デバイス名取得用のIOCTL（長さは上位16bitに埋め込む）
	BusUsb           = 0x03       // USBバスタイプ
)

// その他のデバイス関連定数
const (
	DeviceNameMax      = 256      // デバイス名バッファの最大サイズ
	DevDirectory       = "/dev"   // hidrawノードが作成されるディレクトリ
	HidRawPrefix       = "hidraw" // hidrawデバイスノードの接頭辞
	DigitizerUsagePage = 0x0d     // デジタイザのHIDユーセージページ
)
