package consts

// セマンティックチャンネル名の定数
// 分類器が生成するマッピングのキーとしてそのままJSONに現れる
const (
	ChannelX             = "x"
	ChannelY             = "y"
	ChannelPressure      = "pressure"
	ChannelTiltX         = "tiltX"
	ChannelTiltY         = "tiltY"
	ChannelStatus        = "status"
	ChannelTabletButtons = "tabletButtons"
)

// デコード結果でボタンビットに付与されるキーの接頭辞
// ビットiは button{i+1} となる
const ButtonKeyPrefix = "button"
