package types

// ResponderConf 包含监听端口和固定回复的配置
type ResponderConf struct {
	Host         string `ini:"host"`
	Port         int    `ini:"port"`
	ReuseAddress bool   `ini:"reuse_address"`
	ReadSize     int    `ini:"read_size"`
	ReplyHex     string `ini:"reply_hex"` // 为空时使用内置的 54 字节回复
}

// WebConf 包含监控面板的配置, WebPort 为 0 时关闭
type WebConf struct {
	WebPort     int    `ini:"web_port"`
	WebUser     string `ini:"web_user"`
	WebPassword string `ini:"web_password"`
}

// LogConf contains logging specific configuration
type LogConf struct {
	Level string `ini:"level"`
}

// Config 是 responder 的统一配置结构体
type Config struct {
	ResponderConf `ini:"responder"`
	WebConf       `ini:"web"`
	LogConf       `ini:"log"`
}
