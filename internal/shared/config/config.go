package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"

	"fixedreply/internal/shared/types"
	"gopkg.in/ini.v1"
)

const (
	DefaultHost     = "0.0.0.0"
	DefaultPort     = 19000
	DefaultReadSize = 1024
)

// Default 返回内置默认配置: 0.0.0.0:19000, 允许地址复用。
func Default() *types.Config {
	return &types.Config{
		ResponderConf: types.ResponderConf{
			Host:         DefaultHost,
			Port:         DefaultPort,
			ReuseAddress: true,
			ReadSize:     DefaultReadSize,
		},
		LogConf: types.LogConf{Level: "info"},
	}
}

// LoadIni 加载 responder.ini 并覆盖到 cfg 上。
// 文件不存在时保留 cfg 中已有的值。
func LoadIni(cfg *types.Config, fileName string) error {
	if _, err := os.Stat(fileName); err != nil {
		if os.IsNotExist(err) {
			overrideFromEnvInt(&cfg.ResponderConf.Port, "RESPONDER_PORT")
			return Validate(cfg)
		}
		return err
	}
	iniFile, err := ini.Load(fileName)
	if err != nil {
		return err
	}
	if err := iniFile.MapTo(cfg); err != nil {
		return err
	}
	overrideFromEnvInt(&cfg.ResponderConf.Port, "RESPONDER_PORT")
	return Validate(cfg)
}

// Validate checks ranges and that reply_hex decodes.
func Validate(cfg *types.Config) error {
	if cfg.ResponderConf.Port < 0 || cfg.ResponderConf.Port > 65535 {
		return fmt.Errorf("invalid port %d", cfg.ResponderConf.Port)
	}
	if cfg.ResponderConf.ReadSize <= 0 {
		return fmt.Errorf("read_size must be positive, got %d", cfg.ResponderConf.ReadSize)
	}
	if cfg.WebConf.WebPort < 0 || cfg.WebConf.WebPort > 65535 {
		return fmt.Errorf("invalid web_port %d", cfg.WebConf.WebPort)
	}
	if _, err := ParseReplyHex(cfg.ResponderConf.ReplyHex); err != nil {
		return err
	}
	return nil
}

// ParseReplyHex decodes a hex string, ignoring whitespace. An empty string
// yields a nil slice, meaning "use the built-in reply".
func ParseReplyHex(s string) ([]byte, error) {
	s = strings.Join(strings.Fields(s), "")
	if s == "" {
		return nil, nil
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid reply_hex: %w", err)
	}
	return b, nil
}

func overrideFromEnvInt(target *int, envName string) {
	envValue := os.Getenv(envName)
	if envValue != "" {
		if intValue, err := strconv.Atoi(envValue); err == nil {
			*target = intValue
		}
	}
}
