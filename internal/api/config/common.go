package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Cfg 全局可访问的配置实例
var Cfg *Config

// LoadConfig 从文件加载配置并填充到 Cfg
func LoadConfig() error {
	_ = godotenv.Load(".env")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")

	// KEEPSAKE_REDIS_ADDR 覆盖 redis.addr
	viper.SetEnvPrefix("KEEPSAKE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("config file not found: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	Cfg = &cfg

	return nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("jwt.expire_hours", 24)
	viper.SetDefault("jwt.issuer", "Keepsake")
	viper.SetDefault("vault.session_minutes", 10)
	viper.SetDefault("realtime.write_timeout_seconds", 10)
	viper.SetDefault("realtime.ping_interval_seconds", 30)
	viper.SetDefault("realtime.max_subscriptions", 32)
	viper.SetDefault("media.presign_minutes", 15)
	viper.SetDefault("media.pending_ttl_hours", 24)
	viper.SetDefault("media.thumb_width", 320)
	viper.SetDefault("mongo.database", "keepsake")
}
