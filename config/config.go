package config

import (
	"sync"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

var once sync.Once

var defaults = map[string]interface{}{
	"metrics_port":         9090,
	"debug":                false,
	"lang":                 "en",
	"log_level":            "info",
	"db_driver":            "sqlite",
	"db_dsn":               "data/bot.db",
	"redis_addr":           "localhost:6379",
	"redis_password":       "",
	"redis_db":             0,
	"provider_url":         "https://api.dexscreener.com",
	"fetch_timeout":        10 * time.Second,
	"fetch_concurrency":    8,
	"notify_timeout":       10 * time.Second,
	"alert_interval":       60 * time.Second,
	"watch_interval":       300 * time.Second,
	"volatility_threshold": 20.0,
}

func InitConfig() {
	once.Do(func() {
		// a missing .env is normal outside development
		if err := godotenv.Load(); err == nil {
			log.Debug("Loaded environment from .env")
		}

		viper.AutomaticEnv()

		for key, value := range defaults {
			viper.BindEnv(key)
			viper.SetDefault(key, value)
		}
		viper.BindEnv("telegram_bot_token", "TELEGRAM_BOT_TOKEN")
		viper.BindEnv("lang", "BOT_LANG", "LANG")
	})
}

func GetString(key string) string {
	InitConfig()
	return viper.GetString(key)
}

func GetInt(key string) int {
	InitConfig()
	return viper.GetInt(key)
}

func GetBool(key string) bool {
	InitConfig()
	return viper.GetBool(key)
}

func GetFloat64(key string) float64 {
	InitConfig()
	return viper.GetFloat64(key)
}

// GetDuration accepts Go durations ("90s") and plain numbers of seconds. A zero or
// negative value falls back to the key's default.
func GetDuration(key string) time.Duration {
	InitConfig()
	d := parseDuration(key)
	if d > 0 {
		return d
	}
	if def, ok := defaults[key].(time.Duration); ok {
		log.Warnf("%s must be positive, got %q; using %s", key, viper.GetString(key), def)
		return def
	}
	return d
}

func parseDuration(key string) time.Duration {
	raw := viper.GetString(key)
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if secs := viper.GetFloat64(key); secs != 0 {
		return time.Duration(secs * float64(time.Second))
	}
	return viper.GetDuration(key)
}
