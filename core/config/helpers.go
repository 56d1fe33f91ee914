package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// GetAllSettings returns a map of the non-secret settings currently loaded in memory.
func GetAllSettings() map[string]any {
	if Global == nil {
		return map[string]any{}
	}
	return map[string]any{
		"app_debug":                 Global.App.Debug,
		"app_version":               Global.App.Version,
		"accounts":                  len(Global.Accounts),
		"rate_limit_per_hour":       Global.RateLimit.MaxPerHour,
		"rate_limit_per_day":        Global.RateLimit.MaxPerDay,
		"rate_limit_store":          Global.RateLimit.Store,
		"session_qr_ttl":            Global.Session.QRTTL.String(),
		"session_reconnect_delay":   Global.Session.ReconnectDelay.String(),
		"events_heartbeat_interval": Global.Events.HeartbeatInterval.String(),
		"webhook_enabled":           Global.Webhook.BaseURL != "",
		"valkey_enabled":            Global.Database.ValkeyEnabled,
	}
}

// Helpers

// getEnv reads the process environment first, then whatever viper loaded
// from the config file under the lower-cased key.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	if v := viper.GetString(strings.ToLower(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := getEnv(key, ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := getEnv(key, ""); v != "" {
		vLower := strings.ToLower(v)
		return vLower == "1" || vLower == "true" || vLower == "yes" || vLower == "on"
	}
	return fallback
}

// getEnvDuration accepts Go durations ("90s", "2m") or plain seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return fallback
}
