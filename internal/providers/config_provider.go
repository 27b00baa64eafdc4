package providers

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"ytmon/internal/structures"
)

func NewConfigProvider(flags *structures.CliFlags) (*structures.Config, error) {
	var conf structures.Config

	filename := filepath.Base(flags.ConfigPath)
	viper.AddConfigPath(filepath.Dir(flags.ConfigPath))
	viper.SetConfigName(strings.TrimSuffix(filename, filepath.Ext(filename)))
	viper.SetConfigType("yaml")

	viper.SetDefault("monitor.scanInterval", 60)
	viper.SetDefault("monitor.scanIntervalRecommended", 1800)
	viper.SetDefault("monitor.fetchRecommended", true)
	viper.SetDefault("monitor.duplicateMinutes", 5)
	viper.SetDefault("monitor.refreshCooldown", 600)
	viper.SetDefault("source.timezone", "Asia/Seoul")

	viper.BindEnv("logger.level", "YTMON_LOG_LEVEL")
	viper.BindEnv("source.cookiesPath", "YTMON_COOKIES_PATH")
	viper.BindEnv("source.timezone", "TZ")
	viper.BindEnv("monitor.scanInterval", "YTMON_SCAN_INTERVAL")
	viper.BindEnv("monitor.scanIntervalRecommended", "YTMON_SCAN_INTERVAL_RECOMMENDED")
	viper.BindEnv("monitor.fetchRecommended", "YTMON_FETCH_RECOMMENDED")
	viper.BindEnv("monitor.duplicateMinutes", "YTMON_DUPLICATE_MINUTES")
	viper.BindEnv("cache.enabled", "YTMON_CACHE_ENABLED")
	viper.BindEnv("cache.size", "YTMON_CACHE_SIZE")

	err := viper.ReadInConfig()
	if err != nil {
		return nil, err
	}

	err = viper.Unmarshal(&conf)
	if err != nil {
		return nil, fmt.Errorf("unable to decode into config struct: %w", err)
	}

	cnfValidator := NewCnfValidator(&conf)
	err = cnfValidator.Validate()
	if err != nil {
		return nil, err
	}

	conf.AppName = "YouTubeMonitoringDaemon"
	conf.Path = flags.ConfigPath
	conf.Debug = flags.DebugMode

	return &conf, nil
}
