// Package config loads and persists the indexer settings: a YAML file
// under the user's config directory, with defaults seeded on first run.
package config

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// Settings is the configuration surface recognized by every command.
type Settings struct {
	RootDir            string   `json:"rootDir" mapstructure:"root_dir"`
	MediaExtensions    []string `json:"mediaExtensions" mapstructure:"media_extensions"`
	SubtitleExtensions []string `json:"subtitleExtensions" mapstructure:"subtitle_extensions"`
	MinEnglishRatio    float64  `json:"minEnglishRatio" mapstructure:"min_english_ratio"`
	DBPath             string   `json:"dbPath" mapstructure:"db_path"`
	MaxWorkers         int      `json:"maxWorkers" mapstructure:"max_workers"`
	WorkQueueCapacity  int      `json:"workQueueCapacity" mapstructure:"work_queue_capacity"`
	LogRingSize        int      `json:"logRingSize" mapstructure:"log_ring_size"`
	BusyTimeoutMs      int      `json:"busyTimeoutMs" mapstructure:"busy_timeout_ms"`
}

func getConfigPath() (string, error) {
	configDir := filepath.Join(xdg.ConfigHome, "indexer-quick")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.yaml"), nil
}

// InitConfig points viper at customPath (or the XDG default), seeds every
// default, and writes the file out if it doesn't exist yet.
func InitConfig(customPath string) error {
	if customPath != "" {
		viper.SetConfigFile(customPath)
	} else {
		configPath, err := getConfigPath()
		if err != nil {
			return err
		}

		viper.SetConfigFile(configPath)
		viper.SetConfigType("yaml")
	}

	viper.SetDefault("root_dir", "")
	viper.SetDefault("media_extensions", []string{"mp4", "mkv", "avi", "mov", "m4v", "webm", "mp3", "wav", "flac", "m4a"})
	viper.SetDefault("subtitle_extensions", []string{"srt", "smi", "ass", "ssa"})
	viper.SetDefault("min_english_ratio", 0.6)
	viper.SetDefault("db_path", "")
	viper.SetDefault("max_workers", 0) // 0 means worker.DefaultWorkerCount()
	viper.SetDefault("work_queue_capacity", 256)
	viper.SetDefault("log_ring_size", 200)
	viper.SetDefault("busy_timeout_ms", 5000)

	// Create config if it doesn't exist
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Save default config
			if err := viper.SafeWriteConfig(); err != nil {
				return err
			}
		} else {
			return err
		}
	}

	return nil
}

// SaveSettings persists settings to the active config file.
func SaveSettings(settings Settings) error {
	viper.Set("root_dir", settings.RootDir)
	viper.Set("media_extensions", settings.MediaExtensions)
	viper.Set("subtitle_extensions", settings.SubtitleExtensions)
	viper.Set("min_english_ratio", settings.MinEnglishRatio)
	viper.Set("db_path", settings.DBPath)
	viper.Set("max_workers", settings.MaxWorkers)
	viper.Set("work_queue_capacity", settings.WorkQueueCapacity)
	viper.Set("log_ring_size", settings.LogRingSize)
	viper.Set("busy_timeout_ms", settings.BusyTimeoutMs)

	configPath, err := getConfigPath()
	if err != nil {
		return err
	}

	viper.SetConfigFile(configPath)
	return viper.WriteConfig()
}

// LoadSettings unmarshals the currently active viper config.
func LoadSettings() (Settings, error) {
	var settings Settings
	if err := viper.Unmarshal(&settings); err != nil {
		return Settings{}, err
	}
	return settings, nil
}
