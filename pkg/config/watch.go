package config

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/marmos91/remounter/internal/logger"
)

// Watch reloads the configuration file whenever it changes and hands every
// version that decodes and validates to fn. Broken edits are logged and
// skipped; the previous configuration stays in effect.
//
// configPath may be empty to watch the default location. The file has to
// exist when Watch is called.
func Watch(configPath string, fn func(*Config)) error {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("no configuration file to watch")
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := decode(v)
		if err == nil {
			err = Validate(cfg)
		}
		if err != nil {
			logger.Warn("Ignoring invalid configuration change", "file", e.Name, logger.Err(err))
			return
		}
		logger.Info("Configuration reloaded", "file", e.Name)
		fn(cfg)
	})
	v.WatchConfig()
	return nil
}
