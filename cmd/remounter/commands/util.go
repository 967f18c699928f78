package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/marmos91/remounter/internal/logger"
	"github.com/marmos91/remounter/pkg/config"
	"github.com/marmos91/remounter/pkg/share"
)

// errProcessDone is returned by stopProcess when the daemon already exited.
var errProcessDone = errors.New("process already finished")

// InitLogger initializes the structured logger from configuration.
func InitLogger(cfg *config.Config) error {
	loggerCfg := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if err := logger.Init(loggerCfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// GetDefaultPidFile returns the default PID file path.
func GetDefaultPidFile() string {
	return filepath.Join(config.GetStateDir(), "remounter.pid")
}

// GetDefaultLogFile returns the default log file path for daemon mode.
func GetDefaultLogFile() string {
	return filepath.Join(config.GetStateDir(), "remounter.log")
}

// readPidFile returns the PID stored at path.
func readPidFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid PID in %s: %q", path, strings.TrimSpace(string(data)))
	}
	return pid, nil
}

// writePidFile records the current process ID at path.
func writePidFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create PID file directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	return nil
}

// applyArgs lets `[host] [shares]` positional arguments and the -p flag
// override the configuration file. shares is a comma-separated list.
func applyArgs(cfg *config.Config, args []string, script string) {
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		cfg.Host = strings.TrimSpace(args[0])
	}
	if len(args) > 1 {
		names := share.ParseList(args[1])
		shares := make([]config.ShareConfig, 0, len(names))
		for _, n := range names {
			shares = append(shares, config.ShareConfig{Name: n})
		}
		cfg.Shares = shares
	}
	if script != "" {
		cfg.Hook.Script = script
	}
}

// getConfigSource describes where the configuration was loaded from.
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}
