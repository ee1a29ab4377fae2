// Package logging builds the process logger. Export mode logs to the
// console; live mode logs to a file under the config directory because
// the TUI owns the terminal.
package logging

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"midiphoria/config"
)

// NewConsole returns a console logger for batch runs.
func NewConsole(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}

// NewFile returns a logger writing JSON lines to debug.log in the
// config directory.
func NewFile() (*zap.Logger, error) {
	dir, err := config.Dir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{filepath.Join(dir, "debug.log")}
	cfg.ErrorOutputPaths = cfg.OutputPaths
	return cfg.Build()
}
