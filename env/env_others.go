//go:build !linux

package env

import (
	"errors"
	"runtime"

	"github.com/kaiju-coding/codejudge/env/pool"
	"go.uber.org/zap"
)

// NewBuilder returns an error on platforms without namespace sandbox
func NewBuilder(c Config, logger *zap.Logger) (pool.EnvBuilder, map[string]any, error) {
	logger.Error("environment is not supported", zap.String("os", runtime.GOOS))
	return nil, nil, errors.New("environment is not support on this platform " + runtime.GOOS)
}
