package logging

import "go.uber.org/zap"

// New returns a console zap logger at the given level ("debug", "info", "warn", "error").
func New(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Encoding = "console"
	cfg.Level = lvl
	return cfg.Build()
}
