package log

import (
	"fmt"
	"io"
	"os"

	"github.com/tb0hdan/ctlog-checker/pkg/configs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New initializes the zap logger writing to stderr, leaving stdout to reports
func New(config configs.LoggingConfig) (*zap.Logger, error) {
	return NewWithWriter(config, os.Stderr)
}

// NewWithWriter initializes the zap logger on an arbitrary sink
func NewWithWriter(config configs.LoggingConfig, out io.Writer) (*zap.Logger, error) {
	// Parse log level
	level, err := zapcore.ParseLevel(config.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	// Create encoder config
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	// Create encoder based on format
	var encoder zapcore.Encoder
	switch config.Format {
	case "console":
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	default:
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	core := zapcore.NewCore(
		encoder,
		zapcore.AddSync(out),
		level,
	)

	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}
