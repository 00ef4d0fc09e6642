package log

import (
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// RetryLogger routes retryablehttp messages into zap. Key/value pairs become
// structured fields.
type RetryLogger struct {
	logger *zap.SugaredLogger
}

func (l *RetryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, keysAndValues...)
}

func (l *RetryLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Infow(msg, keysAndValues...)
}

// Debug is used by retryablehttp for every request, keep it at debug level.
func (l *RetryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l *RetryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warnw(msg, keysAndValues...)
}

func NewRetryLogger(logger *zap.Logger) retryablehttp.LeveledLogger {
	return &RetryLogger{logger: logger.With(zap.String("component", "http")).Sugar()}
}
