package wa

import (
	waLog "go.mau.fi/whatsmeow/util/log"
	"go.uber.org/zap"
)

type zapLogger struct {
	s *zap.SugaredLogger
}

// NewZapLogger routes whatsmeow's logging into zap.
func NewZapLogger(logger *zap.Logger) waLog.Logger {
	return zapLogger{s: logger.Sugar()}
}

func (l zapLogger) Errorf(msg string, args ...any) { l.s.Errorf(msg, args...) }
func (l zapLogger) Warnf(msg string, args ...any)  { l.s.Warnf(msg, args...) }
func (l zapLogger) Infof(msg string, args ...any)  { l.s.Infof(msg, args...) }
func (l zapLogger) Debugf(msg string, args ...any) { l.s.Debugf(msg, args...) }

func (l zapLogger) Sub(module string) waLog.Logger {
	return zapLogger{s: l.s.Named(module)}
}
