package orchestrators

import "github.com/ochairo/pybuild/internal/domain/interfaces"

// fieldLogger prepends a fixed set of fields to every entry
type fieldLogger struct {
	base   interfaces.Logger
	fields []interfaces.Field
}

func (l *fieldLogger) with(fields []interfaces.Field) []interfaces.Field {
	out := make([]interfaces.Field, 0, len(l.fields)+len(fields))
	out = append(out, l.fields...)
	return append(out, fields...)
}

func (l *fieldLogger) Debug(msg string, fields ...interfaces.Field) { l.base.Debug(msg, l.with(fields)...) }
func (l *fieldLogger) Info(msg string, fields ...interfaces.Field) { l.base.Info(msg, l.with(fields)...) }
func (l *fieldLogger) Warn(msg string, fields ...interfaces.Field) { l.base.Warn(msg, l.with(fields)...) }
func (l *fieldLogger) Error(msg string, fields ...interfaces.Field) { l.base.Error(msg, l.with(fields)...) }
