package logctx_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Zhima-Mochi/library-circulation/internal/observability"
	"github.com/Zhima-Mochi/library-circulation/internal/observability/logctx"
)

type recordingLogger struct {
	fields []observability.Field
}

func (l *recordingLogger) With(fields ...observability.Field) observability.Logger {
	return &recordingLogger{fields: append(append([]observability.Field(nil), l.fields...), fields...)}
}
func (l *recordingLogger) Debug(string, ...observability.Field) {}
func (l *recordingLogger) Info(string, ...observability.Field)  {}
func (l *recordingLogger) Warn(string, ...observability.Field)  {}
func (l *recordingLogger) Error(string, ...observability.Field) {}

func Test_FromOr_FallsBackWhenContextHasNoLogger(t *testing.T) {
	fallback := &recordingLogger{}

	assert.Same(t, fallback, logctx.FromOr(context.Background(), fallback))
}

func Test_Enrich_StoresBoundLoggerOnContext(t *testing.T) {
	fallback := &recordingLogger{}

	ctx, logger := logctx.Enrich(context.Background(), fallback, observability.F("patron_id", "123456"))

	bound, ok := logger.(*recordingLogger)
	assert.True(t, ok)
	assert.Equal(t, []observability.Field{observability.F("patron_id", "123456")}, bound.fields)
	assert.Same(t, logger, logctx.From(ctx))
}
