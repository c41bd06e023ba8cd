package oteltrace

import (
	"context"

	"github.com/Zhima-Mochi/library-circulation/internal/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type tracer struct{ t trace.Tracer }

// New uses the global tracer provider; main installs an SDK provider before wiring.
func New(name string) observability.Tracer {
	if name == "" {
		name = "library-circulation"
	}
	return &tracer{t: otel.Tracer(name)}
}

// FromProvider binds to an explicit provider, which tests use with a span recorder.
func FromProvider(tp trace.TracerProvider, name string) observability.Tracer {
	if name == "" {
		name = "library-circulation"
	}
	return &tracer{t: tp.Tracer(name)}
}

func (t *tracer) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.t.Start(ctx, name, trace.WithAttributes(attrs...))
}
