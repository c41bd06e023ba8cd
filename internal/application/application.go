package application

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Zhima-Mochi/library-circulation/internal/observability"
	"github.com/Zhima-Mochi/library-circulation/internal/observability/logctx"
)

const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"

	spanPrefix = "UC."
)

// Instruments holds the RED metrics and base logger shared by every use case of one service.
// Instruments are resolved once at construction, never inside a call.
type Instruments struct {
	tracer observability.Tracer
	log    observability.Logger

	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}

	extCounter   observability.Counter   // external_requests_total{peer,endpoint,outcome}
	extHistogram observability.Histogram // external_request_duration_seconds{peer,endpoint}
}

// NewInstruments binds the service name onto the logger. A nil tel yields no-op instruments.
func NewInstruments(tel observability.Observability, service string) Instruments {
	if tel == nil {
		tel = observability.Nop()
	}
	m := tel.Metrics()
	return Instruments{
		tracer:       tel.Tracer(),
		log:          tel.Logger().With(observability.F("service", service)),
		reqCounter:   m.Counter(observability.MUsecaseRequests),
		durHistogram: m.Histogram(observability.MUsecaseDuration),
		extCounter:   m.Counter(observability.MExternalRequests),
		extHistogram: m.Histogram(observability.MExternalRequestDuration),
	}
}

// Logger returns the service logger.
func (in Instruments) Logger() observability.Logger { return in.log }

// Run is one in-flight use case execution. Callers set the outcome as they go and
// call End exactly once, normally deferred.
type Run struct {
	ctx     context.Context
	span    trace.Span
	start   time.Time
	useCase string
	log     observability.Logger

	outcome string
	status  string
	err     error
	fields  []observability.Field
}

// Begin opens a span named UC.<spanName> and starts the latency clock.
func (in Instruments) Begin(ctx context.Context, useCase, spanName string, attrs ...attribute.KeyValue) (context.Context, *Run) {
	logger := logctx.FromOr(ctx, in.log).With(observability.F("use_case", useCase))

	attrs = append([]attribute.KeyValue{attribute.String("use_case", useCase)}, attrs...)
	ctx, span := in.tracer.Start(ctx, spanPrefix+spanName, attrs...)
	ctx = logctx.With(ctx, logger)

	return ctx, &Run{
		ctx:     ctx,
		span:    span,
		start:   time.Now(),
		useCase: useCase,
		log:     logger,
		outcome: OutcomeSuccess,
		status:  "OK",
	}
}

// Logger returns the use-case scoped logger.
func (r *Run) Logger() observability.Logger { return r.log }

// Span returns the use-case span.
func (r *Run) Span() trace.Span { return r.span }

// Reject marks a business rule refusal; status is a low-cardinality code.
func (r *Run) Reject(status string) {
	r.outcome, r.status = OutcomeRejected, status
}

// Fail marks a collaborator fault.
func (r *Run) Fail(status string, err error) {
	r.outcome, r.status, r.err = OutcomeError, status, err
}

// Annotate adds fields to the final use_case_done log line.
func (r *Run) Annotate(fields ...observability.Field) {
	r.fields = append(r.fields, fields...)
}

// End closes the span, records the RED metrics and writes the use_case_done line.
func (r *Run) End(in Instruments) {
	lat := time.Since(r.start).Seconds()

	if r.span != nil {
		r.span.SetAttributes(attribute.String("outcome", r.outcome))
		if r.err != nil {
			r.span.RecordError(r.err)
			r.span.SetStatus(codes.Error, r.status)
		} else {
			r.span.SetStatus(codes.Ok, r.status)
		}
		r.span.End()
	}

	if in.reqCounter != nil {
		in.reqCounter.Add(1,
			observability.L("use_case", r.useCase),
			observability.L("outcome", r.outcome),
		)
	}
	if in.durHistogram != nil {
		in.durHistogram.Observe(lat,
			observability.L("use_case", r.useCase),
		)
	}

	fields := []observability.Field{
		observability.F("outcome", r.outcome),
		observability.F("status", r.status),
		observability.F("latency_seconds", lat),
	}
	if sc := trace.SpanContextFromContext(r.ctx); sc.IsValid() {
		fields = append(fields,
			observability.F("trace_id", sc.TraceID().String()),
			observability.F("span_id", sc.SpanID().String()),
		)
	}
	fields = append(fields, r.fields...)
	if r.err != nil {
		fields = append(fields, observability.F("error", r.err.Error()))
	}

	if r.outcome == OutcomeError {
		r.log.Warn("use_case_done", fields...)
		return
	}
	r.log.Info("use_case_done", fields...)
}

// External records one outbound call against a peer.
func (in Instruments) External(peer, endpoint, outcome string, start time.Time) {
	if in.extCounter != nil {
		in.extCounter.Add(1,
			observability.L("peer", peer),
			observability.L("endpoint", endpoint),
			observability.L("outcome", outcome),
		)
	}
	if in.extHistogram != nil {
		in.extHistogram.Observe(time.Since(start).Seconds(),
			observability.L("peer", peer),
			observability.L("endpoint", endpoint),
		)
	}
}
