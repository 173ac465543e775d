package otelhelper

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrorMessageKey carries the failure message on flowdesk error events.
const ErrorMessageKey = "flowdesk.error.message"

// SetError marks the span failed and records the failure as a flowdesk
// error event, keeping whatever run or step attributes the caller
// already attached.
func SetError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.AddEvent("flowdesk.error", trace.WithAttributes(
		append(attrs, attribute.String(ErrorMessageKey, err.Error()))...,
	))
}
