package tracing

import (
	"context"
	"testing"
)

func TestInitTracing_Disabled(t *testing.T) {
	tr, err := InitTracing(Config{Enabled: false})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if GetTracer() != tr {
		t.Error("Expected the disabled tracer to be installed globally")
	}

	_, span := tr.StartSpan(context.Background(), "storage.save")
	defer span.End()
	if span.SpanContext().IsValid() {
		t.Error("Expected a no-op span when tracing is disabled")
	}

	if err := Shutdown(context.Background()); err != nil {
		t.Errorf("Expected shutdown without a provider to succeed, got %v", err)
	}
}
