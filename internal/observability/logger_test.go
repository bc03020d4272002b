package observability

import (
	"context"
	"testing"
)

func TestWithFields_AppendsToExisting(t *testing.T) {
	ctx := context.Background()
	ctx = WithFields(ctx, Field{Key: "request_id", Value: "req-1"})
	ctx = WithFields(ctx, Field{Key: "order_id", Value: "ord-1"})

	fields := getObservabilityFields(ctx)
	if len(fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(fields))
	}
	if fields[0].Key != "request_id" || fields[1].Key != "order_id" {
		t.Errorf("fields out of order: %+v", fields)
	}
}

func TestGetObservabilityFields_EmptyContext(t *testing.T) {
	fields := getObservabilityFields(context.Background())
	if fields != nil {
		t.Errorf("expected nil fields for bare context, got %+v", fields)
	}
}

func TestMergeFields_DeduplicatesByKey(t *testing.T) {
	ctx := WithFields(context.Background(), Field{Key: "gateway", Value: "stripe"})
	merged := mergeFields(ctx, []MetricField{
		{Key: "gateway", Value: "paypal"},
		{Key: "status", Value: 200},
	})
	if len(merged) != 2 {
		t.Fatalf("expected 2 merged fields, got %d", len(merged))
	}
}
