package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace"
)

func TestUserContext(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetUserID(ctx))
	assert.False(t, HasRole(ctx, "pharmacist"))

	ctx = WithUser(ctx, &UserContext{UserID: "u1", PharmacyID: "ph1", Roles: []string{"pharmacist"}})
	assert.Equal(t, "u1", GetUserID(ctx))
	assert.Equal(t, "ph1", GetPharmacyID(ctx))
	assert.True(t, HasRole(ctx, "pharmacist"))
	assert.False(t, HasRole(ctx, "admin"))
}

func TestTraceContext(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetTraceID(ctx))
	assert.Empty(t, GetRequestID(ctx))

	tc := TraceFromSpan(trace.SpanContext{}, "", "")
	ctx = WithTrace(ctx, tc)
	assert.Equal(t, tc.TraceID, GetTraceID(ctx))
	assert.Equal(t, tc.RequestID, GetRequestID(ctx))
	assert.Len(t, tc.SpanID, 16)
}

func TestTraceFromSpan(t *testing.T) {
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: trace.TraceID{0x01, 0x02},
		SpanID:  trace.SpanID{0x03},
	})

	tests := []struct {
		name      string
		sc        trace.SpanContext
		client    string
		requestID string
		wantTrace string
	}{
		{"span wins over client header", sc, "client-trace", "r-1", sc.TraceID().String()},
		{"client header without span", trace.SpanContext{}, "client-trace", "r-1", "client-trace"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := TraceFromSpan(tt.sc, tt.client, tt.requestID)
			assert.Equal(t, tt.wantTrace, tc.TraceID)
			assert.Equal(t, "r-1", tc.RequestID)
			assert.NotEmpty(t, tc.SpanID)
		})
	}
}
