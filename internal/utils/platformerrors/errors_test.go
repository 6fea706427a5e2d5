package platformerrors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsErrorPreservesType(t *testing.T) {
	ctx := context.WithValue(context.Background(), RequestIDKey{}, "upd-42")
	inner := NewError(ctx, LayerRepository, ErrorTypeNotFound, "channel not found", nil, "0c1f0d38-3b51-4a57-8a2f-4a4b5a6b7c8d")

	wrapped := AsError(ctx, LayerDomain, fmt.Errorf("lookup: %w", inner), "resolve channel")

	require.NotNil(t, wrapped)
	assert.Equal(t, ErrorTypeNotFound, wrapped.Type)
	assert.Equal(t, LayerDomain, wrapped.Layer)
	assert.Equal(t, "upd-42", wrapped.RequestID)
	assert.Equal(t, inner.UUID, wrapped.UUID)
	assert.True(t, IsErrorType(wrapped, ErrorTypeNotFound))
}

func TestAsErrorClassifiesContextErrors(t *testing.T) {
	ctx := context.Background()

	assert.Nil(t, AsError(ctx, LayerDomain, nil, "noop"))
	assert.Equal(t, ErrorTypeCancelled, AsError(ctx, LayerDomain, context.Canceled, "x").Type)
	assert.Equal(t, ErrorTypeTransient, AsError(ctx, LayerDomain, context.DeadlineExceeded, "x").Type)
	assert.Equal(t, ErrorTypeInternal, AsError(ctx, LayerDomain, errors.New("boom"), "x").Type)
}

func TestIsRetryable(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"transient", NewError(ctx, LayerInfrastructure, ErrorTypeTransient, "reset", nil, ""), true},
		{"quota", NewError(ctx, LayerInfrastructure, ErrorTypeQuotaExceeded, "flood", nil, ""), true},
		{"auth", NewError(ctx, LayerInfrastructure, ErrorTypeUnauthorized, "bad key", nil, ""), false},
		{"not found", NewError(ctx, LayerDomain, ErrorTypeNotFound, "gone", nil, ""), false},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), true},
		{"cancelled", context.Canceled, false},
		{"plain", errors.New("plain"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestErrorTypeToHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, ErrorTypeToHTTPStatus(ErrorTypeNotFound))
	assert.Equal(t, http.StatusTooManyRequests, ErrorTypeToHTTPStatus(ErrorTypeQuotaExceeded))
	assert.Equal(t, http.StatusServiceUnavailable, ErrorTypeToHTTPStatus(ErrorTypeTransient))
	assert.Equal(t, http.StatusServiceUnavailable, ErrorTypeToHTTPStatus(ErrorTypeDatabaseError))
	assert.Equal(t, http.StatusBadGateway, ErrorTypeToHTTPStatus(ErrorTypeExternal))
	assert.Equal(t, StatusClientClosedRequest, ErrorTypeToHTTPStatus(ErrorTypeCancelled))
	assert.Equal(t, http.StatusInternalServerError, ErrorTypeToHTTPStatus(ErrorType("unknown")))
}
