package llmprovider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/llm"
	"github.com/facksten/PushRSP-Telegram-bot/internal/utils/platformerrors"
)

// statusError classifies an HTTP status returned by a provider.
func statusError(ctx context.Context, kind llm.Kind, status int, message string, err error) error {
	errorType := platformerrors.ErrorTypeExternal
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		errorType = platformerrors.ErrorTypeUnauthorized
	case status == http.StatusTooManyRequests:
		errorType = platformerrors.ErrorTypeQuotaExceeded
	case status == http.StatusRequestTimeout || status >= http.StatusInternalServerError:
		errorType = platformerrors.ErrorTypeTransient
	}
	return platformerrors.NewErrorWithContext(ctx, platformerrors.LayerInfrastructure, errorType,
		fmt.Sprintf("%s returned %d: %s", kind, status, message), err, "",
		map[string]any{"provider": string(kind), "status": status})
}

// transportError classifies failures that happened before a response was received.
func transportError(ctx context.Context, kind llm.Kind, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return platformerrors.AsError(ctx, platformerrors.LayerInfrastructure, err, fmt.Sprintf("%s request interrupted", kind))
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeTransient,
			fmt.Sprintf("%s unreachable", kind), err, "")
	}
	return platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal,
		fmt.Sprintf("%s request failed", kind), err, "")
}
