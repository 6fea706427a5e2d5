package userbot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tgerr"

	"github.com/facksten/PushRSP-Telegram-bot/internal/utils/platformerrors"
)

// floodWait carries the wait Telegram asked for so the indexer's retry loop honours it.
type floodWait struct {
	wait time.Duration
	err  error
}

func (f *floodWait) Error() string             { return fmt.Sprintf("flood wait %s: %v", f.wait, f.err) }
func (f *floodWait) Unwrap() error             { return f.err }
func (f *floodWait) RetryAfter() time.Duration { return f.wait }

// classify maps MTProto failures onto platform error types.
func classify(ctx context.Context, ref string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return platformerrors.AsError(ctx, platformerrors.LayerInfrastructure, err, "history fetch interrupted")
	}
	if wait, ok := tgerr.AsFloodWait(err); ok {
		return platformerrors.NewErrorWithContext(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeQuotaExceeded,
			"telegram flood wait", &floodWait{wait: wait, err: err}, "",
			map[string]any{"channel": ref, "wait_seconds": int(wait.Seconds())})
	}
	if auth.IsUnauthorized(err) || tgerr.Is(err, "SESSION_REVOKED", "AUTH_KEY_UNREGISTERED", "USER_DEACTIVATED") {
		return platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeUnauthorized,
			"userbot session is not authorized; run `pushtutor userbot-login`", err, "")
	}
	if tgerr.Is(err, "CHANNEL_PRIVATE", "CHANNEL_INVALID", "USERNAME_NOT_OCCUPIED", "USERNAME_INVALID") {
		return platformerrors.NewErrorWithContext(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeNotFound,
			"channel is not reachable by the userbot", err, "", map[string]any{"channel": ref})
	}
	var rpcErr *tgerr.Error
	if errors.As(err, &rpcErr) && rpcErr.Code >= 500 {
		return platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeTransient,
			"telegram server error", err, "")
	}
	if rpcErr != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal,
			"telegram rejected the request", err, "")
	}
	return platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeTransient,
		"telegram connection failed", err, "")
}
