package indexer

import (
	"fmt"

	"github.com/facksten/PushRSP-Telegram-bot/internal/utils/platformerrors"
)

const ReasonCancelled = "cancelled"

// IndexFailedError reports an aborted run. Report holds the progress committed before the
// failure; those rows stay in the store.
type IndexFailedError struct {
	Reason string
	Report *Report
	Err    error
}

func (e *IndexFailedError) Error() string {
	if e.Report == nil {
		return fmt.Sprintf("indexing failed: %s", e.Reason)
	}
	return fmt.Sprintf("indexing %s failed after %d messages: %s", e.Report.ChannelRef, e.Report.Fetched, e.Reason)
}

func (e *IndexFailedError) Unwrap() error {
	return e.Err
}

// Cancelled reports whether the run stopped because it was cancelled.
func (e *IndexFailedError) Cancelled() bool {
	return e.Reason == ReasonCancelled
}

func failureReason(err error) string {
	switch platformerrors.TypeOf(err) {
	case platformerrors.ErrorTypeCancelled:
		return ReasonCancelled
	case platformerrors.ErrorTypeUnauthorized:
		return "source rejected credentials"
	case platformerrors.ErrorTypeQuotaExceeded:
		return "source rate limit not lifted after retries"
	case platformerrors.ErrorTypeTransient:
		return "source unavailable after retries"
	case platformerrors.ErrorTypeDatabaseError:
		return "store write failed"
	default:
		return err.Error()
	}
}
