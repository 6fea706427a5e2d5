package llm

import (
	"fmt"
	"strings"
	"time"
)

// Attempt records one provider call made while serving a request.
type Attempt struct {
	Provider Kind
	Err      error
	Duration time.Duration
}

// AllProvidersFailedError is returned when every eligible provider failed.
type AllProvidersFailedError struct {
	Attempts []Attempt
	LastErr  error
}

func (e *AllProvidersFailedError) Error() string {
	names := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		names = append(names, string(a.Provider))
	}
	if len(names) == 0 {
		return fmt.Sprintf("all providers failed: no provider attempted: %v", e.LastErr)
	}
	return fmt.Sprintf("all providers failed [%s]: %v", strings.Join(names, ", "), e.LastErr)
}

func (e *AllProvidersFailedError) Unwrap() error {
	return e.LastErr
}

// AttemptedProviders lists the providers tried, in order.
func (e *AllProvidersFailedError) AttemptedProviders() []Kind {
	out := make([]Kind, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		out = append(out, a.Provider)
	}
	return out
}
