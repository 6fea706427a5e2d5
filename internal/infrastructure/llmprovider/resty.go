package llmprovider

import (
	"context"
	"time"

	"resty.dev/v3"

	"github.com/facksten/PushRSP-Telegram-bot/internal/infrastructure/logger"
)

type httpClientStartsAt struct{}

// newRestyClient builds a client that logs every call at debug level without bodies; request
// bodies carry user prompts.
func newRestyClient(clientName string, timeout time.Duration) *resty.Client {
	client := resty.New()
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	client.AddRequestMiddleware(func(c *resty.Client, r *resty.Request) error {
		r.SetContext(context.WithValue(r.Context(), httpClientStartsAt{}, time.Now()))
		return nil
	})
	client.AddResponseMiddleware(func(c *resty.Client, r *resty.Response) error {
		log := logger.GetLogger()
		startTime, _ := r.Request.Context().Value(httpClientStartsAt{}).(time.Time)
		event := log.Debug().
			Str("client", clientName).
			Int("status", r.StatusCode()).
			Dur("latency", time.Since(startTime))
		if r.Request.RawRequest != nil {
			event = event.Str("method", r.Request.RawRequest.Method).Str("path", r.Request.RawRequest.URL.Path)
		}
		event.Msg("HTTP client request")
		return nil
	})
	return client
}
