package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInstrumenterRecordsTaskSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	in := &instrumenter{tracer: provider.Tracer("test")}

	require.NoError(t, in.run(context.Background(), 2, Task{Name: "telegram chat 10"}, func(context.Context) error { return nil }))
	err := in.run(context.Background(), 2, Task{Name: "telegram command 11"}, func(context.Context) error { return errors.New("boom") })
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "worker.task", spans[0].Name())
	assert.Contains(t, spans[0].Attributes(), attribute.String("task.name", "telegram chat 10"))
	assert.Contains(t, spans[0].Attributes(), attribute.Int("worker.id", 2))
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.Equal(t, codes.Error, spans[1].Status().Code)
}
