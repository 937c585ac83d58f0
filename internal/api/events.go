package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/proclaunch/internal/events"
)

// registerSSERoutes registers the native Huma SSE endpoint.
func (s *Server) registerSSERoutes() {
	if s.options.EventBus == nil {
		return
	}

	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time process lifecycle events and output lines",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"process-started":   events.ProcessStartedEvent{},
		"process-exited":    events.ProcessExitedEvent{},
		"process-finalized": events.ProcessFinalizedEvent{},
		"output-line":       events.OutputLineEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		// Output can be bursty
		eventCh := make(chan any, 100)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.ProcessStartedEvent](s.options.EventBus, eventCh),
			events.SubscribeToChannel[events.ProcessExitedEvent](s.options.EventBus, eventCh),
			events.SubscribeToChannel[events.ProcessFinalizedEvent](s.options.EventBus, eventCh),
			events.SubscribeToChannel[events.OutputLineEvent](s.options.EventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
