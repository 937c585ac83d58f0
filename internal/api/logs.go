package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/proclaunch/internal/api/models"
	"github.com/smazurov/proclaunch/internal/logging"
)

// registerLogRoutes registers the recent log endpoint.
func (s *Server) registerLogRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-logs",
		Method:      http.MethodGet,
		Path:        "/api/logs",
		Summary:     "Recent Logs",
		Description: "Most recent entries from the in-memory log buffer, including child output routed to the log",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, input *models.LogsInput) (*models.LogsResponse, error) {
		entries := []logging.LogEntry{}
		if buffer := logging.GetBuffer(); buffer != nil {
			entries = append(entries, buffer.Tail(input.Limit)...)
		}
		return &models.LogsResponse{
			Body: models.LogsData{
				Entries: entries,
				Count:   len(entries),
			},
		}, nil
	})
}
