package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/proclaunch/internal/api/models"
	"github.com/smazurov/proclaunch/internal/process"
)

func (s *Server) registerProcessRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-process",
		Method:      http.MethodGet,
		Path:        "/api/process",
		Summary:     "Get Process",
		Description: "Current state, launch configuration and output routing of the managed process",
		Tags:        []string{"process"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(context.Context, *struct{}) (*models.ProcessResponse, error) {
		if s.options.Process == nil {
			return nil, huma.Error404NotFound("no process is configured")
		}
		return &models.ProcessResponse{Body: toProcessData(s.options.Process)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "run-process",
		Method:        http.MethodPost,
		Path:          "/api/process/run",
		Summary:       "Run Process",
		Description:   "Start another run of the managed process once the previous one has exited",
		Tags:          []string{"process"},
		Security:      withAuth(),
		DefaultStatus: http.StatusAccepted,
		Errors:        []int{401, 404, 409, 500},
	}, func(context.Context, *struct{}) (*models.RunResponse, error) {
		if s.options.RequestRun == nil {
			return nil, huma.Error404NotFound("runs cannot be requested")
		}
		if err := s.options.RequestRun(); err != nil {
			if errors.Is(err, process.ErrAlreadyRunning) {
				return nil, huma.Error409Conflict("process is still running")
			}
			return nil, huma.Error500InternalServerError("failed to request run", err)
		}
		return &models.RunResponse{Body: models.RunData{Message: "Run requested"}}, nil
	})
}

func toProcessData(svc ProcessService) models.ProcessData {
	info := svc.Info()
	cfg := svc.Config()

	data := models.ProcessData{
		RunID:        info.RunID,
		State:        string(info.State),
		PID:          info.PID,
		RestartCount: info.RestartCount,
		Path:         cfg.Path,
		Arguments:    cfg.CommandLine(),
		ValidCodes:   svc.Policy().Codes(),
	}
	if !info.StartedAt.IsZero() {
		started := info.StartedAt
		data.StartedAt = &started
	}
	if info.State == process.StateExited || info.State == process.StateFinalized {
		code := info.ExitCode
		data.ExitCode = &code
	}

	for _, route := range svc.Routes() {
		data.Routes = append(data.Routes, models.RouteData{
			Stream:        route.Stream.String(),
			Mode:          route.Mode.String(),
			Level:         route.Level.String(),
			Handlers:      route.Handlers(),
			LogsLines:     route.LogsLines(),
			LogsAfterExit: route.LogsAfterExit(),
		})
	}
	return data
}
