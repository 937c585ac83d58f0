package models

import (
	"time"

	"github.com/smazurov/proclaunch/internal/logging"
)

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// RouteData describes how one output stream of the child is consumed.
type RouteData struct {
	Stream        string `json:"stream" example:"stdout" doc:"Stream name"`
	Mode          string `json:"mode" example:"per-line" doc:"Redirection mode (disabled, per-line, drain-after-exit)"`
	Level         string `json:"level" example:"information" doc:"Level used when the stream is logged"`
	Handlers      int    `json:"handlers" example:"1" doc:"Number of registered line handlers"`
	LogsLines     bool   `json:"logs_lines" doc:"Each line is logged as it arrives"`
	LogsAfterExit bool   `json:"logs_after_exit" doc:"Whole stream is logged once after exit"`
}

// Process models
type ProcessData struct {
	RunID        string      `json:"run_id,omitempty" example:"0f8c1f2e-5a7b-4a53-9a8e-2f6f0c1e9b3d" doc:"Identifier of the current or last run"`
	State        string      `json:"state" example:"started" doc:"Lifecycle state (created, started, exited, finalized)"`
	PID          int         `json:"pid,omitempty" example:"4242" doc:"Process ID of the current or last child"`
	StartedAt    *time.Time  `json:"started_at,omitempty" doc:"Start time of the current or last run"`
	ExitCode     *int        `json:"exit_code,omitempty" example:"0" doc:"Exit code once the child has exited"`
	RestartCount int         `json:"restart_count" example:"0" doc:"Number of runs after the first"`
	Path         string      `json:"path" example:"/usr/bin/rsync" doc:"Executable path"`
	Arguments    string      `json:"arguments,omitempty" example:"-a src/ dst/" doc:"Command line arguments"`
	ValidCodes   []int       `json:"valid_codes,omitempty" doc:"Accepted exit codes; empty means any code is accepted"`
	Routes       []RouteData `json:"routes" doc:"Output routing per stream"`
}

type ProcessResponse struct {
	Body ProcessData
}

// RunData is returned when a new run was requested.
type RunData struct {
	Message string `json:"message" example:"Run requested" doc:"Status message"`
}

type RunResponse struct {
	Body RunData
}

// Log models
type LogsInput struct {
	Limit int `query:"limit" default:"100" minimum:"1" maximum:"1000" doc:"Maximum number of recent entries"`
}

type LogsData struct {
	Entries []logging.LogEntry `json:"entries" doc:"Most recent log entries, oldest first"`
	Count   int                `json:"count" example:"100" doc:"Number of entries returned"`
}

type LogsResponse struct {
	Body LogsData
}
