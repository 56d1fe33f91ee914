package health

import "context"

type Status string

const (
	StatusOk       Status = "ok"
	StatusDegraded Status = "degraded"
)

const (
	DependencyOK         = "ok"
	DependencyDisabled   = "disabled"
	DependencyConfigured = "configured"
)

type Report struct {
	Status       Status         `json:"status"`
	ServerID     string         `json:"server_id"`
	Version      string         `json:"version"`
	Uptime       string         `json:"uptime"`
	Accounts     map[string]int `json:"accounts"`
	Dependencies map[string]any `json:"dependencies"`
}

type IHealthUsecase interface {
	Check(ctx context.Context) Report
}
