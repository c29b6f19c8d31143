package services

import (
	"context"

	"gorm.io/gorm"

	"jnsite/internal/database"
	"jnsite/internal/metrics"
)

// HealthResult is the health check payload
type HealthResult struct {
	Status   string `json:"status"`
	Service  string `json:"service"`
	Version  string `json:"version"`
	Database string `json:"database"`
}

// HealthService implements the health service
type HealthService struct {
	db      *gorm.DB
	service string
	version string
}

// NewHealthService creates a new health service
func NewHealthService(db *gorm.DB, service, version string) *HealthService {
	return &HealthService{db: db, service: service, version: version}
}

// Check pings the store and reports whether the service is healthy
func (s *HealthService) Check(ctx context.Context) (*HealthResult, bool) {
	res := &HealthResult{
		Status:   "healthy",
		Service:  s.service,
		Version:  s.version,
		Database: "ok",
	}
	if err := database.Ping(ctx, s.db); err != nil {
		res.Status = "unhealthy"
		res.Database = err.Error()
		return res, false
	}
	if stats, err := database.Stats(s.db); err == nil {
		metrics.UpdateDBConnections(stats.InUse, stats.Idle)
	}
	return res, true
}
