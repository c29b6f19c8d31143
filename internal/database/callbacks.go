package database

import (
	"fmt"
	"time"

	"jnsite/internal/metrics"

	"gorm.io/gorm"
)

const startedAtKey = "metrics:started_at"

// registerMetricsCallbacks times every create/query/update/delete/row/raw
// statement and reports it to Prometheus.
func registerMetricsCallbacks(db *gorm.DB) error {
	cb := db.Callback()

	hooks := []struct {
		operation string
		before    func(string, func(*gorm.DB)) error
		after     func(string, func(*gorm.DB)) error
	}{
		{"create", cb.Create().Before("gorm:create").Register, cb.Create().After("gorm:create").Register},
		{"query", cb.Query().Before("gorm:query").Register, cb.Query().After("gorm:query").Register},
		{"update", cb.Update().Before("gorm:update").Register, cb.Update().After("gorm:update").Register},
		{"delete", cb.Delete().Before("gorm:delete").Register, cb.Delete().After("gorm:delete").Register},
		{"row", cb.Row().Before("gorm:row").Register, cb.Row().After("gorm:row").Register},
		{"raw", cb.Raw().Before("gorm:raw").Register, cb.Raw().After("gorm:raw").Register},
	}

	for _, h := range hooks {
		if err := h.before("metrics:before_"+h.operation, startTimer); err != nil {
			return fmt.Errorf("failed to register %s metrics callback: %w", h.operation, err)
		}
		if err := h.after("metrics:after_"+h.operation, observe(h.operation)); err != nil {
			return fmt.Errorf("failed to register %s metrics callback: %w", h.operation, err)
		}
	}
	return nil
}

func startTimer(db *gorm.DB) {
	db.InstanceSet(startedAtKey, time.Now())
}

func observe(operation string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		v, ok := db.InstanceGet(startedAtKey)
		if !ok {
			return
		}
		started, ok := v.(time.Time)
		if !ok {
			return
		}
		metrics.RecordDBQuery(operation, time.Since(started), db.Error)
	}
}
