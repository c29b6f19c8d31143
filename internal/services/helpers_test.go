package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"jnsite/internal/config"
	"jnsite/internal/database"
	"jnsite/internal/worker"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(&config.DatabaseConfig{URL: "sqlite:///" + filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

// clock is a settable time source for services that take a now func.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock(t time.Time) *clock { return &clock{t: t} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// inlineJobs runs submitted jobs synchronously.
type inlineJobs struct {
	mu     sync.Mutex
	names  []string
	errs   []error
	reject bool
}

func (j *inlineJobs) Submit(name string, job worker.Job) bool {
	if j.reject {
		return false
	}
	err := job(context.Background())
	j.mu.Lock()
	j.names = append(j.names, name)
	j.errs = append(j.errs, err)
	j.mu.Unlock()
	return true
}
