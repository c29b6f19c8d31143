package services

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"jnsite/internal/domain"
)

const (
	recentSubmissionsLimit = 10
	visitsListLimit        = 1000
	byDayLimit             = 30
)

// DayCount is the number of visits on one calendar day (YYYY-MM-DD, UTC)
type DayCount struct {
	Day    string `json:"day"`
	Visits int64  `json:"visits"`
}

// PathCount is the number of visits to one request path
type PathCount struct {
	Path   string `json:"path"`
	Visits int64  `json:"visits"`
}

// VisitStats is the payload of the stats endpoint
type VisitStats struct {
	Total  int64       `json:"total"`
	Today  int64       `json:"today"`
	ByDay  []DayCount  `json:"byDay"`
	ByPath []PathCount `json:"byPath"`
}

// Dashboard holds the admin overview counters
type Dashboard struct {
	TotalVisits       int64
	TodayVisits       int64
	TotalSubmissions  int64
	RecentSubmissions []domain.Submission
}

// StatsService runs the read-only aggregate queries behind the admin views
type StatsService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewStatsService creates a new stats service
func NewStatsService(db *gorm.DB) *StatsService {
	return &StatsService{db: db, now: time.Now}
}

// Dashboard returns visit and submission totals and the latest submissions
func (s *StatsService) Dashboard(ctx context.Context) (*Dashboard, error) {
	db := s.db.WithContext(ctx)
	d := &Dashboard{}

	if err := db.Model(&domain.Visit{}).Count(&d.TotalVisits).Error; err != nil {
		return nil, fmt.Errorf("failed to count visits: %w", err)
	}
	today, err := s.todayVisits(ctx)
	if err != nil {
		return nil, err
	}
	d.TodayVisits = today
	if err := db.Model(&domain.Submission{}).Count(&d.TotalSubmissions).Error; err != nil {
		return nil, fmt.Errorf("failed to count submissions: %w", err)
	}
	if err := db.Order("id DESC").Limit(recentSubmissionsLimit).Find(&d.RecentSubmissions).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch recent submissions: %w", err)
	}
	return d, nil
}

// Submissions returns every submission, newest first
func (s *StatsService) Submissions(ctx context.Context) ([]domain.Submission, error) {
	var subs []domain.Submission
	if err := s.db.WithContext(ctx).Order("id DESC").Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch submissions: %w", err)
	}
	return subs, nil
}

// Visits returns the most recent visits, newest first
func (s *StatsService) Visits(ctx context.Context) ([]domain.Visit, error) {
	var visits []domain.Visit
	if err := s.db.WithContext(ctx).Order("id DESC").Limit(visitsListLimit).Find(&visits).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch visits: %w", err)
	}
	return visits, nil
}

// VisitStats groups visits by day and by path
func (s *StatsService) VisitStats(ctx context.Context) (*VisitStats, error) {
	db := s.db.WithContext(ctx)
	stats := &VisitStats{
		ByDay:  []DayCount{},
		ByPath: []PathCount{},
	}

	if err := db.Model(&domain.Visit{}).Count(&stats.Total).Error; err != nil {
		return nil, fmt.Errorf("failed to count visits: %w", err)
	}
	today, err := s.todayVisits(ctx)
	if err != nil {
		return nil, err
	}
	stats.Today = today

	err = db.Model(&domain.Visit{}).
		Select(dayExpr(s.db) + " AS day, COUNT(*) AS visits").
		Group("day").
		Order("day DESC").
		Limit(byDayLimit).
		Scan(&stats.ByDay).Error
	if err != nil {
		return nil, fmt.Errorf("failed to group visits by day: %w", err)
	}

	err = db.Model(&domain.Visit{}).
		Select("path, COUNT(*) AS visits").
		Group("path").
		Order("visits DESC, path ASC").
		Scan(&stats.ByPath).Error
	if err != nil {
		return nil, fmt.Errorf("failed to group visits by path: %w", err)
	}

	return stats, nil
}

func (s *StatsService) todayVisits(ctx context.Context) (int64, error) {
	var n int64
	today := s.now().UTC().Format("2006-01-02")
	err := s.db.WithContext(ctx).Model(&domain.Visit{}).
		Where(dayExpr(s.db)+" = ?", today).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count today's visits: %w", err)
	}
	return n, nil
}

// dayExpr renders created_at as a UTC calendar date in the store's dialect.
func dayExpr(db *gorm.DB) string {
	if db.Dialector.Name() == "postgres" {
		return "to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD')"
	}
	return "date(created_at)"
}
