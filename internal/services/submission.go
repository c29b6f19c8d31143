package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"jnsite/internal/domain"
	"jnsite/internal/metrics"
	"jnsite/internal/worker"
	apperrors "jnsite/pkg/errors"
)

// ServiceList is the set of offerings picked on the form. It decodes from
// a single JSON string, an array of strings or null.
type ServiceList []string

// UnmarshalJSON implements json.Unmarshaler
func (l *ServiceList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var one string
		if err := json.Unmarshal(data, &one); err != nil {
			return err
		}
		*l = ServiceList{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("services must be a string or a list of strings: %w", err)
	}
	*l = many
	return nil
}

// SubmissionPayload is the contact form as posted by the landing page
type SubmissionPayload struct {
	Name     string      `json:"name"`
	Phone    string      `json:"phone"`
	Email    string      `json:"email"`
	Message  string      `json:"message"`
	Services ServiceList `json:"services"`
}

// SubmissionResult is the acknowledgment returned to the submitter
type SubmissionResult struct {
	OK             bool   `json:"ok"`
	CustomerNumber string `json:"customerNumber"`
	SubmissionDate string `json:"submissionDate"`
}

// Notifier delivers a notification about a stored submission
type Notifier interface {
	NotifySubmission(ctx context.Context, sub *domain.Submission) error
}

// JobSubmitter queues fire-and-forget work
type JobSubmitter interface {
	Submit(name string, job worker.Job) bool
}

// SubmissionService stores contact form submissions
type SubmissionService struct {
	db       *gorm.DB
	locale   *Locale
	notifier Notifier
	jobs     JobSubmitter
	now      func() time.Time
}

// NewSubmissionService creates a new submission service. notifier and jobs
// may be nil, in which case no notification is sent.
func NewSubmissionService(db *gorm.DB, locale *Locale, notifier Notifier, jobs JobSubmitter) *SubmissionService {
	return &SubmissionService{
		db:       db,
		locale:   locale,
		notifier: notifier,
		jobs:     jobs,
		now:      time.Now,
	}
}

// Submit persists the payload and queues the notification. The stored row
// is complete before Submit returns; the notification is not awaited.
func (s *SubmissionService) Submit(ctx context.Context, p *SubmissionPayload) (*SubmissionResult, error) {
	if p == nil {
		p = &SubmissionPayload{}
	}
	now := s.now()

	sub := &domain.Submission{
		Name:           p.Name,
		Phone:          p.Phone,
		Email:          p.Email,
		Message:        p.Message,
		Services:       JoinServices(p.Services),
		CustomerNumber: CustomerNumber(now),
		SubmissionDate: s.locale.FormatDate(now),
		CreatedAt:      now.UTC(),
	}

	if err := s.db.WithContext(ctx).Create(sub).Error; err != nil {
		log.Printf("[SUBMIT] Submit failed: database error: %v", err)
		return nil, apperrors.Wrap(apperrors.ErrCodeInternalError, "failed to save submission", err)
	}

	log.Printf("[SUBMIT] Submit successful: id=%d, customer=%s, services=%q", sub.ID, sub.CustomerNumber, sub.Services)
	metrics.RecordContactSubmission()

	s.queueNotification(sub)

	return &SubmissionResult{
		OK:             true,
		CustomerNumber: sub.CustomerNumber,
		SubmissionDate: sub.SubmissionDate,
	}, nil
}

func (s *SubmissionService) queueNotification(sub *domain.Submission) {
	if s.notifier == nil || s.jobs == nil {
		return
	}
	notifier := s.notifier
	ok := s.jobs.Submit("notify:"+sub.CustomerNumber, func(ctx context.Context) error {
		return notifier.NotifySubmission(ctx, sub)
	})
	if !ok {
		metrics.RecordNotification("dropped")
		log.Printf("[SUBMIT] Notification for %s dropped: worker queue unavailable", sub.CustomerNumber)
	}
}

// JoinServices renders the selection as a comma separated display string.
func JoinServices(services []string) string {
	return strings.Join(services, ", ")
}

// CustomerNumber derives the display reference "JN" plus the last six
// digits of the millisecond timestamp, without padding.
func CustomerNumber(t time.Time) string {
	ms := strconv.FormatInt(t.UnixMilli(), 10)
	if len(ms) > 6 {
		ms = ms[len(ms)-6:]
	}
	return "JN" + ms
}
