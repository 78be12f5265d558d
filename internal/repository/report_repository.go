package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/campushq/enrollment-api/internal/models"
	"github.com/campushq/enrollment-api/pkg/cache"
)

// ReportRepository stores batch pass reports in Redis so async runs can be
// inspected after the fact.
type ReportRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewReportRepository constructs the repository.
func NewReportRepository(client *redis.Client, ttl time.Duration) *ReportRepository {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ReportRepository{client: client, ttl: ttl}
}

func activationKey(termID string) string {
	return fmt.Sprintf("reports:activation:%s", termID)
}

func closeKey(termID string) string {
	return fmt.Sprintf("reports:close:%s", termID)
}

// SaveActivation stores a term activation report.
func (r *ReportRepository) SaveActivation(ctx context.Context, report *models.ActivationReport) error {
	return cache.SetJSON(ctx, r.client, activationKey(report.TermID), report, r.ttl)
}

// GetActivation loads a term activation report, nil on a miss.
func (r *ReportRepository) GetActivation(ctx context.Context, termID string) (*models.ActivationReport, error) {
	var report models.ActivationReport
	found, err := cache.GetJSON(ctx, r.client, activationKey(termID), &report)
	if err != nil || !found {
		return nil, err
	}
	return &report, nil
}

// SaveClose stores a term close report.
func (r *ReportRepository) SaveClose(ctx context.Context, report *models.CloseReport) error {
	return cache.SetJSON(ctx, r.client, closeKey(report.TermID), report, r.ttl)
}

// GetClose loads a term close report, nil on a miss.
func (r *ReportRepository) GetClose(ctx context.Context, termID string) (*models.CloseReport, error) {
	var report models.CloseReport
	found, err := cache.GetJSON(ctx, r.client, closeKey(termID), &report)
	if err != nil || !found {
		return nil, err
	}
	return &report, nil
}
