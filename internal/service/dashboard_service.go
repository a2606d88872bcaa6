package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-roster-api/internal/models"
)

const (
	dashboardCountsKey = "dash:counts"
	defaultDisplayName = "Principal"
)

type teacherCounter interface {
	Count(ctx context.Context) (int, error)
}

// DashboardServiceConfig carries the static school figures.
type DashboardServiceConfig struct {
	SchoolName      string
	Students        int
	AttendanceRate  int
	PendingRequests int
	CacheTTL        time.Duration
}

// DashboardService composes the at-a-glance summary for the signed-in user.
type DashboardService struct {
	teachers teacherCounter
	cache    *CacheService
	logger   *zap.Logger
	cfg      DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService. cache may be nil.
func NewDashboardService(teachers teacherCounter, cache *CacheService, logger *zap.Logger, cfg DashboardServiceConfig) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	return &DashboardService{teachers: teachers, cache: cache, logger: logger, cfg: cfg}
}

// Summary builds the dashboard for the user at the given local time. A
// failed teacher count is reported as unavailable rather than as an error.
func (s *DashboardService) Summary(ctx context.Context, email string, now time.Time) *models.DashboardSummary {
	return &models.DashboardSummary{
		SchoolName:      s.cfg.SchoolName,
		DisplayName:     DisplayName(email),
		Greeting:        Greeting(now),
		DashboardCounts: s.counts(ctx),
	}
}

func (s *DashboardService) counts(ctx context.Context) models.DashboardCounts {
	var counts models.DashboardCounts
	if s.cache.Get(ctx, dashboardCountsKey, &counts) {
		return counts
	}

	counts = models.DashboardCounts{
		TeachersAvailable: true,
		Students:          s.cfg.Students,
		AttendanceRate:    s.cfg.AttendanceRate,
		PendingRequests:   s.cfg.PendingRequests,
	}
	total, err := s.teachers.Count(ctx)
	if err != nil {
		s.logger.Warn("teacher count unavailable", zap.Error(err))
		counts.TeachersAvailable = false
		return counts
	}
	counts.Teachers = total
	s.cache.Set(ctx, dashboardCountsKey, counts, s.cfg.CacheTTL)
	return counts
}

// Greeting returns Morning before noon, Afternoon before 17:00 and Evening after.
func Greeting(now time.Time) string {
	switch hour := now.Hour(); {
	case hour < 12:
		return "Morning"
	case hour < 17:
		return "Afternoon"
	default:
		return "Evening"
	}
}

// DisplayName derives a name from the local part of an email address.
func DisplayName(email string) string {
	local, _, _ := strings.Cut(strings.TrimSpace(email), "@")
	if local == "" {
		return defaultDisplayName
	}
	return local
}
