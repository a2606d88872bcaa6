package service

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-roster-api/internal/models"
	appErrors "github.com/noah-isme/sma-roster-api/pkg/errors"
	"github.com/noah-isme/sma-roster-api/pkg/export"
	appValidator "github.com/noah-isme/sma-roster-api/pkg/validator"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100

	rosterCachePrefix     = "roster:list:"
	dashboardCachePattern = "dash:*"
)

type teacherRepository interface {
	List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, int, error)
	ListAll(ctx context.Context) ([]models.Teacher, error)
	Count(ctx context.Context) (int, error)
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
	Create(ctx context.Context, teacher *models.Teacher) error
}

// CreateTeacherRequest is the direct-create payload. Classes are canonical
// identifiers such as "10A".
type CreateTeacherRequest struct {
	Name    string   `json:"name" validate:"max=255"`
	Email   string   `json:"email" validate:"max=255"`
	Phone   *string  `json:"phone" validate:"omitempty,max=50"`
	Subject string   `json:"subject" validate:"max=255"`
	Classes []string `json:"classes" validate:"max=60"`
}

// TeacherList is one page of the roster. Stale is set when the page was
// served from the fallback cache because the store failed.
type TeacherList struct {
	Items      []models.Teacher   `json:"items"`
	Pagination *models.Pagination `json:"pagination"`
	Stale      bool               `json:"stale"`
}

// ExportFile is a rendered roster download.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}

// TeacherServiceConfig tunes roster caching.
type TeacherServiceConfig struct {
	RosterCacheTTL time.Duration
}

// TeacherService owns the teacher directory use cases.
type TeacherService struct {
	repo      teacherRepository
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       TeacherServiceConfig
	now       func() time.Time
}

// NewTeacherService constructs a TeacherService. cache and metrics may be nil.
func NewTeacherService(repo teacherRepository, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg TeacherServiceConfig) *TeacherService {
	if validate == nil {
		validate = appValidator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RosterCacheTTL <= 0 {
		cfg.RosterCacheTTL = time.Hour
	}
	return &TeacherService{repo: repo, cache: cache, metrics: metrics, validator: validate, logger: logger, cfg: cfg, now: time.Now}
}

// List returns a roster page newest first. When the store fails the last good
// copy of the same page is returned with Stale set.
func (s *TeacherService) List(ctx context.Context, filter models.TeacherFilter) (*TeacherList, error) {
	filter = normalizeFilter(filter)
	key := rosterCacheKey(filter)

	teachers, total, err := s.repo.List(ctx, filter)
	if err != nil {
		var cached TeacherList
		if s.cache.Get(ctx, key, &cached) {
			s.logger.Warn("serving stale roster", zap.String("key", key), zap.Error(err))
			s.metrics.ObserveStaleRoster()
			cached.Stale = true
			return &cached, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teachers")
	}

	result := &TeacherList{
		Items:      teachers,
		Pagination: &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total},
	}
	s.cache.Set(ctx, key, result, s.cfg.RosterCacheTTL)
	return result, nil
}

// Get returns a teacher by id.
func (s *TeacherService) Get(ctx context.Context, id string) (*models.Teacher, error) {
	teacher, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	return teacher, nil
}

// Count returns the number of persisted teachers.
func (s *TeacherService) Count(ctx context.Context) (int, error) {
	total, err := s.repo.Count(ctx)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count teachers")
	}
	return total, nil
}

// Create validates a direct-create payload and inserts the teacher. Classes
// are canonicalised and de-duplicated in order.
func (s *TeacherService) Create(ctx context.Context, req CreateTeacherRequest) (*models.Teacher, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.WithDetails(
			appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teacher payload"),
			appValidator.Translate(err),
		)
	}

	var classes models.AssignedClassSet
	for _, raw := range req.Classes {
		id, err := ParseClassIdentifier(raw)
		if err != nil {
			return nil, appErrors.WithDetails(appErrors.FromError(err), map[string]string{"classes": err.Error()})
		}
		if !classes.Contains(id) {
			classes = append(classes, id)
		}
	}

	draft := models.TeacherDraft{
		Name:    req.Name,
		Email:   req.Email,
		Subject: req.Subject,
		Classes: classes,
	}
	if req.Phone != nil {
		draft.Phone = *req.Phone
	}
	return s.CreateFromDraft(ctx, draft)
}

// CreateFromDraft persists a draft as a teacher. Invalid drafts are rejected
// before the store is called.
func (s *TeacherService) CreateFromDraft(ctx context.Context, draft models.TeacherDraft) (*models.Teacher, error) {
	if result := ValidateDraft(draft); !result.Valid {
		return nil, appErrors.Clone(appErrors.ErrValidation, result.Reason)
	}

	teacher := &models.Teacher{
		Name:    strings.TrimSpace(draft.Name),
		Email:   strings.TrimSpace(draft.Email),
		Subject: strings.TrimSpace(draft.Subject),
		Classes: draft.Classes.Strings(),
	}
	if phone := strings.TrimSpace(draft.Phone); phone != "" {
		teacher.Phone = &phone
	}

	if err := s.repo.Create(ctx, teacher); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save teacher")
	}

	s.cache.Invalidate(ctx, dashboardCachePattern)
	s.logger.Info("teacher created", zap.String("teacher_id", teacher.ID), zap.Int("classes", len(teacher.Classes)))
	return teacher, nil
}

// Export renders the whole roster, newest first, in the requested format.
func (s *TeacherService) Export(ctx context.Context, rawFormat string) (*ExportFile, error) {
	format, err := export.ParseFormat(rawFormat)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	renderer, err := export.RendererFor(format)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	teachers, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}

	body, err := renderer.Render(rosterDataset(teachers))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster")
	}

	return &ExportFile{
		Filename:    "teachers-" + s.now().UTC().Format("20060102") + "." + renderer.Extension(),
		ContentType: renderer.ContentType(),
		Body:        body,
	}, nil
}

func rosterDataset(teachers []models.Teacher) export.Dataset {
	data := export.Dataset{
		Title:   "Teacher Roster",
		Headers: []string{"Name", "Email", "Phone", "Subject", "Classes", "Created At"},
		Rows:    make([][]string, 0, len(teachers)),
	}
	for _, t := range teachers {
		phone := ""
		if t.Phone != nil {
			phone = *t.Phone
		}
		data.Rows = append(data.Rows, []string{
			t.Name,
			t.Email,
			phone,
			t.Subject,
			strings.Join(t.Classes, ", "),
			t.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return data
}

func normalizeFilter(filter models.TeacherFilter) models.TeacherFilter {
	filter.Search = strings.TrimSpace(filter.Search)
	if filter.Class != "" {
		if id, err := ParseClassIdentifier(filter.Class); err == nil {
			filter.Class = string(id)
		}
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	switch {
	case filter.PageSize <= 0:
		filter.PageSize = defaultPageSize
	case filter.PageSize > maxPageSize:
		filter.PageSize = maxPageSize
	}
	return filter
}

func rosterCacheKey(filter models.TeacherFilter) string {
	values := url.Values{}
	values.Set("q", strings.ToLower(filter.Search))
	values.Set("class", filter.Class)
	values.Set("page", strconv.Itoa(filter.Page))
	values.Set("size", strconv.Itoa(filter.PageSize))
	return rosterCachePrefix + values.Encode()
}
