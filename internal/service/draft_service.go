package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-roster-api/internal/models"
	"github.com/noah-isme/sma-roster-api/internal/repository"
	appErrors "github.com/noah-isme/sma-roster-api/pkg/errors"
	appValidator "github.com/noah-isme/sma-roster-api/pkg/validator"
)

type draftRepository interface {
	Save(ctx context.Context, draft *models.TeacherDraft, ttl time.Duration) error
	Get(ctx context.Context, id string) (*models.TeacherDraft, error)
	Delete(ctx context.Context, id string) error
	AcquireLock(ctx context.Context, id string, ttl time.Duration) (string, bool, error)
	RefreshLock(ctx context.Context, id, token string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, id, token string) error
}

const (
	lockAttempts   = 5
	lockRetryDelay = 20 * time.Millisecond
)

type teacherCreator interface {
	CreateFromDraft(ctx context.Context, draft models.TeacherDraft) (*models.Teacher, error)
}

// DraftFieldsRequest sets the scalar fields of a draft. Nil fields are left as they are.
type DraftFieldsRequest struct {
	Name    *string `json:"name" validate:"omitempty,max=255"`
	Email   *string `json:"email" validate:"omitempty,max=255"`
	Phone   *string `json:"phone" validate:"omitempty,max=50"`
	Subject *string `json:"subject" validate:"omitempty,max=255"`
}

// AddClassRequest selects a standard label and a division.
type AddClassRequest struct {
	Standard string `json:"standard" validate:"required"`
	Division string `json:"division" validate:"required"`
}

// DraftServiceConfig tunes draft expiry and submission locking.
type DraftServiceConfig struct {
	TTL           time.Duration
	SubmitLockTTL time.Duration
}

// DraftService drives the teacher draft lifecycle: open, edit, submit, close.
type DraftService struct {
	repo      draftRepository
	teachers  teacherCreator
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       DraftServiceConfig
	now       func() time.Time
}

// NewDraftService constructs a DraftService.
func NewDraftService(repo draftRepository, teachers teacherCreator, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg DraftServiceConfig) *DraftService {
	if validate == nil {
		validate = appValidator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.SubmitLockTTL <= 0 {
		cfg.SubmitLockTTL = 30 * time.Second
	}
	return &DraftService{
		repo:      repo,
		teachers:  teachers,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Open starts an empty draft owned by ownerID, optionally pre-filled.
func (s *DraftService) Open(ctx context.Context, ownerID string, req DraftFieldsRequest) (*models.TeacherDraft, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	draft := &models.TeacherDraft{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		State:     models.DraftEditing,
		Classes:   models.AssignedClassSet{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyFields(draft, req)
	if err := s.save(ctx, draft); err != nil {
		return nil, err
	}
	s.logger.Debug("draft opened", zap.String("draft_id", draft.ID), zap.String("owner_id", ownerID))
	return draft, nil
}

// Get returns a draft owned by ownerID.
func (s *DraftService) Get(ctx context.Context, ownerID, id string) (*models.TeacherDraft, error) {
	return s.load(ctx, ownerID, id)
}

// UpdateFields overwrites the provided scalar fields.
func (s *DraftService) UpdateFields(ctx context.Context, ownerID, id string, req DraftFieldsRequest) (*models.TeacherDraft, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	draft, token, err := s.lockEditable(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	defer s.unlock(ctx, id, token)

	applyFields(draft, req)
	if err := s.save(ctx, draft); err != nil {
		return nil, err
	}
	return draft, nil
}

// AddClass appends the class for (standard, division). A class that is
// already assigned leaves the draft untouched and carries a notice.
func (s *DraftService) AddClass(ctx context.Context, ownerID, id string, req AddClassRequest) (*models.ClassChange, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	draft, token, err := s.lockEditable(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	defer s.unlock(ctx, id, token)

	next, outcome, err := AddClass(draft.Classes, req.Standard, req.Division)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveClassAdd(string(outcome))

	if outcome == models.OutcomeDuplicate {
		return &models.ClassChange{Draft: draft, Outcome: outcome, Notice: DuplicateClassNotice}, nil
	}

	draft.Classes = next
	if err := s.save(ctx, draft); err != nil {
		return nil, err
	}
	return &models.ClassChange{Draft: draft, Outcome: outcome}, nil
}

// RemoveClass drops a class identifier. Removing an unassigned class is a no-op.
func (s *DraftService) RemoveClass(ctx context.Context, ownerID, id, classID string) (*models.ClassChange, error) {
	classIdentifier, err := ParseClassIdentifier(classID)
	if err != nil {
		return nil, err
	}
	draft, token, err := s.lockEditable(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	defer s.unlock(ctx, id, token)

	if !draft.Classes.Contains(classIdentifier) {
		return &models.ClassChange{Draft: draft}, nil
	}
	draft.Classes = RemoveClass(draft.Classes, classIdentifier)
	if err := s.save(ctx, draft); err != nil {
		return nil, err
	}
	return &models.ClassChange{Draft: draft}, nil
}

// Validate reports whether the draft could be submitted as it stands.
func (s *DraftService) Validate(ctx context.Context, ownerID, id string) (*models.ValidationResult, error) {
	draft, err := s.load(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	result := ValidateDraft(*draft)
	return &result, nil
}

// Submit persists the draft as a teacher. On success the draft is closed.
// On store failure it returns to editing with the error recorded, so the
// caller can resubmit. Only one submission per draft runs at a time: the
// draft lock is held and renewed until the store call returns.
func (s *DraftService) Submit(ctx context.Context, ownerID, id string) (*models.Teacher, error) {
	draft, err := s.load(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if s.submitting(draft) {
		s.metrics.ObserveDraftSubmission(SubmissionInFlight)
		return nil, appErrors.Clone(appErrors.ErrDraftSubmitting, "")
	}
	if result := ValidateDraft(*draft); !result.Valid {
		s.metrics.ObserveDraftSubmission(SubmissionInvalid)
		return nil, appErrors.Clone(appErrors.ErrValidation, result.Reason)
	}

	token, err := s.lock(ctx, ownerID, id)
	if err != nil {
		if errors.Is(err, appErrors.ErrDraftSubmitting) {
			s.metrics.ObserveDraftSubmission(SubmissionInFlight)
		}
		return nil, err
	}
	defer s.unlock(ctx, id, token)

	// Reload under the lock so edits that raced the first read are submitted.
	draft, err = s.loadEditable(ctx, ownerID, id)
	if err != nil {
		if errors.Is(err, appErrors.ErrDraftSubmitting) {
			s.metrics.ObserveDraftSubmission(SubmissionInFlight)
		}
		return nil, err
	}
	if result := ValidateDraft(*draft); !result.Valid {
		s.metrics.ObserveDraftSubmission(SubmissionInvalid)
		return nil, appErrors.Clone(appErrors.ErrValidation, result.Reason)
	}

	draft.State = models.DraftSubmitting
	if err := s.save(ctx, draft); err != nil {
		return nil, err
	}

	stop := s.keepAlive(ctx, *draft, token)
	teacher, err := s.teachers.CreateFromDraft(ctx, *draft)
	stop()

	if err != nil {
		s.metrics.ObserveDraftSubmission(SubmissionFailed)
		appErr := appErrors.FromError(err)
		draft.State = models.DraftEditing
		draft.LastError = appErr.Message
		if saveErr := s.save(context.WithoutCancel(ctx), draft); saveErr != nil {
			s.logger.Error("failed to restore draft after submit error", zap.String("draft_id", id), zap.Error(saveErr))
		}
		s.logger.Warn("draft submission failed", zap.String("draft_id", id), zap.Error(err))
		return nil, err
	}

	if err := s.repo.Delete(context.WithoutCancel(ctx), id); err != nil {
		s.logger.Warn("failed to delete submitted draft", zap.String("draft_id", id), zap.Error(err))
	}
	s.metrics.ObserveDraftSubmission(SubmissionCreated)
	s.logger.Info("draft submitted", zap.String("draft_id", id), zap.String("teacher_id", teacher.ID))
	return teacher, nil
}

// Close discards the draft.
func (s *DraftService) Close(ctx context.Context, ownerID, id string) error {
	_, token, err := s.lockEditable(ctx, ownerID, id)
	if err != nil {
		return err
	}
	defer s.unlock(ctx, id, token)

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to close draft")
	}
	return nil
}

func (s *DraftService) load(ctx context.Context, ownerID, id string) (*models.TeacherDraft, error) {
	draft, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrDraftNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "draft not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load draft")
	}
	if draft.OwnerID != ownerID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "draft not found")
	}
	return draft, nil
}

func (s *DraftService) loadEditable(ctx context.Context, ownerID, id string) (*models.TeacherDraft, error) {
	draft, err := s.load(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if s.submitting(draft) {
		return nil, appErrors.Clone(appErrors.ErrDraftSubmitting, "")
	}
	draft.State = models.DraftEditing
	return draft, nil
}

// lockEditable takes the draft lock and loads the draft for a
// read-modify-write. The caller releases the lock with unlock.
func (s *DraftService) lockEditable(ctx context.Context, ownerID, id string) (*models.TeacherDraft, string, error) {
	if _, err := s.loadEditable(ctx, ownerID, id); err != nil {
		return nil, "", err
	}
	token, err := s.lock(ctx, ownerID, id)
	if err != nil {
		return nil, "", err
	}
	draft, err := s.loadEditable(ctx, ownerID, id)
	if err != nil {
		s.unlock(ctx, id, token)
		return nil, "", err
	}
	return draft, token, nil
}

// lock retries briefly so short edits queue behind each other. A lock held
// by a submission reports DRAFT_SUBMITTING, anything else DRAFT_BUSY.
func (s *DraftService) lock(ctx context.Context, ownerID, id string) (string, error) {
	for attempt := 1; ; attempt++ {
		token, ok, err := s.repo.AcquireLock(ctx, id, s.cfg.SubmitLockTTL)
		if err != nil {
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock draft")
		}
		if ok {
			return token, nil
		}
		if attempt >= lockAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return "", appErrors.Wrap(ctx.Err(), appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock draft")
		case <-time.After(lockRetryDelay):
		}
	}

	draft, err := s.load(ctx, ownerID, id)
	if err != nil {
		return "", err
	}
	if draft.State == models.DraftSubmitting {
		return "", appErrors.Clone(appErrors.ErrDraftSubmitting, "")
	}
	return "", appErrors.Clone(appErrors.ErrDraftBusy, "")
}

func (s *DraftService) unlock(ctx context.Context, id, token string) {
	if err := s.repo.ReleaseLock(context.WithoutCancel(ctx), id, token); err != nil {
		s.logger.Warn("failed to release draft lock", zap.String("draft_id", id), zap.Error(err))
	}
}

// keepAlive renews the lock and the draft's UpdatedAt until the returned
// stop func is called, so a live submission never looks abandoned.
func (s *DraftService) keepAlive(ctx context.Context, draft models.TeacherDraft, token string) func() {
	bg := context.WithoutCancel(ctx)
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(max(s.cfg.SubmitLockTTL/3, time.Millisecond))
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				held, err := s.repo.RefreshLock(bg, draft.ID, token, s.cfg.SubmitLockTTL)
				if err != nil || !held {
					s.logger.Warn("draft lock not renewed", zap.String("draft_id", draft.ID), zap.Bool("held", held), zap.Error(err))
					continue
				}
				if err := s.save(bg, &draft); err != nil {
					s.logger.Warn("failed to refresh submitting draft", zap.String("draft_id", draft.ID), zap.Error(err))
				}
			}
		}
	}()
	return func() {
		close(done)
		wg.Wait()
	}
}

// submitting treats a Submitting draft older than the lock TTL as abandoned.
func (s *DraftService) submitting(draft *models.TeacherDraft) bool {
	return draft.State == models.DraftSubmitting && s.now().Sub(draft.UpdatedAt) < s.cfg.SubmitLockTTL
}

func (s *DraftService) save(ctx context.Context, draft *models.TeacherDraft) error {
	draft.UpdatedAt = s.now().UTC()
	if err := s.repo.Save(ctx, draft, s.cfg.TTL); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save draft")
	}
	return nil
}

func (s *DraftService) validate(req interface{}) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.WithDetails(
			appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid draft payload"),
			appValidator.Translate(err),
		)
	}
	return nil
}

func applyFields(draft *models.TeacherDraft, req DraftFieldsRequest) {
	if req.Name != nil {
		draft.Name = *req.Name
	}
	if req.Email != nil {
		draft.Email = *req.Email
	}
	if req.Phone != nil {
		draft.Phone = *req.Phone
	}
	if req.Subject != nil {
		draft.Subject = *req.Subject
	}
}
