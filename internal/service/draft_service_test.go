package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-roster-api/internal/models"
	"github.com/noah-isme/sma-roster-api/internal/repository"
	appErrors "github.com/noah-isme/sma-roster-api/pkg/errors"
)

type stubTeacherCreator struct {
	mu      sync.Mutex
	err     error
	calls   int
	drafts  []models.TeacherDraft
	entered chan struct{}
	release chan struct{}
}

func (s *stubTeacherCreator) CreateFromDraft(ctx context.Context, draft models.TeacherDraft) (*models.Teacher, error) {
	s.mu.Lock()
	s.calls++
	s.drafts = append(s.drafts, draft)
	err := s.err
	s.mu.Unlock()

	if s.entered != nil {
		s.entered <- struct{}{}
		<-s.release
	}
	if err != nil {
		return nil, err
	}
	return &models.Teacher{ID: "teacher-1", Name: draft.Name, Classes: draft.Classes.Strings()}, nil
}

func strPtr(v string) *string { return &v }

func newTestDraftService(creator *stubTeacherCreator) (*DraftService, *repository.MemoryDraftRepository) {
	repo := repository.NewMemoryDraftRepository()
	return NewDraftService(repo, creator, nil, nil, nil, DraftServiceConfig{}), repo
}

func openFilledDraft(t *testing.T, svc *DraftService, owner string) *models.TeacherDraft {
	t.Helper()
	ctx := context.Background()
	draft, err := svc.Open(ctx, owner, DraftFieldsRequest{
		Name:    strPtr("Ana"),
		Email:   strPtr("ana@school.test"),
		Subject: strPtr("Math"),
	})
	require.NoError(t, err)
	_, err = svc.AddClass(ctx, owner, draft.ID, AddClassRequest{Standard: "10th", Division: "A"})
	require.NoError(t, err)
	return draft
}

func TestDraftServiceOpenAndEdit(t *testing.T) {
	svc, _ := newTestDraftService(&stubTeacherCreator{})
	ctx := context.Background()

	draft, err := svc.Open(ctx, "u1", DraftFieldsRequest{})
	require.NoError(t, err)
	assert.Equal(t, models.DraftEditing, draft.State)
	assert.Empty(t, draft.Classes)

	updated, err := svc.UpdateFields(ctx, "u1", draft.ID, DraftFieldsRequest{Name: strPtr("Ana"), Phone: strPtr("555")})
	require.NoError(t, err)
	assert.Equal(t, "Ana", updated.Name)
	assert.Equal(t, "555", updated.Phone)

	updated, err = svc.UpdateFields(ctx, "u1", draft.ID, DraftFieldsRequest{Subject: strPtr("Math")})
	require.NoError(t, err)
	assert.Equal(t, "Ana", updated.Name, "nil fields are left alone")
	assert.Equal(t, "Math", updated.Subject)
}

func TestDraftServiceClassEditing(t *testing.T) {
	svc, _ := newTestDraftService(&stubTeacherCreator{})
	ctx := context.Background()
	draft, err := svc.Open(ctx, "u1", DraftFieldsRequest{})
	require.NoError(t, err)

	change, err := svc.AddClass(ctx, "u1", draft.ID, AddClassRequest{Standard: "10th", Division: "A"})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeAdded, change.Outcome)
	assert.Empty(t, change.Notice)

	change, err = svc.AddClass(ctx, "u1", draft.ID, AddClassRequest{Standard: "12th", Division: "C"})
	require.NoError(t, err)
	assert.Equal(t, models.AssignedClassSet{"10A", "12C"}, change.Draft.Classes)

	change, err = svc.AddClass(ctx, "u1", draft.ID, AddClassRequest{Standard: "10th", Division: "A"})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeDuplicate, change.Outcome)
	assert.Equal(t, DuplicateClassNotice, change.Notice)
	assert.Equal(t, models.AssignedClassSet{"10A", "12C"}, change.Draft.Classes)

	_, err = svc.AddClass(ctx, "u1", draft.ID, AddClassRequest{Standard: "13th", Division: "A"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	change, err = svc.RemoveClass(ctx, "u1", draft.ID, "10a")
	require.NoError(t, err)
	assert.Equal(t, models.AssignedClassSet{"12C"}, change.Draft.Classes)

	change, err = svc.RemoveClass(ctx, "u1", draft.ID, "3B")
	require.NoError(t, err)
	assert.Equal(t, models.AssignedClassSet{"12C"}, change.Draft.Classes)

	_, err = svc.RemoveClass(ctx, "u1", draft.ID, "bogus")
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	loaded, err := svc.Get(ctx, "u1", draft.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AssignedClassSet{"12C"}, loaded.Classes)
}

func TestDraftServiceValidate(t *testing.T) {
	svc, _ := newTestDraftService(&stubTeacherCreator{})
	ctx := context.Background()

	empty, err := svc.Open(ctx, "u1", DraftFieldsRequest{Name: strPtr("Ana")})
	require.NoError(t, err)
	result, err := svc.Validate(ctx, "u1", empty.ID)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, DraftInvalidReason, result.Reason)

	filled := openFilledDraft(t, svc, "u1")
	result, err = svc.Validate(ctx, "u1", filled.ID)
	require.NoError(t, err)
	assert.True(t, result.Valid)
}

func TestDraftServiceOwnerIsolation(t *testing.T) {
	svc, _ := newTestDraftService(&stubTeacherCreator{})
	ctx := context.Background()
	draft := openFilledDraft(t, svc, "u1")

	_, err := svc.Get(ctx, "u2", draft.ID)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	_, err = svc.Submit(ctx, "u2", draft.ID)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	assert.ErrorIs(t, svc.Close(ctx, "u2", draft.ID), appErrors.ErrNotFound)

	_, err = svc.Get(ctx, "u1", "missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestDraftServiceSubmitSuccessClosesDraft(t *testing.T) {
	creator := &stubTeacherCreator{}
	svc, repo := newTestDraftService(creator)
	ctx := context.Background()
	draft := openFilledDraft(t, svc, "u1")

	teacher, err := svc.Submit(ctx, "u1", draft.ID)
	require.NoError(t, err)
	assert.Equal(t, "teacher-1", teacher.ID)
	assert.Equal(t, []string{"10A"}, []string(teacher.Classes))
	require.Len(t, creator.drafts, 1)
	assert.Equal(t, models.DraftSubmitting, creator.drafts[0].State)

	_, err = repo.Get(ctx, draft.ID)
	assert.ErrorIs(t, err, repository.ErrDraftNotFound)

	_, locked, err := repo.AcquireLock(ctx, draft.ID, time.Second)
	require.NoError(t, err)
	assert.True(t, locked, "lock must be released after submit")
}

func TestDraftServiceSubmitInvalidSkipsStore(t *testing.T) {
	creator := &stubTeacherCreator{}
	svc, _ := newTestDraftService(creator)
	ctx := context.Background()

	draft, err := svc.Open(ctx, "u1", DraftFieldsRequest{Name: strPtr("Ana"), Email: strPtr("a@b.c"), Subject: strPtr("Math")})
	require.NoError(t, err)

	_, err = svc.Submit(ctx, "u1", draft.ID)
	require.Error(t, err)
	assert.Equal(t, DraftInvalidReason, appErrors.FromError(err).Message)
	assert.Zero(t, creator.calls)

	loaded, err := svc.Get(ctx, "u1", draft.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DraftEditing, loaded.State)
}

func TestDraftServiceSubmitFailurePreservesDraft(t *testing.T) {
	creator := &stubTeacherCreator{err: appErrors.Wrap(errors.New("timeout"), appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save teacher")}
	svc, _ := newTestDraftService(creator)
	ctx := context.Background()
	draft := openFilledDraft(t, svc, "u1")

	_, err := svc.Submit(ctx, "u1", draft.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrInternal)

	loaded, err := svc.Get(ctx, "u1", draft.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DraftEditing, loaded.State)
	assert.Equal(t, "failed to save teacher", loaded.LastError)
	assert.Equal(t, "Ana", loaded.Name)
	assert.Equal(t, models.AssignedClassSet{"10A"}, loaded.Classes)

	creator.err = nil
	teacher, err := svc.Submit(ctx, "u1", draft.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana", teacher.Name)
	assert.Equal(t, 2, creator.calls)
}

func TestDraftServiceSingleSubmissionInFlight(t *testing.T) {
	creator := &stubTeacherCreator{entered: make(chan struct{}), release: make(chan struct{})}
	svc, _ := newTestDraftService(creator)
	ctx := context.Background()
	draft := openFilledDraft(t, svc, "u1")

	done := make(chan error, 1)
	go func() {
		_, err := svc.Submit(ctx, "u1", draft.ID)
		done <- err
	}()
	<-creator.entered

	_, err := svc.Submit(ctx, "u1", draft.ID)
	assert.ErrorIs(t, err, appErrors.ErrDraftSubmitting)
	_, err = svc.AddClass(ctx, "u1", draft.ID, AddClassRequest{Standard: "1st", Division: "B"})
	assert.ErrorIs(t, err, appErrors.ErrDraftSubmitting)
	_, err = svc.UpdateFields(ctx, "u1", draft.ID, DraftFieldsRequest{Name: strPtr("Other")})
	assert.ErrorIs(t, err, appErrors.ErrDraftSubmitting)
	assert.ErrorIs(t, svc.Close(ctx, "u1", draft.ID), appErrors.ErrDraftSubmitting)

	close(creator.release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, creator.calls)
}

func TestDraftServiceSlowStoreKeepsSubmissionExclusive(t *testing.T) {
	creator := &stubTeacherCreator{entered: make(chan struct{}), release: make(chan struct{})}
	repo := repository.NewMemoryDraftRepository()
	svc := NewDraftService(repo, creator, nil, nil, nil, DraftServiceConfig{SubmitLockTTL: 60 * time.Millisecond})
	ctx := context.Background()
	draft := openFilledDraft(t, svc, "u1")

	done := make(chan error, 1)
	go func() {
		_, err := svc.Submit(ctx, "u1", draft.ID)
		done <- err
	}()
	<-creator.entered

	// Outlast several lock periods while the store call is still running.
	time.Sleep(250 * time.Millisecond)

	_, err := svc.Submit(ctx, "u1", draft.ID)
	assert.ErrorIs(t, err, appErrors.ErrDraftSubmitting)
	_, err = svc.UpdateFields(ctx, "u1", draft.ID, DraftFieldsRequest{Name: strPtr("Other")})
	assert.ErrorIs(t, err, appErrors.ErrDraftSubmitting)

	_, locked, err := repo.AcquireLock(ctx, draft.ID, time.Second)
	require.NoError(t, err)
	assert.False(t, locked, "lock must be renewed while the store call runs")

	close(creator.release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, creator.calls)
	assert.Equal(t, "Ana", creator.drafts[0].Name)
}

func TestDraftServiceEditsWaitForDraftLock(t *testing.T) {
	svc, repo := newTestDraftService(&stubTeacherCreator{})
	ctx := context.Background()
	draft := openFilledDraft(t, svc, "u1")

	token, locked, err := repo.AcquireLock(ctx, draft.ID, time.Minute)
	require.NoError(t, err)
	require.True(t, locked)

	_, err = svc.UpdateFields(ctx, "u1", draft.ID, DraftFieldsRequest{Name: strPtr("Bea")})
	assert.ErrorIs(t, err, appErrors.ErrDraftBusy)
	_, err = svc.AddClass(ctx, "u1", draft.ID, AddClassRequest{Standard: "1st", Division: "B"})
	assert.ErrorIs(t, err, appErrors.ErrDraftBusy)
	assert.ErrorIs(t, svc.Close(ctx, "u1", draft.ID), appErrors.ErrDraftBusy)

	loaded, err := svc.Get(ctx, "u1", draft.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana", loaded.Name)
	assert.Equal(t, models.AssignedClassSet{"10A"}, loaded.Classes)

	require.NoError(t, repo.ReleaseLock(ctx, draft.ID, token))
	updated, err := svc.UpdateFields(ctx, "u1", draft.ID, DraftFieldsRequest{Name: strPtr("Bea")})
	require.NoError(t, err)
	assert.Equal(t, "Bea", updated.Name)
}

func TestDraftServiceEditQueuedBehindShortLock(t *testing.T) {
	svc, repo := newTestDraftService(&stubTeacherCreator{})
	ctx := context.Background()
	draft := openFilledDraft(t, svc, "u1")

	token, locked, err := repo.AcquireLock(ctx, draft.ID, time.Minute)
	require.NoError(t, err)
	require.True(t, locked)

	go func() {
		time.Sleep(lockRetryDelay)
		_ = repo.ReleaseLock(ctx, draft.ID, token)
	}()

	updated, err := svc.UpdateFields(ctx, "u1", draft.ID, DraftFieldsRequest{Phone: strPtr("555")})
	require.NoError(t, err)
	assert.Equal(t, "555", updated.Phone)
}

func TestDraftServiceAbandonedSubmissionIsEditable(t *testing.T) {
	svc, repo := newTestDraftService(&stubTeacherCreator{})
	ctx := context.Background()
	draft := openFilledDraft(t, svc, "u1")

	stuck, err := repo.Get(ctx, draft.ID)
	require.NoError(t, err)
	stuck.State = models.DraftSubmitting
	stuck.UpdatedAt = time.Now().Add(-time.Hour)
	require.NoError(t, repo.Save(ctx, stuck, time.Hour))

	_, err = svc.UpdateFields(ctx, "u1", draft.ID, DraftFieldsRequest{Phone: strPtr("555")})
	require.NoError(t, err)
	_, err = svc.Submit(ctx, "u1", draft.ID)
	require.NoError(t, err)
}

func TestDraftServiceClose(t *testing.T) {
	creator := &stubTeacherCreator{}
	svc, _ := newTestDraftService(creator)
	ctx := context.Background()
	draft := openFilledDraft(t, svc, "u1")

	require.NoError(t, svc.Close(ctx, "u1", draft.ID))
	_, err := svc.Get(ctx, "u1", draft.ID)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	assert.Zero(t, creator.calls)
}

func TestDraftServiceDraftsAreIndependent(t *testing.T) {
	svc, _ := newTestDraftService(&stubTeacherCreator{})
	ctx := context.Background()
	first := openFilledDraft(t, svc, "u1")
	second, err := svc.Open(ctx, "u1", DraftFieldsRequest{})
	require.NoError(t, err)

	_, err = svc.AddClass(ctx, "u1", second.ID, AddClassRequest{Standard: "1st", Division: "E"})
	require.NoError(t, err)

	loaded, err := svc.Get(ctx, "u1", first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AssignedClassSet{"10A"}, loaded.Classes)
}
