package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/sma-roster-api/internal/models"
	appErrors "github.com/noah-isme/sma-roster-api/pkg/errors"
)

type fakeAuthService struct {
	signUpErr   error
	lastSignUp  models.CredentialsRequest
	signOutArgs [2]string
}

func (f *fakeAuthService) SignUp(ctx context.Context, req models.CredentialsRequest) (*models.SessionResponse, error) {
	f.lastSignUp = req
	if f.signUpErr != nil {
		return nil, f.signUpErr
	}
	return &models.SessionResponse{AccessToken: "access", User: models.UserInfo{Email: req.Email}}, nil
}

func (f *fakeAuthService) SignIn(ctx context.Context, req models.CredentialsRequest) (*models.SessionResponse, error) {
	if req.Password != "secret1" {
		return nil, appErrors.ErrInvalidCredentials
	}
	return &models.SessionResponse{AccessToken: "access"}, nil
}

func (f *fakeAuthService) Refresh(ctx context.Context, req models.RefreshTokenRequest) (*models.SessionResponse, error) {
	return &models.SessionResponse{AccessToken: "rotated"}, nil
}

func (f *fakeAuthService) SignOut(ctx context.Context, refreshToken, userID string) error {
	f.signOutArgs = [2]string{refreshToken, userID}
	return nil
}

func (f *fakeAuthService) Me(ctx context.Context, userID string) (*models.UserInfo, error) {
	return &models.UserInfo{ID: userID, Email: "principal@school.test", Role: models.RolePrincipal}, nil
}

func TestAuthHandlerSignUp(t *testing.T) {
	svc := &fakeAuthService{}
	h := NewAuthHandler(svc)

	c, rec := newTestContext(http.MethodPost, "/auth/sign-up", map[string]string{"email": "a@b.co", "password": "secret1"}, nil)
	c.Request.Header.Set("User-Agent", "roster-app/1.0")
	h.SignUp(c)

	requireStatus(t, rec, http.StatusCreated)
	assert.Equal(t, "roster-app/1.0", svc.lastSignUp.UserAgent)
}

func TestAuthHandlerSignUpConflict(t *testing.T) {
	h := NewAuthHandler(&fakeAuthService{signUpErr: appErrors.Clone(appErrors.ErrConflict, "email already registered")})

	c, rec := newTestContext(http.MethodPost, "/auth/sign-up", map[string]string{"email": "a@b.co", "password": "secret1"}, nil)
	h.SignUp(c)

	requireStatus(t, rec, http.StatusConflict)
	assert.Equal(t, "CONFLICT", decodeEnvelope(t, rec).Error.Code)
}

func TestAuthHandlerMalformedBody(t *testing.T) {
	h := NewAuthHandler(&fakeAuthService{})

	c, rec := newTestContext(http.MethodPost, "/auth/sign-in", "{not json", nil)
	h.SignIn(c)

	requireStatus(t, rec, http.StatusBadRequest)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	assert.Contains(t, env.Error.Details, "body")
}

func TestAuthHandlerSignIn(t *testing.T) {
	h := NewAuthHandler(&fakeAuthService{})

	c, rec := newTestContext(http.MethodPost, "/auth/sign-in", map[string]string{"email": "a@b.co", "password": "secret1"}, nil)
	h.SignIn(c)
	requireStatus(t, rec, http.StatusOK)

	c, rec = newTestContext(http.MethodPost, "/auth/sign-in", map[string]string{"email": "a@b.co", "password": "nope123"}, nil)
	h.SignIn(c)
	requireStatus(t, rec, http.StatusUnauthorized)
}

func TestAuthHandlerSignOutRequiresUser(t *testing.T) {
	svc := &fakeAuthService{}
	h := NewAuthHandler(svc)

	c, rec := newTestContext(http.MethodPost, "/auth/sign-out", map[string]string{"refresh_token": "r1"}, nil)
	h.SignOut(c)
	requireStatus(t, rec, http.StatusUnauthorized)

	c, _ = newTestContext(http.MethodPost, "/auth/sign-out", map[string]string{"refresh_token": "r1"}, testClaims())
	h.SignOut(c)
	assert.Equal(t, http.StatusNoContent, c.Writer.Status())
	assert.Equal(t, [2]string{"r1", "user-1"}, svc.signOutArgs)
}

func TestAuthHandlerMe(t *testing.T) {
	h := NewAuthHandler(&fakeAuthService{})

	c, rec := newTestContext(http.MethodGet, "/auth/me", nil, testClaims())
	h.Me(c)

	requireStatus(t, rec, http.StatusOK)
	var info models.UserInfo
	decodeData(t, decodeEnvelope(t, rec), &info)
	assert.Equal(t, "user-1", info.ID)
}
