package handler

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/taskboard-api/internal/application/confirmation"
	"github.com/taskboard-api/internal/application/session"
	"github.com/taskboard-api/internal/application/user"
	"github.com/taskboard-api/internal/config"
	"github.com/taskboard-api/internal/domain"
	jwtinfra "github.com/taskboard-api/internal/infrastructure/jwt"
	"github.com/taskboard-api/internal/transport/http/middleware"
)

// --- mock ---

type mockUserSvc struct{ mock.Mock }

func (m *mockUserSvc) BeginRegistration(ctx context.Context, req domain.RegistrationRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}
func (m *mockUserSvc) ResendRegistration(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}
func (m *mockUserSvc) CompleteRegistration(ctx context.Context, key, code string, meta session.Meta) (*session.LoginResult, error) {
	args := m.Called(ctx, key, code, meta)
	if r, _ := args.Get(0).(*session.LoginResult); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUserSvc) Me(ctx context.Context, userID string) (*domain.User, error) {
	return m.user(m.Called(ctx, userID))
}
func (m *mockUserSvc) ByTelegramID(ctx context.Context, telegramID int64) (*domain.User, error) {
	return m.user(m.Called(ctx, telegramID))
}
func (m *mockUserSvc) StartEmailChange(ctx context.Context, userID string, req domain.EmailChangeRequest) (*confirmation.StartResult, error) {
	return m.start(m.Called(ctx, userID, req))
}
func (m *mockUserSvc) ConfirmEmailChange(ctx context.Context, userID, code string) (*domain.User, error) {
	return m.user(m.Called(ctx, userID, code))
}
func (m *mockUserSvc) RequestDeletion(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}
func (m *mockUserSvc) ConfirmDeletion(ctx context.Context, userID, code string) error {
	return m.Called(ctx, userID, code).Error(0)
}
func (m *mockUserSvc) ConnectGoogle(ctx context.Context, userID string, g user.GoogleAccount) (*confirmation.StartResult, error) {
	return m.start(m.Called(ctx, userID, g))
}
func (m *mockUserSvc) ConfirmConnectGoogle(ctx context.Context, userID, code string) (*domain.User, error) {
	return m.user(m.Called(ctx, userID, code))
}
func (m *mockUserSvc) RequestDisableGoogle(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}
func (m *mockUserSvc) ConfirmDisableGoogle(ctx context.Context, userID, code string) (*domain.User, error) {
	return m.user(m.Called(ctx, userID, code))
}
func (m *mockUserSvc) Resend(ctx context.Context, userID string, action domain.ActionType) error {
	return m.Called(ctx, userID, action).Error(0)
}
func (m *mockUserSvc) Cancel(ctx context.Context, userID string, action domain.ActionType) error {
	return m.Called(ctx, userID, action).Error(0)
}

func (m *mockUserSvc) user(args mock.Arguments) (*domain.User, error) {
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserSvc) start(args mock.Arguments) (*confirmation.StartResult, error) {
	if r, _ := args.Get(0).(*confirmation.StartResult); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

// --- helpers ---

var testCookie = config.Cookie{RegistrationName: "registration_key", RegistrationTTL: 15 * time.Minute}

const regKey = "5b1f4c52-8f1e-4c57-9b7c-0a3c1d2e3f40"

func newTestJWTProvider(t *testing.T) *jwtinfra.Provider {
	t.Helper()
	privKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return jwtinfra.NewProviderFromKey(privKey, 24*time.Hour)
}

// bearerReq builds a request with a signed Bearer token for userID.
func bearerReq(t *testing.T, p *jwtinfra.Provider, method, target, userID string, body []byte) *http.Request {
	t.Helper()
	token, err := p.Sign(userID, "sess1")
	require.NoError(t, err)
	r := httptest.NewRequest(method, target, bytes.NewReader(body))
	r.Header.Set("Authorization", "Bearer "+token)
	return r
}

// serveAuthed wraps the handler with middleware.Auth before serving.
func serveAuthed(p *jwtinfra.Provider, h http.HandlerFunc, w http.ResponseWriter, r *http.Request) {
	middleware.Auth(p)(h).ServeHTTP(w, r)
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func jsonBody(t *testing.T, v interface{}) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) MessageEnvelope {
	t.Helper()
	var env MessageEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&env))
	return env
}

func findCookie(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// --- registration ---

func TestStartRegistration_SetsCookie(t *testing.T) {
	svc := &mockUserSvc{}
	req := domain.RegistrationRequest{Email: "neo@example.com", Login: "neo", Password: "password123"}
	svc.On("BeginRegistration", mock.Anything, req).Return(regKey, nil)
	h := NewUserHandler(svc, testCookie)

	rr := httptest.NewRecorder()
	h.StartRegistration(rr, httptest.NewRequest(http.MethodPost, "/api/users/confirm-registration", bytes.NewReader(jsonBody(t, req))))

	assert.Equal(t, http.StatusOK, rr.Code)
	c := findCookie(rr, "registration_key")
	require.NotNil(t, c)
	assert.Equal(t, regKey, c.Value)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, 900, c.MaxAge)

	var env StartEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&env))
	assert.Equal(t, "code_sent", env.Status)
	assert.Equal(t, "registration", env.Action)
}

func TestStartRegistration_ValidationFailure(t *testing.T) {
	svc := &mockUserSvc{}
	h := NewUserHandler(svc, testCookie)
	body := jsonBody(t, domain.RegistrationRequest{Email: "neo@example.com", Login: "x", Password: "short"})

	rr := httptest.NewRecorder()
	h.StartRegistration(rr, httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body)))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "validation", decodeEnvelope(t, rr).ErrorCode)
	svc.AssertNotCalled(t, "BeginRegistration", mock.Anything, mock.Anything)
}

func TestStartRegistration_Conflict(t *testing.T) {
	svc := &mockUserSvc{}
	svc.On("BeginRegistration", mock.Anything, mock.Anything).Return("", &domain.ConflictError{Field: domain.FieldEmail})
	h := NewUserHandler(svc, testCookie)
	body := jsonBody(t, domain.RegistrationRequest{Email: "neo@example.com", Login: "neo", Password: "password123"})

	rr := httptest.NewRecorder()
	h.StartRegistration(rr, httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body)))

	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "email", decodeEnvelope(t, rr).Field)
	assert.Nil(t, findCookie(rr, "registration_key"))
}

func TestStartRegistration_DeliveryFailure(t *testing.T) {
	svc := &mockUserSvc{}
	svc.On("BeginRegistration", mock.Anything, mock.Anything).Return("", domain.ErrDelivery)
	h := NewUserHandler(svc, testCookie)
	body := jsonBody(t, domain.RegistrationRequest{Email: "neo@example.com", Login: "neo", Password: "password123"})

	rr := httptest.NewRecorder()
	h.StartRegistration(rr, httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body)))

	assert.Equal(t, http.StatusBadGateway, rr.Code)
}

func TestRegister_HappyPath(t *testing.T) {
	svc := &mockUserSvc{}
	u := &domain.User{UserID: regKey, Login: "neo", Email: "neo@example.com", PasswordHash: "hash"}
	svc.On("CompleteRegistration", mock.Anything, regKey, "123456", mock.Anything).Return(&session.LoginResult{
		Bearer:       "access-token",
		RefreshToken: "refresh-token",
		Session:      &domain.Session{SessionID: "s1", UserID: regKey, User: u},
	}, nil)
	h := NewUserHandler(svc, testCookie)

	r := httptest.NewRequest(http.MethodPost, "/api/users", bytes.NewReader(jsonBody(t, domain.ConfirmationRequest{ConfirmationCode: "123456"})))
	r.AddCookie(&http.Cookie{Name: "registration_key", Value: regKey})
	rr := httptest.NewRecorder()
	h.Register(rr, r)

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.NotContains(t, rr.Body.String(), "hash")
	var resp AuthEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "access-token", resp.AccessToken)
	assert.Equal(t, "neo", resp.User.Login)
	c := findCookie(rr, "registration_key")
	require.NotNil(t, c)
	assert.Equal(t, -1, c.MaxAge)
}

func TestRegister_MissingCookie(t *testing.T) {
	svc := &mockUserSvc{}
	h := NewUserHandler(svc, testCookie)

	rr := httptest.NewRecorder()
	h.Register(rr, httptest.NewRequest(http.MethodPost, "/api/users", bytes.NewReader(jsonBody(t, domain.ConfirmationRequest{ConfirmationCode: "123456"}))))

	assert.Equal(t, http.StatusGone, rr.Code)
}

func TestRegister_MismatchKeepsCookie(t *testing.T) {
	svc := &mockUserSvc{}
	svc.On("CompleteRegistration", mock.Anything, regKey, "000000", mock.Anything).
		Return(nil, &domain.CodeInvalidError{Reason: domain.CodeMismatch})
	h := NewUserHandler(svc, testCookie)

	r := httptest.NewRequest(http.MethodPost, "/api/users", bytes.NewReader(jsonBody(t, domain.ConfirmationRequest{ConfirmationCode: "000000"})))
	r.AddCookie(&http.Cookie{Name: "registration_key", Value: regKey})
	rr := httptest.NewRecorder()
	h.Register(rr, r)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "code_mismatch", decodeEnvelope(t, rr).ErrorCode)
	assert.Nil(t, findCookie(rr, "registration_key"))
}

func TestResendRegistration(t *testing.T) {
	svc := &mockUserSvc{}
	svc.On("ResendRegistration", mock.Anything, regKey).Return(nil)
	h := NewUserHandler(svc, testCookie)

	r := httptest.NewRequest(http.MethodPost, "/api/users/confirm-registration/resend", nil)
	r.AddCookie(&http.Cookie{Name: "registration_key", Value: regKey})
	rr := httptest.NewRecorder()
	h.ResendRegistration(rr, r)

	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

// --- authenticated user endpoints ---

func TestMe_MissingClaims(t *testing.T) {
	h := NewUserHandler(&mockUserSvc{}, testCookie)
	rr := httptest.NewRecorder()
	h.Me(rr, httptest.NewRequest(http.MethodGet, "/api/users/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestMe_SafeProjection(t *testing.T) {
	p := newTestJWTProvider(t)
	svc := &mockUserSvc{}
	svc.On("Me", mock.Anything, "u1").Return(&domain.User{
		UserID: "u1", Login: "neo", Email: "neo@example.com", PasswordHash: "$2a$secret", GoogleSub: "sub-1",
	}, nil)
	h := NewUserHandler(svc, testCookie)

	rr := httptest.NewRecorder()
	serveAuthed(p, h.Me, rr, bearerReq(t, p, http.MethodGet, "/api/users/me", "u1", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), "secret")
	assert.NotContains(t, rr.Body.String(), "sub-1")
	var resp SafeUser
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.GoogleLinked)
}

func TestStartEmailChange_Applied(t *testing.T) {
	p := newTestJWTProvider(t)
	svc := &mockUserSvc{}
	login := "trinity"
	svc.On("StartEmailChange", mock.Anything, "u1", domain.EmailChangeRequest{Login: &login}).Return(&confirmation.StartResult{
		Outcome: confirmation.OutcomeApplied,
		Action:  domain.ActionEmailChange,
		User:    &domain.User{UserID: "u1", Login: "trinity"},
	}, nil)
	h := NewUserHandler(svc, testCookie)

	rr := httptest.NewRecorder()
	body := jsonBody(t, map[string]string{"login": "trinity"})
	serveAuthed(p, h.StartEmailChange, rr, bearerReq(t, p, http.MethodPost, "/api/users/email-change", "u1", body))

	assert.Equal(t, http.StatusOK, rr.Code)
	var env StartEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	assert.Equal(t, "applied", env.Status)
	assert.Equal(t, "trinity", env.User.Login)
}

func TestConfirmEmailChange_PendingMissing(t *testing.T) {
	p := newTestJWTProvider(t)
	svc := &mockUserSvc{}
	svc.On("ConfirmEmailChange", mock.Anything, "u1", "123456").Return(nil, domain.ErrPendingActionMissing)
	h := NewUserHandler(svc, testCookie)

	rr := httptest.NewRecorder()
	body := jsonBody(t, domain.ConfirmationRequest{ConfirmationCode: "123456"})
	serveAuthed(p, h.ConfirmEmailChange, rr, bearerReq(t, p, http.MethodPatch, "/api/users", "u1", body))

	assert.Equal(t, http.StatusGone, rr.Code)
}

func TestConfirmDeletion(t *testing.T) {
	p := newTestJWTProvider(t)
	svc := &mockUserSvc{}
	svc.On("ConfirmDeletion", mock.Anything, "u1", "123456").Return(nil)
	h := NewUserHandler(svc, testCookie)

	rr := httptest.NewRecorder()
	body := jsonBody(t, domain.ConfirmationRequest{ConfirmationCode: "123456"})
	serveAuthed(p, h.ConfirmDeletion, rr, bearerReq(t, p, http.MethodPost, "/api/users/delete", "u1", body))

	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

// --- confirmations ---

func TestConfirmationResend_UnknownAction(t *testing.T) {
	p := newTestJWTProvider(t)
	svc := &mockUserSvc{}
	h := NewConfirmationHandler(svc)

	r := withURLParam(bearerReq(t, p, http.MethodPost, "/api/confirmations/nope/resend", "u1", nil), "action", "nope")
	rr := httptest.NewRecorder()
	serveAuthed(p, h.Resend, rr, r)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	svc.AssertNotCalled(t, "Resend", mock.Anything, mock.Anything, mock.Anything)
}

func TestConfirmationCancel(t *testing.T) {
	p := newTestJWTProvider(t)
	svc := &mockUserSvc{}
	svc.On("Cancel", mock.Anything, "u1", domain.ActionAccountDeletion).Return(nil)
	h := NewConfirmationHandler(svc)

	r := withURLParam(bearerReq(t, p, http.MethodDelete, "/api/confirmations/accountDeletion", "u1", nil), "action", "accountDeletion")
	rr := httptest.NewRecorder()
	serveAuthed(p, h.Cancel, rr, r)

	assert.Equal(t, http.StatusNoContent, rr.Code)
}
