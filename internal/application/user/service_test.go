package user

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/taskboard-api/internal/application/confirmation"
	"github.com/taskboard-api/internal/application/session"
	"github.com/taskboard-api/internal/domain"
	"github.com/taskboard-api/internal/pkg/id"
)

// --- mocks ---

type mockUserStore struct{ mock.Mock }

func (m *mockUserStore) Get(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUserStore) GetByTelegramID(ctx context.Context, telegramID int64) (*domain.User, error) {
	args := m.Called(ctx, telegramID)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockConfirmation struct{ mock.Mock }

func (m *mockConfirmation) Start(ctx context.Context, userKey string, payload domain.Payload) (*confirmation.StartResult, error) {
	args := m.Called(ctx, userKey, payload)
	if r, _ := args.Get(0).(*confirmation.StartResult); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockConfirmation) Confirm(ctx context.Context, action domain.ActionType, userKey, code string) (*domain.User, error) {
	args := m.Called(ctx, action, userKey, code)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockConfirmation) Resend(ctx context.Context, action domain.ActionType, userKey string) error {
	return m.Called(ctx, action, userKey).Error(0)
}
func (m *mockConfirmation) Cancel(ctx context.Context, action domain.ActionType, userKey string) error {
	return m.Called(ctx, action, userKey).Error(0)
}

type mockSessions struct{ mock.Mock }

func (m *mockSessions) Open(ctx context.Context, u *domain.User, meta session.Meta) (*session.LoginResult, error) {
	args := m.Called(ctx, u, meta)
	if r, _ := args.Get(0).(*session.LoginResult); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

// --- helpers ---

func newService(us *mockUserStore, cs *mockConfirmation, ss *mockSessions) Service {
	return NewService(ServiceDeps{
		UserRepo:     us,
		Confirmation: cs,
		Sessions:     ss,
		BcryptCost:   bcrypt.MinCost,
	})
}

func ptr[T any](v T) *T { return &v }

// --- registration ---

func TestBeginRegistration(t *testing.T) {
	cs := &mockConfirmation{}
	var got domain.RegistrationPayload
	var key string
	cs.On("Start", mock.Anything, mock.AnythingOfType("string"), mock.AnythingOfType("domain.RegistrationPayload")).
		Run(func(args mock.Arguments) {
			key = args.String(1)
			got = args.Get(2).(domain.RegistrationPayload)
		}).
		Return(&confirmation.StartResult{Outcome: confirmation.OutcomeCodeSent}, nil)

	out, err := newService(&mockUserStore{}, cs, &mockSessions{}).BeginRegistration(context.Background(), domain.RegistrationRequest{
		Email:    "Neo@Example.com",
		Login:    " neo ",
		Password: "password123",
	})

	require.NoError(t, err)
	assert.Equal(t, key, out)
	assert.True(t, id.IsUUID(out))
	assert.Equal(t, "neo@example.com", got.Email)
	assert.Equal(t, "neo", got.Login)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(got.PasswordHash), []byte("password123")))
}

func TestBeginRegistration_PropagatesConflict(t *testing.T) {
	cs := &mockConfirmation{}
	cs.On("Start", mock.Anything, mock.Anything, mock.Anything).Return(nil, &domain.ConflictError{Field: domain.FieldLogin})

	_, err := newService(&mockUserStore{}, cs, &mockSessions{}).BeginRegistration(context.Background(), domain.RegistrationRequest{
		Email: "neo@example.com", Login: "neo", Password: "password123",
	})

	var ce *domain.ConflictError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, domain.FieldLogin, ce.Field)
}

func TestBeginRegistration_InvalidEmail(t *testing.T) {
	cs := &mockConfirmation{}

	_, err := newService(&mockUserStore{}, cs, &mockSessions{}).BeginRegistration(context.Background(), domain.RegistrationRequest{
		Email: "not-an-email", Login: "neo", Password: "password123",
	})

	assert.True(t, errors.Is(err, domain.ErrBadRequest))
	cs.AssertNotCalled(t, "Start", mock.Anything, mock.Anything, mock.Anything)
}

func TestCompleteRegistration_OpensSession(t *testing.T) {
	cs, ss := &mockConfirmation{}, &mockSessions{}
	key := id.NewUUID()
	u := &domain.User{UserID: key, Login: "neo"}
	meta := session.Meta{UserAgent: "ua"}
	cs.On("Confirm", mock.Anything, domain.ActionRegistration, key, "123456").Return(u, nil)
	ss.On("Open", mock.Anything, u, meta).Return(&session.LoginResult{Bearer: "bearer"}, nil)

	res, err := newService(&mockUserStore{}, cs, ss).CompleteRegistration(context.Background(), key, "123456", meta)

	require.NoError(t, err)
	assert.Equal(t, "bearer", res.Bearer)
}

func TestCompleteRegistration_BadCode(t *testing.T) {
	cs, ss := &mockConfirmation{}, &mockSessions{}
	key := id.NewUUID()
	cs.On("Confirm", mock.Anything, domain.ActionRegistration, key, "000000").
		Return(nil, &domain.CodeInvalidError{Reason: domain.CodeMismatch})

	_, err := newService(&mockUserStore{}, cs, ss).CompleteRegistration(context.Background(), key, "000000", session.Meta{})

	assert.True(t, errors.Is(err, domain.ErrCodeInvalid))
	ss.AssertNotCalled(t, "Open", mock.Anything, mock.Anything, mock.Anything)
}

func TestCompleteRegistration_MalformedKey(t *testing.T) {
	cs := &mockConfirmation{}

	_, err := newService(&mockUserStore{}, cs, &mockSessions{}).CompleteRegistration(context.Background(), "garbage", "123456", session.Meta{})

	assert.True(t, errors.Is(err, domain.ErrPendingActionMissing))
	cs.AssertNotCalled(t, "Confirm", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestResendRegistration(t *testing.T) {
	cs := &mockConfirmation{}
	key := id.NewUUID()
	cs.On("Resend", mock.Anything, domain.ActionRegistration, key).Return(nil)

	require.NoError(t, newService(&mockUserStore{}, cs, &mockSessions{}).ResendRegistration(context.Background(), key))
	cs.AssertExpectations(t)
}

// --- profile ---

func TestMe_HidesDeleted(t *testing.T) {
	us := &mockUserStore{}
	us.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1", IsDeleted: true}, nil)

	_, err := newService(us, &mockConfirmation{}, &mockSessions{}).Me(context.Background(), "u1")

	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestByTelegramID(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByTelegramID", mock.Anything, int64(42)).Return(&domain.User{UserID: "u1"}, nil)
	svc := newService(us, &mockConfirmation{}, &mockSessions{})

	u, err := svc.ByTelegramID(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "u1", u.UserID)

	_, err = svc.ByTelegramID(context.Background(), 0)
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

// --- confirmed account changes ---

func TestStartEmailChange_NormalizesPayload(t *testing.T) {
	cs := &mockConfirmation{}
	want := domain.EmailChangePayload{NewEmail: "neo@gmail.com", NewLogin: "trinity"}
	cs.On("Start", mock.Anything, "u1", want).Return(&confirmation.StartResult{Outcome: confirmation.OutcomeCodeSent}, nil)

	res, err := newService(&mockUserStore{}, cs, &mockSessions{}).StartEmailChange(context.Background(), "u1", domain.EmailChangeRequest{
		Email: ptr("Neo@GoogleMail.com"),
		Login: ptr("trinity"),
	})

	require.NoError(t, err)
	assert.Equal(t, confirmation.OutcomeCodeSent, res.Outcome)
}

func TestStartEmailChange_NothingToChange(t *testing.T) {
	cs := &mockConfirmation{}

	_, err := newService(&mockUserStore{}, cs, &mockSessions{}).StartEmailChange(context.Background(), "u1", domain.EmailChangeRequest{})

	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

func TestDeletionFlow(t *testing.T) {
	cs := &mockConfirmation{}
	cs.On("Start", mock.Anything, "u1", domain.AccountDeletionPayload{}).Return(&confirmation.StartResult{}, nil)
	cs.On("Confirm", mock.Anything, domain.ActionAccountDeletion, "u1", "123456").Return(nil, nil)
	svc := newService(&mockUserStore{}, cs, &mockSessions{})

	require.NoError(t, svc.RequestDeletion(context.Background(), "u1"))
	require.NoError(t, svc.ConfirmDeletion(context.Background(), "u1", "123456"))
	cs.AssertExpectations(t)
}

func TestConnectGoogle_RequiresVerifiedEmail(t *testing.T) {
	cs := &mockConfirmation{}

	_, err := newService(&mockUserStore{}, cs, &mockSessions{}).ConnectGoogle(context.Background(), "u1", GoogleAccount{Sub: "s", Email: "neo@gmail.com"})

	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
	cs.AssertNotCalled(t, "Start", mock.Anything, mock.Anything, mock.Anything)
}

func TestConnectGoogle_Starts(t *testing.T) {
	cs := &mockConfirmation{}
	want := domain.ConnectGooglePayload{GoogleSub: "sub-1", GoogleEmail: "neo@gmail.com"}
	cs.On("Start", mock.Anything, "u1", want).Return(&confirmation.StartResult{Outcome: confirmation.OutcomeApplied}, nil)

	res, err := newService(&mockUserStore{}, cs, &mockSessions{}).ConnectGoogle(context.Background(), "u1", GoogleAccount{
		Sub: "sub-1", Email: "Neo@gmail.com", EmailVerified: true,
	})

	require.NoError(t, err)
	assert.Equal(t, confirmation.OutcomeApplied, res.Outcome)
}

func TestDisableGoogleFlow(t *testing.T) {
	cs := &mockConfirmation{}
	cs.On("Start", mock.Anything, "u1", domain.DisableGooglePayload{}).Return(&confirmation.StartResult{}, nil)
	cs.On("Confirm", mock.Anything, domain.ActionDisableGoogle, "u1", "654321").Return(&domain.User{UserID: "u1"}, nil)
	svc := newService(&mockUserStore{}, cs, &mockSessions{})

	require.NoError(t, svc.RequestDisableGoogle(context.Background(), "u1"))
	u, err := svc.ConfirmDisableGoogle(context.Background(), "u1", "654321")
	require.NoError(t, err)
	assert.False(t, u.HasGoogle())
}

func TestResendAndCancel_RejectRegistration(t *testing.T) {
	cs := &mockConfirmation{}
	svc := newService(&mockUserStore{}, cs, &mockSessions{})

	assert.True(t, errors.Is(svc.Resend(context.Background(), "u1", domain.ActionRegistration), domain.ErrBadRequest))
	assert.True(t, errors.Is(svc.Cancel(context.Background(), "u1", domain.ActionRegistration), domain.ErrBadRequest))
	cs.AssertNotCalled(t, "Resend", mock.Anything, mock.Anything, mock.Anything)
}

func TestResendAndCancel_Delegate(t *testing.T) {
	cs := &mockConfirmation{}
	cs.On("Resend", mock.Anything, domain.ActionEmailChange, "u1").Return(nil)
	cs.On("Cancel", mock.Anything, domain.ActionEmailChange, "u1").Return(nil)
	svc := newService(&mockUserStore{}, cs, &mockSessions{})

	require.NoError(t, svc.Resend(context.Background(), "u1", domain.ActionEmailChange))
	require.NoError(t, svc.Cancel(context.Background(), "u1", domain.ActionEmailChange))
	cs.AssertExpectations(t)
}
