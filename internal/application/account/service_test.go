package account

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/reservation-app/api/internal/application/session"
	"github.com/reservation-app/api/internal/domain"
	"github.com/reservation-app/api/internal/pkg/phone"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// --- mocks ---

type mockAccountStore struct{ mock.Mock }

func (m *mockAccountStore) CreateWithCredentials(ctx context.Context, a *domain.Account, credKeys []string) error {
	return m.Called(ctx, a, credKeys).Error(0)
}
func (m *mockAccountStore) Get(ctx context.Context, accountID string) (*domain.Account, error) {
	args := m.Called(ctx, accountID)
	if a, _ := args.Get(0).(*domain.Account); a != nil {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockAccountStore) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	args := m.Called(ctx, email)
	if a, _ := args.Get(0).(*domain.Account); a != nil {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockAccountStore) GetByPhone(ctx context.Context, p string) (*domain.Account, error) {
	args := m.Called(ctx, p)
	if a, _ := args.Get(0).(*domain.Account); a != nil {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockAccountStore) EmailExists(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}
func (m *mockAccountStore) PhoneExists(ctx context.Context, p string) (bool, error) {
	args := m.Called(ctx, p)
	return args.Bool(0), args.Error(1)
}
func (m *mockAccountStore) Update(ctx context.Context, accountID string, updates map[string]interface{}) error {
	return m.Called(ctx, accountID, updates).Error(0)
}
func (m *mockAccountStore) SoftDelete(ctx context.Context, accountID string) error {
	return m.Called(ctx, accountID).Error(0)
}
func (m *mockAccountStore) QueryPage(ctx context.Context, limit int32, cursor string) ([]domain.Account, string, error) {
	args := m.Called(ctx, limit, cursor)
	return args.Get(0).([]domain.Account), args.String(1), args.Error(2)
}

type mockSessionKiller struct{ mock.Mock }

func (m *mockSessionKiller) SoftDeleteByAccount(ctx context.Context, accountID string) error {
	return m.Called(ctx, accountID).Error(0)
}

type mockPhoneCodeSvc struct{ mock.Mock }

func (m *mockPhoneCodeSvc) Request(ctx context.Context, rawPhone string) error {
	return m.Called(ctx, rawPhone).Error(0)
}
func (m *mockPhoneCodeSvc) RequestCall(ctx context.Context, rawPhone string) error {
	return m.Called(ctx, rawPhone).Error(0)
}
func (m *mockPhoneCodeSvc) Verify(ctx context.Context, rawPhone, submitted string) error {
	return m.Called(ctx, rawPhone, submitted).Error(0)
}

type mockEmailVerifySvc struct{ mock.Mock }

func (m *mockEmailVerifySvc) Request(ctx context.Context, accountID string) error {
	return m.Called(ctx, accountID).Error(0)
}
func (m *mockEmailVerifySvc) Consume(ctx context.Context, tokenValue string) error {
	return m.Called(ctx, tokenValue).Error(0)
}

type mockIssuer struct{ mock.Mock }

func (m *mockIssuer) Issue(ctx context.Context, account *domain.Account) (*session.Result, error) {
	args := m.Called(ctx, account)
	if r, _ := args.Get(0).(*session.Result); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockIssuer) Refresh(ctx context.Context, refreshToken string) (string, string, error) {
	args := m.Called(ctx, refreshToken)
	return args.String(0), args.String(1), args.Error(2)
}
func (m *mockIssuer) Logout(ctx context.Context, sessionID string) error {
	return m.Called(ctx, sessionID).Error(0)
}
func (m *mockIssuer) GetCurrent(ctx context.Context, sessionID string) (*domain.Session, error) {
	args := m.Called(ctx, sessionID)
	if s, _ := args.Get(0).(*domain.Session); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

// --- builder ---

func newTestService(as accountStore, sk sessionKiller, pc *mockPhoneCodeSvc, ev *mockEmailVerifySvc, is *mockIssuer) Service {
	return NewService(ServiceDeps{
		AccountRepo:     as,
		SessionRepo:     sk,
		PhoneCodes:      pc,
		EmailTokens:     ev,
		Issuer:          is,
		Checker:         phone.StaticChecker{},
		SendEmailVerify: true,
	})
}

func issuedResult(a *domain.Account) *session.Result {
	return &session.Result{
		Bearer:       "bearer-token",
		RefreshToken: "refresh-token",
		Session:      &domain.Session{SessionID: "s1", AccountID: a.AccountID, Account: a},
	}
}

func strPtr(s string) *string { return &s }

// --- RegisterWithEmail ---

func TestRegisterWithEmail_HappyPath(t *testing.T) {
	as := &mockAccountStore{}
	ev := &mockEmailVerifySvc{}
	is := &mockIssuer{}

	as.On("EmailExists", mock.Anything, "a@b.com").Return(false, nil)
	var created *domain.Account
	var creds []string
	as.On("CreateWithCredentials", mock.Anything, mock.AnythingOfType("*domain.Account"), mock.Anything).
		Run(func(args mock.Arguments) {
			created = args.Get(1).(*domain.Account)
			creds = args.Get(2).([]string)
		}).
		Return(nil)
	ev.On("Request", mock.Anything, mock.AnythingOfType("string")).Return(nil)
	is.On("Issue", mock.Anything, mock.AnythingOfType("*domain.Account")).
		Return(issuedResult(&domain.Account{AccountID: "a1"}), nil)

	svc := newTestService(as, &mockSessionKiller{}, &mockPhoneCodeSvc{}, ev, is)
	res, err := svc.RegisterWithEmail(context.Background(), domain.RegisterEmailRequest{
		Email: "a@b.com", Password: "secret123", FirstName: "Alice", LastName: "Smith",
	})

	require.NoError(t, err)
	assert.Equal(t, "bearer-token", res.Bearer)
	require.NotNil(t, created)
	assert.Equal(t, []string{"email#a@b.com"}, creds)
	assert.False(t, created.EmailVerified)
	assert.Equal(t, domain.RoleUser, created.Role)
	// The hash must verify; the raw password must not be stored.
	assert.NotEqual(t, "secret123", created.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(created.PasswordHash), []byte("secret123")))
	ev.AssertCalled(t, "Request", mock.Anything, created.AccountID)
}

func TestRegisterWithEmail_Duplicate_PreCheck(t *testing.T) {
	as := &mockAccountStore{}
	as.On("EmailExists", mock.Anything, "a@b.com").Return(true, nil)

	svc := newTestService(as, &mockSessionKiller{}, &mockPhoneCodeSvc{}, &mockEmailVerifySvc{}, &mockIssuer{})
	_, err := svc.RegisterWithEmail(context.Background(), domain.RegisterEmailRequest{
		Email: "a@b.com", Password: "secret123", FirstName: "A", LastName: "B",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrCredentialExists))
	as.AssertNotCalled(t, "CreateWithCredentials", mock.Anything, mock.Anything, mock.Anything)
}

func TestRegisterWithEmail_Duplicate_TransactionLoser(t *testing.T) {
	as := &mockAccountStore{}
	as.On("EmailExists", mock.Anything, "a@b.com").Return(false, nil)
	as.On("CreateWithCredentials", mock.Anything, mock.Anything, mock.Anything).
		Return(fmt.Errorf("credential taken: %w", domain.ErrCredentialExists))

	svc := newTestService(as, &mockSessionKiller{}, &mockPhoneCodeSvc{}, &mockEmailVerifySvc{}, &mockIssuer{})
	_, err := svc.RegisterWithEmail(context.Background(), domain.RegisterEmailRequest{
		Email: "a@b.com", Password: "secret123", FirstName: "A", LastName: "B",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrCredentialExists))
}

func TestRegisterWithEmail_VerificationFailure_DoesNotFailRegistration(t *testing.T) {
	as := &mockAccountStore{}
	ev := &mockEmailVerifySvc{}
	is := &mockIssuer{}

	as.On("EmailExists", mock.Anything, mock.Anything).Return(false, nil)
	as.On("CreateWithCredentials", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	ev.On("Request", mock.Anything, mock.Anything).Return(errors.New("smtp down"))
	is.On("Issue", mock.Anything, mock.Anything).Return(issuedResult(&domain.Account{AccountID: "a1"}), nil)

	svc := newTestService(as, &mockSessionKiller{}, &mockPhoneCodeSvc{}, ev, is)
	res, err := svc.RegisterWithEmail(context.Background(), domain.RegisterEmailRequest{
		Email: "a@b.com", Password: "secret123", FirstName: "A", LastName: "B",
	})
	require.NoError(t, err)
	assert.NotNil(t, res)
}

// --- RegisterWithPhone ---

func TestRegisterWithPhone_HappyPath_ConsumesCodeAndBornVerified(t *testing.T) {
	as := &mockAccountStore{}
	pc := &mockPhoneCodeSvc{}
	is := &mockIssuer{}

	pc.On("Verify", mock.Anything, "+5551234567", "123456").Return(nil)
	as.On("PhoneExists", mock.Anything, "+5551234567").Return(false, nil)
	var created *domain.Account
	var creds []string
	as.On("CreateWithCredentials", mock.Anything, mock.AnythingOfType("*domain.Account"), mock.Anything).
		Run(func(args mock.Arguments) {
			created = args.Get(1).(*domain.Account)
			creds = args.Get(2).([]string)
		}).
		Return(nil)
	is.On("Issue", mock.Anything, mock.Anything).Return(issuedResult(&domain.Account{AccountID: "a1"}), nil)

	svc := newTestService(as, &mockSessionKiller{}, pc, &mockEmailVerifySvc{}, is)
	_, err := svc.RegisterWithPhone(context.Background(), domain.RegisterPhoneRequest{
		Phone: "+555 123-4567", Code: "123456", FirstName: "A", LastName: "B",
	})

	require.NoError(t, err)
	require.NotNil(t, created)
	assert.True(t, created.PhoneVerified)
	assert.NotNil(t, created.PhoneVerifiedAt)
	assert.Equal(t, []string{"phone#+5551234567"}, creds)
	pc.AssertExpectations(t)
}

func TestRegisterWithPhone_WithEmail_ReservesBoth(t *testing.T) {
	as := &mockAccountStore{}
	pc := &mockPhoneCodeSvc{}
	ev := &mockEmailVerifySvc{}
	is := &mockIssuer{}

	pc.On("Verify", mock.Anything, "5551234567", "123456").Return(nil)
	as.On("PhoneExists", mock.Anything, "5551234567").Return(false, nil)
	var creds []string
	as.On("CreateWithCredentials", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { creds = args.Get(2).([]string) }).
		Return(nil)
	ev.On("Request", mock.Anything, mock.Anything).Return(nil)
	is.On("Issue", mock.Anything, mock.Anything).Return(issuedResult(&domain.Account{AccountID: "a1"}), nil)

	svc := newTestService(as, &mockSessionKiller{}, pc, ev, is)
	_, err := svc.RegisterWithPhone(context.Background(), domain.RegisterPhoneRequest{
		Phone: "5551234567", Code: "123456", Email: strPtr("a@b.com"), FirstName: "A", LastName: "B",
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"phone#5551234567", "email#a@b.com"}, creds)
	ev.AssertCalled(t, "Request", mock.Anything, mock.AnythingOfType("string"))
}

func TestRegisterWithPhone_BadCode_NoAccount(t *testing.T) {
	as := &mockAccountStore{}
	pc := &mockPhoneCodeSvc{}
	pc.On("Verify", mock.Anything, "5551234567", "999999").
		Return(fmt.Errorf("code mismatch: %w", domain.ErrInvalidToken))

	svc := newTestService(as, &mockSessionKiller{}, pc, &mockEmailVerifySvc{}, &mockIssuer{})
	_, err := svc.RegisterWithPhone(context.Background(), domain.RegisterPhoneRequest{
		Phone: "5551234567", Code: "999999", FirstName: "A", LastName: "B",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidToken))
	as.AssertNotCalled(t, "CreateWithCredentials", mock.Anything, mock.Anything, mock.Anything)
}

func TestRegisterWithPhone_InvalidPhone(t *testing.T) {
	svc := newTestService(&mockAccountStore{}, &mockSessionKiller{}, &mockPhoneCodeSvc{}, &mockEmailVerifySvc{}, &mockIssuer{})
	_, err := svc.RegisterWithPhone(context.Background(), domain.RegisterPhoneRequest{
		Phone: "abc", Code: "123456", FirstName: "A", LastName: "B",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrValidationFailed))
}

// --- LoginWithEmail ---

func TestLoginWithEmail_HappyPath(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)
	a := &domain.Account{AccountID: "a1", Email: strPtr("a@b.com"), PasswordHash: string(hash), Enable: 1}

	as := &mockAccountStore{}
	is := &mockIssuer{}
	as.On("GetByEmail", mock.Anything, "a@b.com").Return(a, nil)
	is.On("Issue", mock.Anything, a).Return(issuedResult(a), nil)

	svc := newTestService(as, &mockSessionKiller{}, &mockPhoneCodeSvc{}, &mockEmailVerifySvc{}, is)
	res, err := svc.LoginWithEmail(context.Background(), "a@b.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "bearer-token", res.Bearer)
}

func TestLoginWithEmail_UniformFailures(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)

	as := &mockAccountStore{}
	as.On("GetByEmail", mock.Anything, "missing@b.com").Return(nil, domain.ErrNotFound)
	as.On("GetByEmail", mock.Anything, "a@b.com").Return(&domain.Account{
		AccountID: "a1", PasswordHash: string(hash), Enable: 1,
	}, nil)
	as.On("GetByEmail", mock.Anything, "disabled@b.com").Return(&domain.Account{
		AccountID: "a2", PasswordHash: string(hash), Enable: 0,
	}, nil)

	svc := newTestService(as, &mockSessionKiller{}, &mockPhoneCodeSvc{}, &mockEmailVerifySvc{}, &mockIssuer{})

	// Unknown email, wrong password, and disabled account all fail the same way.
	for _, tc := range []struct{ email, password string }{
		{"missing@b.com", "secret123"},
		{"a@b.com", "wrongpass"},
		{"disabled@b.com", "secret123"},
	} {
		_, err := svc.LoginWithEmail(context.Background(), tc.email, tc.password)
		require.Error(t, err, "email %s", tc.email)
		assert.True(t, errors.Is(err, domain.ErrUnauthorized), "email %s", tc.email)
	}
}

// --- VerifyPhoneLogin ---

func TestVerifyPhoneLogin_HappyPath_MarksVerified(t *testing.T) {
	a := &domain.Account{AccountID: "a1", Phone: strPtr("5551234567"), Enable: 1}
	as := &mockAccountStore{}
	pc := &mockPhoneCodeSvc{}
	is := &mockIssuer{}

	as.On("GetByPhone", mock.Anything, "5551234567").Return(a, nil)
	pc.On("Verify", mock.Anything, "5551234567", "123456").Return(nil)
	as.On("Update", mock.Anything, "a1", mock.MatchedBy(func(m map[string]interface{}) bool {
		v, ok := m[fieldPhoneVerified].(bool)
		return ok && v
	})).Return(nil)
	is.On("Issue", mock.Anything, mock.Anything).Return(issuedResult(a), nil)

	svc := newTestService(as, &mockSessionKiller{}, pc, &mockEmailVerifySvc{}, is)
	res, err := svc.VerifyPhoneLogin(context.Background(), "555-123-4567", "123456")
	require.NoError(t, err)
	assert.Equal(t, "bearer-token", res.Bearer)
	as.AssertExpectations(t)
}

func TestVerifyPhoneLogin_AlreadyVerified_NoUpdate(t *testing.T) {
	a := &domain.Account{AccountID: "a1", Phone: strPtr("5551234567"), PhoneVerified: true, Enable: 1}
	as := &mockAccountStore{}
	pc := &mockPhoneCodeSvc{}
	is := &mockIssuer{}

	as.On("GetByPhone", mock.Anything, "5551234567").Return(a, nil)
	pc.On("Verify", mock.Anything, "5551234567", "123456").Return(nil)
	is.On("Issue", mock.Anything, a).Return(issuedResult(a), nil)

	svc := newTestService(as, &mockSessionKiller{}, pc, &mockEmailVerifySvc{}, is)
	_, err := svc.VerifyPhoneLogin(context.Background(), "5551234567", "123456")
	require.NoError(t, err)
	as.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestVerifyPhoneLogin_NoAccountForPhone(t *testing.T) {
	as := &mockAccountStore{}
	pc := &mockPhoneCodeSvc{}
	as.On("GetByPhone", mock.Anything, "5551234567").Return(nil, domain.ErrNotFound)

	svc := newTestService(as, &mockSessionKiller{}, pc, &mockEmailVerifySvc{}, &mockIssuer{})
	_, err := svc.VerifyPhoneLogin(context.Background(), "5551234567", "123456")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	pc.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything, mock.Anything)
}

// --- Delete ---

func TestDelete_RevokesSessions(t *testing.T) {
	as := &mockAccountStore{}
	sk := &mockSessionKiller{}
	as.On("SoftDelete", mock.Anything, "a1").Return(nil)
	sk.On("SoftDeleteByAccount", mock.Anything, "a1").Return(nil)

	svc := newTestService(as, sk, &mockPhoneCodeSvc{}, &mockEmailVerifySvc{}, &mockIssuer{})
	require.NoError(t, svc.Delete(context.Background(), "a1"))
	sk.AssertExpectations(t)
}

// --- Update ---

func TestUpdate_InvalidRole(t *testing.T) {
	svc := newTestService(&mockAccountStore{}, &mockSessionKiller{}, &mockPhoneCodeSvc{}, &mockEmailVerifySvc{}, &mockIssuer{})
	_, err := svc.Update(context.Background(), "a1", domain.UpdateAccountRequest{Role: strPtr("superuser")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrValidationFailed))
}

func TestUpdate_NoFields_ReturnsCurrent(t *testing.T) {
	as := &mockAccountStore{}
	as.On("Get", mock.Anything, "a1").Return(&domain.Account{AccountID: "a1"}, nil)

	svc := newTestService(as, &mockSessionKiller{}, &mockPhoneCodeSvc{}, &mockEmailVerifySvc{}, &mockIssuer{})
	a, err := svc.Update(context.Background(), "a1", domain.UpdateAccountRequest{})
	require.NoError(t, err)
	assert.Equal(t, "a1", a.AccountID)
	as.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

// --- concurrent registration uniqueness ---

// fakeUniqueStore reproduces the transactional credential reservation: a
// single locked map where an already-present key fails the whole insert.
type fakeUniqueStore struct {
	mockAccountStore

	mu       sync.Mutex
	creds    map[string]struct{}
	accounts map[string]*domain.Account
}

func newFakeUniqueStore() *fakeUniqueStore {
	f := &fakeUniqueStore{
		creds:    make(map[string]struct{}),
		accounts: make(map[string]*domain.Account),
	}
	f.On("EmailExists", mock.Anything, mock.Anything).Return(false, nil)
	return f
}

func (f *fakeUniqueStore) CreateWithCredentials(_ context.Context, a *domain.Account, credKeys []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range credKeys {
		if _, taken := f.creds[k]; taken {
			return fmt.Errorf("credential %s taken: %w", k, domain.ErrCredentialExists)
		}
	}
	for _, k := range credKeys {
		f.creds[k] = struct{}{}
	}
	cp := *a
	f.accounts[a.AccountID] = &cp
	return nil
}

func TestRegisterWithEmail_ConcurrentDuplicates_ExactlyOneAccount(t *testing.T) {
	fs := newFakeUniqueStore()
	ev := &mockEmailVerifySvc{}
	ev.On("Request", mock.Anything, mock.Anything).Return(nil)
	is := &mockIssuer{}
	is.On("Issue", mock.Anything, mock.Anything).Return(issuedResult(&domain.Account{AccountID: "a1"}), nil)

	svc := newTestService(fs, &mockSessionKiller{}, &mockPhoneCodeSvc{}, ev, is)

	const n = 10
	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RegisterWithEmail(context.Background(), domain.RegisterEmailRequest{
				Email: "a@b.com", Password: "secret123", FirstName: "A", LastName: "B",
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		if err == nil {
			wins++
		} else {
			assert.True(t, errors.Is(err, domain.ErrCredentialExists))
		}
	}
	assert.Equal(t, 1, wins)
	assert.Len(t, fs.accounts, 1)
}
