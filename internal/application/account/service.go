// Package account binds credentials to accounts. Registration is the
// uniqueness-critical path: the existence probes here are UX optimizations,
// and the store's transactional insert is the actual guarantee that no two
// accounts ever share an email or phone.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/reservation-app/api/internal/application/emailverify"
	"github.com/reservation-app/api/internal/application/phonecode"
	"github.com/reservation-app/api/internal/application/session"
	"github.com/reservation-app/api/internal/domain"
	"github.com/reservation-app/api/internal/pkg/id"
	"github.com/reservation-app/api/internal/pkg/phone"
	"golang.org/x/crypto/bcrypt"
)

// Account attribute names used in partial update maps.
const (
	fieldFirstName       = "first_name"
	fieldLastName        = "last_name"
	fieldRole            = "role"
	fieldEnable          = "enable"
	fieldPhoneVerified   = "phone_verified"
	fieldPhoneVerifiedAt = "phone_verified_at"
)

type Service interface {
	RegisterWithEmail(ctx context.Context, req domain.RegisterEmailRequest) (*session.Result, error)
	RegisterWithPhone(ctx context.Context, req domain.RegisterPhoneRequest) (*session.Result, error)
	LoginWithEmail(ctx context.Context, email, password string) (*session.Result, error)
	// VerifyPhoneLogin consumes an OTC for an existing account's phone and
	// mints a session — the passwordless phone login path.
	VerifyPhoneLogin(ctx context.Context, rawPhone, code string) (*session.Result, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	PhoneExists(ctx context.Context, rawPhone string) (bool, error)
	Get(ctx context.Context, accountID string) (*domain.Account, error)
	List(ctx context.Context, limit int, cursor string) ([]domain.Account, string, error)
	Update(ctx context.Context, accountID string, req domain.UpdateAccountRequest) (*domain.Account, error)
	Delete(ctx context.Context, accountID string) error
}

type accountStore interface {
	CreateWithCredentials(ctx context.Context, a *domain.Account, credKeys []string) error
	Get(ctx context.Context, accountID string) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	GetByPhone(ctx context.Context, phone string) (*domain.Account, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	PhoneExists(ctx context.Context, phone string) (bool, error)
	Update(ctx context.Context, accountID string, updates map[string]interface{}) error
	SoftDelete(ctx context.Context, accountID string) error
	QueryPage(ctx context.Context, limit int32, cursor string) ([]domain.Account, string, error)
}

type sessionKiller interface {
	SoftDeleteByAccount(ctx context.Context, accountID string) error
}

type service struct {
	accounts        accountStore
	sessions        sessionKiller
	phoneCodes      phonecode.Service
	emailTokens     emailverify.Service
	issuer          session.Service
	checker         phone.Checker
	sendEmailVerify bool
	now             func() time.Time
}

type ServiceDeps struct {
	AccountRepo     accountStore
	SessionRepo     sessionKiller
	PhoneCodes      phonecode.Service
	EmailTokens     emailverify.Service
	Issuer          session.Service
	Checker         phone.Checker
	SendEmailVerify bool
	Clock           func() time.Time // defaults to time.Now
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		accounts:        deps.AccountRepo,
		sessions:        deps.SessionRepo,
		phoneCodes:      deps.PhoneCodes,
		emailTokens:     deps.EmailTokens,
		issuer:          deps.Issuer,
		checker:         deps.Checker,
		sendEmailVerify: deps.SendEmailVerify,
		now:             deps.Clock,
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *service) RegisterWithEmail(ctx context.Context, req domain.RegisterEmailRequest) (*session.Result, error) {
	// Pre-check for a friendly fast failure; the transactional insert
	// below still decides races.
	if exists, err := s.accounts.EmailExists(ctx, req.Email); err == nil && exists {
		return nil, fmt.Errorf("email taken: %w", domain.ErrCredentialExists)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	a := &domain.Account{
		AccountID:    id.New(),
		Email:        &req.Email,
		PasswordHash: string(hash),
		Role:         domain.RoleUser,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Enable:       1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	credKeys := []string{CredentialKeyEmail(req.Email)}
	if err := s.accounts.CreateWithCredentials(ctx, a, credKeys); err != nil {
		return nil, err
	}

	s.issueEmailVerification(ctx, a.AccountID)
	return s.issuer.Issue(ctx, a)
}

func (s *service) RegisterWithPhone(ctx context.Context, req domain.RegisterPhoneRequest) (*session.Result, error) {
	valid, canonical, err := s.checker.Check(ctx, req.Phone)
	if err != nil {
		return nil, err
	}
	if !valid {
		return nil, fmt.Errorf("invalid phone number: %w", domain.ErrValidationFailed)
	}

	// The submitted OTC proves control of the number and is consumed here;
	// the account is born phone-verified.
	if err := s.phoneCodes.Verify(ctx, canonical, req.Code); err != nil {
		return nil, err
	}

	if exists, err := s.accounts.PhoneExists(ctx, canonical); err == nil && exists {
		return nil, fmt.Errorf("phone taken: %w", domain.ErrCredentialExists)
	}

	now := s.now().UTC()
	a := &domain.Account{
		AccountID:       id.New(),
		Phone:           &canonical,
		Email:           req.Email,
		Role:            domain.RoleUser,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		PhoneVerified:   true,
		PhoneVerifiedAt: &now,
		Enable:          1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	credKeys := []string{CredentialKeyPhone(canonical)}
	if req.Email != nil {
		credKeys = append(credKeys, CredentialKeyEmail(*req.Email))
	}
	if err := s.accounts.CreateWithCredentials(ctx, a, credKeys); err != nil {
		return nil, err
	}

	if req.Email != nil {
		s.issueEmailVerification(ctx, a.AccountID)
	}
	return s.issuer.Issue(ctx, a)
}

func (s *service) LoginWithEmail(ctx context.Context, email, password string) (*session.Result, error) {
	a, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		// Same failure for unknown email and wrong password: the login
		// surface never reveals whether an address is registered.
		return nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
	}
	if a.Enable != 1 {
		return nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)); err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
	}
	return s.issuer.Issue(ctx, a)
}

func (s *service) VerifyPhoneLogin(ctx context.Context, rawPhone, otc string) (*session.Result, error) {
	valid, canonical, err := s.checker.Check(ctx, rawPhone)
	if err != nil {
		return nil, err
	}
	if !valid {
		return nil, fmt.Errorf("invalid phone number: %w", domain.ErrValidationFailed)
	}
	a, err := s.accounts.GetByPhone(ctx, canonical)
	if err != nil {
		return nil, err
	}
	if err := s.phoneCodes.Verify(ctx, canonical, otc); err != nil {
		return nil, err
	}
	if !a.PhoneVerified {
		now := s.now().UTC()
		if err := s.accounts.Update(ctx, a.AccountID, map[string]interface{}{
			fieldPhoneVerified:   true,
			fieldPhoneVerifiedAt: now,
		}); err != nil {
			return nil, err
		}
		a.PhoneVerified = true
		a.PhoneVerifiedAt = &now
	}
	return s.issuer.Issue(ctx, a)
}

func (s *service) EmailExists(ctx context.Context, email string) (bool, error) {
	return s.accounts.EmailExists(ctx, email)
}

func (s *service) PhoneExists(ctx context.Context, rawPhone string) (bool, error) {
	return s.accounts.PhoneExists(ctx, phone.Normalize(rawPhone))
}

func (s *service) Get(ctx context.Context, accountID string) (*domain.Account, error) {
	return s.accounts.Get(ctx, accountID)
}

func (s *service) List(ctx context.Context, limit int, cursor string) ([]domain.Account, string, error) {
	if limit < 1 {
		limit = 50
	}
	return s.accounts.QueryPage(ctx, int32(limit), cursor)
}

func (s *service) Update(ctx context.Context, accountID string, req domain.UpdateAccountRequest) (*domain.Account, error) {
	updates := map[string]interface{}{}
	if req.FirstName != nil {
		updates[fieldFirstName] = *req.FirstName
	}
	if req.LastName != nil {
		updates[fieldLastName] = *req.LastName
	}
	if req.Role != nil {
		switch *req.Role {
		case domain.RoleAdmin, domain.RoleUser:
			updates[fieldRole] = *req.Role
		default:
			return nil, fmt.Errorf("invalid role: %w", domain.ErrValidationFailed)
		}
	}
	if req.Enable != nil {
		updates[fieldEnable] = *req.Enable
	}
	if len(updates) == 0 {
		return s.accounts.Get(ctx, accountID)
	}
	if err := s.accounts.Update(ctx, accountID, updates); err != nil {
		return nil, err
	}
	return s.accounts.Get(ctx, accountID)
}

func (s *service) Delete(ctx context.Context, accountID string) error {
	if err := s.accounts.SoftDelete(ctx, accountID); err != nil {
		return err
	}
	return s.sessions.SoftDeleteByAccount(ctx, accountID)
}

// issueEmailVerification kicks off the email ownership flow for a freshly
// created account. The account is already committed, so a token failure is
// logged and the registration still succeeds — the user can re-request.
func (s *service) issueEmailVerification(ctx context.Context, accountID string) {
	if !s.sendEmailVerify {
		return
	}
	if err := s.emailTokens.Request(ctx, accountID); err != nil && !errors.Is(err, domain.ErrValidationFailed) {
		slog.Warn("could not issue email verification", "account_id", accountID, "err", err)
	}
}

// CredentialKeyEmail and CredentialKeyPhone build the reservation keys the
// store uses to enforce cross-account uniqueness.
func CredentialKeyEmail(email string) string {
	return string(domain.CredentialEmail) + "#" + email
}

func CredentialKeyPhone(p string) string {
	return string(domain.CredentialPhone) + "#" + p
}
