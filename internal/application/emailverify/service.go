// Package emailverify is the single-use token engine for proving email
// ownership. Tokens are long-lived relative to phone codes and carry no
// attempt counter — their entropy is the brute-force defence, and the
// store's fetch-and-delete makes them single-use.
package emailverify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/reservation-app/api/internal/domain"
	"github.com/reservation-app/api/internal/infrastructure/notify"
	"github.com/reservation-app/api/internal/pkg/token"
)

// maxCreateRetries bounds token regeneration when a generated value
// collides with a stored one. With 256-bit tokens a collision means a
// broken RNG, not bad luck, so the loop stays small instead of recursing.
const maxCreateRetries = 3

type Service interface {
	// Request issues a fresh verification token for the account and mails
	// a link embedding it. Prior outstanding tokens for the account are
	// invalidated: only the newest link works.
	Request(ctx context.Context, accountID string) error
	// Consume redeems a token: marks the account's email verified and
	// deletes the record so a second redemption can never succeed.
	Consume(ctx context.Context, tokenValue string) error
}

type tokenStore interface {
	Create(ctx context.Context, ev *domain.EmailVerification) error
	Get(ctx context.Context, token string) (*domain.EmailVerification, error)
	Consume(ctx context.Context, token string) (*domain.EmailVerification, error)
	DeleteByAccount(ctx context.Context, accountID string) error
}

type accountStore interface {
	Get(ctx context.Context, accountID string) (*domain.Account, error)
	Update(ctx context.Context, accountID string, updates map[string]interface{}) error
}

type service struct {
	tokens   tokenStore
	accounts accountStore
	notifier notify.Notifier
	ttl      time.Duration
	now      func() time.Time
}

type ServiceDeps struct {
	Tokens   tokenStore
	Accounts accountStore
	Notifier notify.Notifier
	TTL      time.Duration
	Clock    func() time.Time // defaults to time.Now
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		tokens:   deps.Tokens,
		accounts: deps.Accounts,
		notifier: deps.Notifier,
		ttl:      deps.TTL,
		now:      deps.Clock,
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *service) Request(ctx context.Context, accountID string) error {
	account, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return err
	}
	if account.Email == nil {
		return fmt.Errorf("no email on account: %w", domain.ErrValidationFailed)
	}

	// Re-issuance invalidates earlier links, mirroring the phone-code path.
	if err := s.tokens.DeleteByAccount(ctx, accountID); err != nil {
		return err
	}

	now := s.now().UTC()
	var tok string
	for attempt := 0; ; attempt++ {
		tok, err = token.NewVerificationToken()
		if err != nil {
			return err
		}
		err = retryTransient(func() error {
			return s.tokens.Create(ctx, &domain.EmailVerification{
				Token:     tok,
				AccountID: accountID,
				CreatedAt: now.Unix(),
				ExpiresAt: now.Add(s.ttl).Unix(),
			})
		})
		if err == nil {
			break
		}
		if !errors.Is(err, domain.ErrConflict) || attempt+1 >= maxCreateRetries {
			return err
		}
	}

	s.notifier.SendVerificationLink(*account.Email, tok)
	return nil
}

func (s *service) Consume(ctx context.Context, tokenValue string) error {
	if !token.IsWellFormed(tokenValue) {
		return fmt.Errorf("malformed token: %w", domain.ErrInvalidToken)
	}

	ev, err := s.tokens.Get(ctx, tokenValue)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("unknown token: %w", domain.ErrInvalidToken)
		}
		return err
	}
	if ev.ExpiresAt <= s.now().Unix() {
		return fmt.Errorf("token expired: %w", domain.ErrInvalidToken)
	}

	account, err := s.accounts.Get(ctx, ev.AccountID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Account deleted after issuance; the record is orphaned.
			return fmt.Errorf("account gone: %w", domain.ErrInvalidToken)
		}
		return err
	}
	// Idempotency guard, checked before any mutation: a second click on a
	// still-stored link reports AlreadyVerified rather than succeeding twice.
	if account.EmailVerified {
		return fmt.Errorf("email already confirmed: %w", domain.ErrAlreadyVerified)
	}

	// Fetch-and-delete: of two concurrent consumptions exactly one gets
	// the record, the loser sees it gone.
	_, err = s.tokens.Consume(ctx, tokenValue)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("token already consumed: %w", domain.ErrInvalidToken)
		}
		return err
	}

	now := s.now().UTC()
	return s.accounts.Update(ctx, account.AccountID, map[string]interface{}{
		"email_verified":    true,
		"email_verified_at": now,
	})
}

// retryTransient runs op, retrying once immediately when the store reports
// a transient failure.
func retryTransient(op func() error) error {
	err := op()
	if err != nil && errors.Is(err, domain.ErrTransient) {
		err = op()
	}
	return err
}
