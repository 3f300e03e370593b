// Package phonecode is the one-time-code verification engine for phone
// numbers: issuance, attempt-limited matching, and consumption. All
// coordination happens through the backing store's atomic operations —
// the engine itself keeps no mutable state.
package phonecode

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/reservation-app/api/internal/domain"
	"github.com/reservation-app/api/internal/infrastructure/notify"
	"github.com/reservation-app/api/internal/pkg/code"
	"github.com/reservation-app/api/internal/pkg/phone"
)

type Service interface {
	// Request issues a fresh code for the phone and asks the notifier to
	// text it. Any previous code for the number is atomically replaced.
	Request(ctx context.Context, rawPhone string) error
	// RequestCall issues a fresh code delivered by voice call.
	RequestCall(ctx context.Context, rawPhone string) error
	// Verify matches a submitted code against the live record. On success
	// the record is consumed; it can never verify again.
	Verify(ctx context.Context, rawPhone, submitted string) error
}

type codeStore interface {
	Replace(ctx context.Context, pc *domain.PhoneCode) error
	Get(ctx context.Context, phone string) (*domain.PhoneCode, error)
	IncrementAttempts(ctx context.Context, phone string) (int, error)
	DeleteMatching(ctx context.Context, phone, code string) error
}

type service struct {
	codes       codeStore
	checker     phone.Checker
	notifier    notify.Notifier
	codeLength  int
	maxAttempts int
	ttl         time.Duration
	now         func() time.Time
}

type ServiceDeps struct {
	Codes       codeStore
	Checker     phone.Checker
	Notifier    notify.Notifier
	CodeLength  int
	MaxAttempts int
	TTL         time.Duration
	Clock       func() time.Time // defaults to time.Now
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		codes:       deps.Codes,
		checker:     deps.Checker,
		notifier:    deps.Notifier,
		codeLength:  deps.CodeLength,
		maxAttempts: deps.MaxAttempts,
		ttl:         deps.TTL,
		now:         deps.Clock,
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *service) Request(ctx context.Context, rawPhone string) error {
	canonical, otc, err := s.issue(ctx, rawPhone)
	if err != nil {
		return err
	}
	// Delivery is fire-and-forget: the stored code stays valid even if the
	// SMS never arrives, and a delivery failure is the notifier's to log.
	s.notifier.SendCode(canonical, otc)
	return nil
}

func (s *service) RequestCall(ctx context.Context, rawPhone string) error {
	canonical, otc, err := s.issue(ctx, rawPhone)
	if err != nil {
		return err
	}
	s.notifier.CallWithCode(canonical, otc)
	return nil
}

// issue replaces any live record for the phone with a fresh code. The keyed
// write is the atomic delete-then-create: concurrent issuances resolve to
// last-writer-wins with exactly one live record.
func (s *service) issue(ctx context.Context, rawPhone string) (canonical, otc string, err error) {
	canonical, err = s.canonicalize(ctx, rawPhone)
	if err != nil {
		return "", "", err
	}
	otc, err = code.Numeric(s.codeLength)
	if err != nil {
		return "", "", err
	}
	now := s.now().UTC()
	pc := &domain.PhoneCode{
		Phone:     canonical,
		Code:      otc,
		Attempts:  0,
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(s.ttl).Unix(),
	}
	if err := retryTransient(func() error { return s.codes.Replace(ctx, pc) }); err != nil {
		return "", "", err
	}
	return canonical, otc, nil
}

func (s *service) Verify(ctx context.Context, rawPhone, submitted string) error {
	canonical, err := s.canonicalize(ctx, rawPhone)
	if err != nil {
		return err
	}
	if !code.IsNumeric(submitted, s.codeLength) {
		return fmt.Errorf("code must be %d digits: %w", s.codeLength, domain.ErrValidationFailed)
	}

	pc, err := s.codes.Get(ctx, canonical)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("no code for phone: %w", domain.ErrInvalidToken)
		}
		return err
	}
	if pc.ExpiresAt <= s.now().Unix() {
		// Expired records fail like missing ones; TTL eviction will reap them.
		return fmt.Errorf("code expired: %w", domain.ErrInvalidToken)
	}

	if subtle.ConstantTimeCompare([]byte(pc.Code), []byte(submitted)) != 1 {
		return s.recordFailure(ctx, canonical, pc.Code)
	}

	// The delete is conditional on the code still matching, so of N
	// concurrent correct submissions exactly one consumes the record.
	err = retryTransient(func() error { return s.codes.DeleteMatching(ctx, canonical, submitted) })
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("code already consumed: %w", domain.ErrInvalidToken)
		}
		return err
	}
	return nil
}

// recordFailure counts a wrong guess. The store-side increment is atomic,
// so concurrent wrong guesses are all reflected in attempts; whoever
// observes the bound deletes the record and reports the terminal outcome.
func (s *service) recordFailure(ctx context.Context, canonical, storedCode string) error {
	var attempts int
	err := retryTransient(func() error {
		var ierr error
		attempts, ierr = s.codes.IncrementAttempts(ctx, canonical)
		return ierr
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("no code for phone: %w", domain.ErrInvalidToken)
		}
		return err
	}
	if attempts >= s.maxAttempts {
		// The delete stays conditional on the code we counted against, so a
		// concurrent re-issuance keeps its fresh record.
		if derr := s.codes.DeleteMatching(ctx, canonical, storedCode); derr != nil && !errors.Is(derr, domain.ErrNotFound) {
			return derr
		}
		return fmt.Errorf("wrong code %d times: %w", attempts, domain.ErrAttemptsExceeded)
	}
	return fmt.Errorf("code mismatch: %w", domain.ErrInvalidToken)
}

func (s *service) canonicalize(ctx context.Context, rawPhone string) (string, error) {
	valid, canonical, err := s.checker.Check(ctx, rawPhone)
	if err != nil {
		return "", err
	}
	if !valid {
		return "", fmt.Errorf("invalid phone number: %w", domain.ErrValidationFailed)
	}
	return canonical, nil
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
