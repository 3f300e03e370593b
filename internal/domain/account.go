package domain

import "time"

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// CredentialKind identifies which credential an account was registered with.
type CredentialKind string

const (
	CredentialEmail CredentialKind = "email"
	CredentialPhone CredentialKind = "phone"
)

type Account struct {
	AccountID       string     `json:"id" dynamodbav:"account_id"`
	// email and phone are GSI hash keys; nil must be omitted from the item,
	// a NULL attribute would fail the put with an index-key type mismatch.
	Email           *string    `json:"email,omitempty" dynamodbav:"email,omitempty"`
	Phone           *string    `json:"phone,omitempty" dynamodbav:"phone,omitempty"`
	PasswordHash    string     `json:"-" dynamodbav:"password_hash"`
	Role            string     `json:"role" dynamodbav:"role"`
	FirstName       string     `json:"first_name" dynamodbav:"first_name"`
	LastName        string     `json:"last_name" dynamodbav:"last_name"`
	EmailVerified   bool       `json:"email_verified" dynamodbav:"email_verified"`
	EmailVerifiedAt *time.Time `json:"email_verified_at,omitempty" dynamodbav:"email_verified_at"`
	PhoneVerified   bool       `json:"phone_verified" dynamodbav:"phone_verified"`
	PhoneVerifiedAt *time.Time `json:"phone_verified_at,omitempty" dynamodbav:"phone_verified_at"`
	Enable          int        `json:"enable" dynamodbav:"enable"`
	CreatedAt       time.Time  `json:"created" dynamodbav:"created_at"`
	UpdatedAt       time.Time  `json:"updated" dynamodbav:"updated_at"`
}

type RegisterEmailRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
}

// RegisterPhoneRequest carries the OTC previously delivered to the phone;
// registration consumes it, so the resulting account starts phone-verified.
type RegisterPhoneRequest struct {
	Phone     string  `json:"phone" validate:"required"`
	Code      string  `json:"token" validate:"required"`
	Email     *string `json:"email" validate:"omitempty,email"`
	FirstName string  `json:"first_name" validate:"required"`
	LastName  string  `json:"last_name" validate:"required"`
}

type UpdateAccountRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Role      *string `json:"role"`
	Enable    *int    `json:"enable"` // 1 = enabled, 0 = disabled
}
