package domain

// PhoneCode is an outstanding one-time code for a phone number.
// PK: phone — at most one live record per phone; issuing a new code
// replaces the previous record in a single keyed write.
// ExpiresAt is a Unix timestamp used as DynamoDB TTL.
type PhoneCode struct {
	Phone     string `json:"phone" dynamodbav:"phone"`
	Code      string `json:"-" dynamodbav:"code"`
	Attempts  int    `json:"attempts" dynamodbav:"attempts"`
	CreatedAt int64  `json:"created_at" dynamodbav:"created_at"`
	ExpiresAt int64  `json:"expires_at" dynamodbav:"expires_at"` // TTL (Unix seconds)
}

// EmailVerification is an outstanding single-use email ownership token.
// PK: token — the token is globally unique and unguessable, so the record
// key doubles as the capability to consume it.
type EmailVerification struct {
	Token     string `json:"-" dynamodbav:"token"`
	AccountID string `json:"account_id" dynamodbav:"account_id"`
	CreatedAt int64  `json:"created_at" dynamodbav:"created_at"`
	ExpiresAt int64  `json:"expires_at" dynamodbav:"expires_at"` // TTL (Unix seconds)
}
