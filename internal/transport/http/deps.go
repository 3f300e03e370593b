package http

import (
	"github.com/reservation-app/api/internal/infrastructure/dynamo"
	jwtinfra "github.com/reservation-app/api/internal/infrastructure/jwt"
	"github.com/reservation-app/api/internal/infrastructure/notify"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	AccountRepo           *dynamo.AccountRepo
	SessionRepo           *dynamo.SessionRepo
	PhoneCodeRepo         *dynamo.PhoneCodeRepo
	EmailVerificationRepo *dynamo.EmailVerificationRepo
	Notifier              notify.Notifier
	JWTProvider           *jwtinfra.Provider
}
