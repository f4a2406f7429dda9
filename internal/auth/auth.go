package auth

import (
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Role is resolved once at login and carried with the session instead of
// being re-derived from string comparison at every call site.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleOperator Role = "operator"
)

// Resolver maps a login attempt to a role. The operator identity is a
// single configured address; when a bcrypt hash is configured the operator
// must also present the matching password.
type Resolver struct {
	operatorEmail string
	passwordHash  string
	log           *zap.Logger
}

func NewResolver(operatorEmail, passwordHash string, log *zap.Logger) *Resolver {
	return &Resolver{
		operatorEmail: strings.ToLower(strings.TrimSpace(operatorEmail)),
		passwordHash:  passwordHash,
		log:           log,
	}
}

// Resolve never fails: a wrong operator password demotes the login to a
// plain customer session rather than rejecting it.
func (r *Resolver) Resolve(email, password string) Role {
	norm := strings.ToLower(strings.TrimSpace(email))
	if r.operatorEmail == "" || norm != r.operatorEmail {
		return RoleCustomer
	}

	if r.passwordHash != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(r.passwordHash), []byte(password)); err != nil {
			r.log.Warn("operator login with wrong password, treating as customer",
				zap.String("email", norm))
			return RoleCustomer
		}
	}
	return RoleOperator
}
