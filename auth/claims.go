package auth

import "github.com/golang-jwt/jwt/v5"

// Claims is the JWT claims structure for dashboard sessions. It embeds
// jwt.RegisteredClaims for standard fields (exp, iat, etc.) and adds the
// operator identity.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
	Role     string `json:"role"`
}
