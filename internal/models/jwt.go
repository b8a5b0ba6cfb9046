package models

// JWTClaims holds the token claims the auth middleware reads after
// signature verification.
type JWTClaims struct {
	Sub   string `json:"sub"` // provider-side user id
	Email string `json:"email"`
	Name  string `json:"name"`
	Exp   int64  `json:"exp"`
	Iat   int64  `json:"iat"`
	Iss   string `json:"iss"`
	Aud   string `json:"aud"`
}
