package jwt

type Role int

const (
	RoleAdmin Role = iota
)

type TokenResponse struct {
	AccessToken string `json:"accessToken"`
	ExpiresAt   int64  `json:"expiresAt"`
}
