package services

import (
	"errors"
	"fmt"
	"time"

	"quizchat/models"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// IdentityProvider turns a bearer token into a verified identity.
type IdentityProvider interface {
	Verify(token string) (models.Identity, error)
}

// Claims is the payload of tokens issued by the account service.
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	Blocked  bool   `json:"blocked"`
	jwt.RegisteredClaims
}

// JWTIdentityProvider verifies HS256 tokens signed with a shared secret.
type JWTIdentityProvider struct {
	secret []byte
}

func NewJWTIdentityProvider(secret string) *JWTIdentityProvider {
	return &JWTIdentityProvider{secret: []byte(secret)}
}

func (p *JWTIdentityProvider) Verify(tokenString string) (models.Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return p.secret, nil
	})
	if err != nil {
		return models.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return models.Identity{}, ErrInvalidToken
	}

	role := models.RoleNormal
	if claims.Role == string(models.RoleAdmin) {
		role = models.RoleAdmin
	}
	return models.Identity{
		ID:            claims.UserID,
		DisplayName:   claims.Username,
		Role:          role,
		Blocked:       claims.Blocked,
		Authenticated: true,
	}, nil
}

// Issue signs a token for the given identity. The chat core never issues
// tokens itself; this exists for tooling and tests.
func (p *JWTIdentityProvider) Issue(id models.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:   id.ID,
		Username: id.DisplayName,
		Role:     string(id.Role),
		Blocked:  id.Blocked,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "quizchat",
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
}
