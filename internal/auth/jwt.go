package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"coffee-backend/internal/config"
	"coffee-backend/internal/timeutil"
)

// Claims identify the actor behind a request. Tokens are issued by the
// login service; this service only validates them.
type Claims struct {
	UserID int64  `json:"user_id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

type JWTManager struct {
	secret []byte
	issuer string
}

func NewJWTManager(cfg *config.Config) *JWTManager {
	return &JWTManager{secret: []byte(cfg.JWT.Secret), issuer: cfg.JWT.Issuer}
}

// GenerateToken signs claims for the given actor. Used by tooling and tests.
func (j *JWTManager) GenerateToken(userID int64, name, role string, ttl time.Duration) (string, error) {
	now := timeutil.Now()
	claims := &Claims{
		UserID: userID,
		Name:   name,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    j.issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.secret)
}

// ValidateToken verifies a JWT token and returns the claims
func (j *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	if len(j.secret) == 0 {
		return nil, errors.New("jwt secret not configured")
	}
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// Verify signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return j.secret, nil
	}, jwt.WithIssuer(j.issuer))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Name == "" || claims.Role == "" {
		return nil, errors.New("token is missing actor name or role")
	}
	return claims, nil
}
