package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims are the access token claims. Subusers carry their owner's id in
// ParentID and act on the owner's clinic.
type Claims struct {
	jwt.RegisteredClaims
	ParentID string `json:"parent_id,omitempty"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role,omitempty"`
}

// ClinicID returns the clinic the token acts for.
func (c *Claims) ClinicID() (uuid.UUID, error) {
	id := c.Subject
	if c.ParentID != "" {
		id = c.ParentID
	}
	clinicID, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: subject is not a clinic id", ErrInvalidToken)
	}
	return clinicID, nil
}

type JWTService interface {
	GenerateAccessToken(subject uuid.UUID, parentID *uuid.UUID, ttl time.Duration) (string, error)
	ValidateToken(token string) (*Claims, error)
}

type hmacService struct {
	secret []byte
	issuer string
}

// NewJWTService signs and verifies HS256 tokens with a shared secret.
func NewJWTService(secret, issuer string) JWTService {
	return &hmacService{secret: []byte(secret), issuer: issuer}
}

func (s *hmacService) GenerateAccessToken(subject uuid.UUID, parentID *uuid.UUID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject.String(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if parentID != nil {
		claims.ParentID = parentID.String()
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (s *hmacService) ValidateToken(tokenStr string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}
