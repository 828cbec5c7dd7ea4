package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/plotbook-crm/internal/config"
	"github.com/plotbook-crm/internal/domain/staff"
)

// ErrInvalidToken is returned for missing, expired or tampered tokens
var ErrInvalidToken = errors.New("invalid or expired token")

type tokenClaims struct {
	Name string `json:"name"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AuthServiceImpl implements AuthService with HS256 tokens
type AuthServiceImpl struct {
	staffRepo staff.Repository
	secret    []byte
	issuer    string
	expiry    time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(logger *slog.Logger, staffRepo staff.Repository, cfg *config.AuthConfig) AuthService {
	return &AuthServiceImpl{
		staffRepo: staffRepo,
		secret:    []byte(cfg.JWTSecret),
		issuer:    cfg.Issuer,
		expiry:    cfg.TokenExpiry,
		logger:    logger,
		now:       time.Now,
	}
}

// Login verifies credentials and issues a token. Unknown emails and wrong
// passwords both yield ErrInvalidCredentials.
func (s *AuthServiceImpl) Login(ctx context.Context, email, password string) (string, time.Time, *staff.Staff, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	member, err := s.staffRepo.GetByEmail(ctx, email)
	if err != nil {
		var notFound staff.ErrStaffNotFound
		if errors.As(err, &notFound) {
			s.logger.Info("Login attempt for unknown email", "email", email)
			return "", time.Time{}, nil, staff.ErrInvalidCredentials
		}
		return "", time.Time{}, nil, err
	}

	if err := member.Authenticate(password); err != nil {
		s.logger.Info("Login rejected", "staff_id", member.ID.String(), "reason", err.Error())
		return "", time.Time{}, nil, err
	}

	now := s.now()
	expiresAt := now.Add(s.expiry)
	claims := &tokenClaims{
		Name: member.Name,
		Role: string(member.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   member.ID.String(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, nil, fmt.Errorf("failed to sign token: %w", err)
	}

	s.logger.Info("Staff logged in", "staff_id", member.ID.String(), "role", string(member.Role))
	return token, expiresAt, member, nil
}

// ParseToken verifies signature, issuer and expiry
func (s *AuthServiceImpl) ParseToken(tokenString string) (*Claims, error) {
	claims := &tokenClaims{}

	opts := []jwt.ParserOption{jwt.WithTimeFunc(s.now)}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return s.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, ErrInvalidToken
	}
	role := staff.Role(claims.Role)
	if !role.Valid() {
		return nil, ErrInvalidToken
	}

	return &Claims{StaffID: id, Name: claims.Name, Role: role}, nil
}
