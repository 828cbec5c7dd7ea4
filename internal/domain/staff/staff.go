package staff

import (
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Common errors
var (
	ErrEmptyName          = errors.New("staff name cannot be empty")
	ErrInvalidEmail       = errors.New("staff email is invalid")
	ErrInvalidRole        = errors.New("invalid staff role")
	ErrPasswordTooShort   = errors.New("password must be at least 8 characters")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInactive           = errors.New("staff account is inactive")
)

// MinPasswordLength is the shortest accepted password
const MinPasswordLength = 8

const bcryptCost = bcrypt.DefaultCost

// Staff email syntax is checked here only, for API requests and the
// bootstrap admin alike
var validate = validator.New()

// Role determines what a staff member may do in the CRM
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleManager    Role = "manager"
	RoleAgent      Role = "agent"
	RoleAccountant Role = "accountant"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleAgent, RoleAccountant:
		return true
	}
	return false
}

// Staff represents an office employee or sales agent
type Staff struct {
	ID           uuid.UUID  `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Phone        string     `json:"phone,omitempty"`
	Role         Role       `json:"role"`
	PasswordHash string     `json:"-"`
	IsActive     bool       `json:"is_active"`
	JoiningDate  *time.Time `json:"joining_date,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// NewStaff creates an active staff member with a hashed password
func NewStaff(name, email, phone string, role Role, password string, joiningDate *time.Time) (*Staff, error) {
	s := &Staff{
		ID:          uuid.New(),
		IsActive:    true,
		JoiningDate: joiningDate,
	}
	if err := s.SetProfile(name, email, phone, role); err != nil {
		return nil, err
	}
	if err := s.SetPassword(password); err != nil {
		return nil, err
	}
	s.CreatedAt = s.UpdatedAt
	return s, nil
}

// SetProfile validates and applies the editable profile fields
func (s *Staff) SetProfile(name, email, phone string, role Role) error {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" {
		return ErrEmptyName
	}
	if err := validate.Var(email, "required,email"); err != nil {
		return ErrInvalidEmail
	}
	if !role.Valid() {
		return ErrInvalidRole
	}

	s.Name = name
	s.Email = email
	s.Phone = strings.TrimSpace(phone)
	s.Role = role
	s.UpdatedAt = time.Now()
	return nil
}

// SetPassword replaces the stored password hash
func (s *Staff) SetPassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return err
	}
	s.PasswordHash = string(hash)
	s.UpdatedAt = time.Now()
	return nil
}

// Authenticate checks the password and that the account may log in
func (s *Staff) Authenticate(password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(s.PasswordHash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	if !s.IsActive {
		return ErrInactive
	}
	return nil
}

// HasRole reports whether the staff member holds any of the given roles
func (s *Staff) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if s.Role == r {
			return true
		}
	}
	return false
}
