// Package profile stores who may log in and, for students, which class,
// semester and roll number their attempts are filed under.
package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/classquiz/internal/docstore"
)

var (
	ErrNotFound           = errors.New("profile not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidProfile     = errors.New("invalid profile")
)

type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

const bcryptCost = 12

type Profile struct {
	UID          string `json:"uid" validate:"required"`
	Role         Role   `json:"role" validate:"oneof=student teacher admin"`
	Name         string `json:"name,omitempty"`
	ClassKey     string `json:"classKey,omitempty" validate:"required_if=Role student"`
	SemesterKey  string `json:"semesterKey,omitempty" validate:"required_if=Role student"`
	Roll         string `json:"roll,omitempty" validate:"required_if=Role student"`
	PasswordHash string `json:"passwordHash,omitempty"`
}

var validate = validator.New()

func (p Profile) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}
	return nil
}

func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

type Store struct {
	docs docstore.Store
}

func NewStore(docs docstore.Store) *Store { return &Store{docs: docs} }

func (s *Store) Get(ctx context.Context, uid string) (Profile, error) {
	var p Profile
	err := docstore.GetInto(ctx, s.docs, docstore.Profiles, uid, &p)
	if errors.Is(err, docstore.ErrNotFound) {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, fmt.Errorf("load profile: %w", err)
	}
	return p, nil
}

// Put creates or replaces a profile. An empty PasswordHash keeps the stored
// one.
func (s *Store) Put(ctx context.Context, p Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.PasswordHash == "" {
		if old, err := s.Get(ctx, p.UID); err == nil {
			p.PasswordHash = old.PasswordHash
		}
	}
	return docstore.Put(ctx, s.docs, docstore.Profiles, p.UID, p, false)
}

// Authenticate checks password against the stored bcrypt hash.
func (s *Store) Authenticate(ctx context.Context, uid, password string) (Profile, error) {
	p, err := s.Get(ctx, uid)
	if errors.Is(err, ErrNotFound) {
		return Profile{}, ErrInvalidCredentials
	}
	if err != nil {
		return Profile{}, err
	}
	if p.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(password)) != nil {
		return Profile{}, ErrInvalidCredentials
	}
	return p, nil
}
