package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/ovaphlow/pitchfork/service-budget-go/internal/user/entity"
	userrepo "github.com/ovaphlow/pitchfork/service-budget-go/internal/user/repo"
)

// bcrypt ignores everything past 72 bytes.
const maxPasswordBytes = 72

// PasswordHasher defines minimal hashing interface.
type PasswordHasher interface {
	Hash(pw string) (string, error)
	Verify(hash, pw string) bool
	NeedsRehash(hash string) bool
}

// BcryptHasher implementation.
type BcryptHasher struct{ Cost int }

func (b BcryptHasher) cost() int {
	if b.Cost == 0 {
		return bcrypt.DefaultCost
	}
	return b.Cost
}

func (b BcryptHasher) Hash(pw string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(pw), b.cost())
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func (b BcryptHasher) Verify(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// NeedsRehash reports whether hash was produced with a lower cost than configured.
func (b BcryptHasher) NeedsRehash(hash string) bool {
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return false
	}
	return cost < b.cost()
}

// Repository is the storage the service needs.
type Repository interface {
	CreateIfAbsent(ctx context.Context, u *entity.User) error
	GetByUsername(ctx context.Context, username string) (*entity.User, error)
	GetByID(ctx context.Context, id int64) (*entity.User, error)
	UpdatePassword(ctx context.Context, id int64, hash string) error
}

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrBadCredentials   = errors.New("invalid credentials")
	ErrUsernameTaken    = errors.New("username taken")
	ErrInvalidUsername  = errors.New("invalid username")
	ErrPasswordTooShort = errors.New("password too short")
	ErrPasswordTooLong  = errors.New("password too long")
)

type credentials struct {
	Username string `validate:"required,alphanum,min=3,max=20"`
	Password string `validate:"required,min=8"`
}

// Service handles registration, login and lookup of accounts.
type Service struct {
	repo     Repository
	hasher   PasswordHasher
	validate *validator.Validate
}

func NewService(r Repository, hasher PasswordHasher) *Service {
	if hasher == nil {
		hasher = BcryptHasher{Cost: 11}
	}
	return &Service{repo: r, hasher: hasher, validate: validator.New()}
}

// CheckCredentials applies the username and password policy.
func (s *Service) CheckCredentials(username, password string) error {
	err := s.validate.Struct(credentials{Username: username, Password: password})
	if err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			if fe.Field() == "Username" {
				return ErrInvalidUsername
			}
		}
		return ErrPasswordTooShort
	}
	if len(password) > maxPasswordBytes {
		return ErrPasswordTooLong
	}
	return nil
}

// Register validates the credentials and creates the account.
func (s *Service) Register(ctx context.Context, username, password string) (*entity.User, error) {
	if err := s.CheckCredentials(username, password); err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &entity.User{Username: username, PasswordHash: hash}
	if err := s.repo.CreateIfAbsent(ctx, u); err != nil {
		if errors.Is(err, userrepo.ErrConflict) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// Authenticate checks a username/password pair. A hash made with an outdated
// cost is upgraded after a successful check.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*entity.User, error) {
	u, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if !s.hasher.Verify(u.PasswordHash, password) {
		return nil, ErrBadCredentials
	}
	if s.hasher.NeedsRehash(u.PasswordHash) {
		if hash, hErr := s.hasher.Hash(password); hErr == nil {
			if uErr := s.repo.UpdatePassword(ctx, u.ID, hash); uErr == nil {
				u.PasswordHash = hash
			}
		}
	}
	return u, nil
}

// Get loads a user by id.
func (s *Service) Get(ctx context.Context, id int64) (*entity.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}
