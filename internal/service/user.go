package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"matatu/internal/domain"
	"matatu/internal/repository"
)

const minPasswordLength = 6

// TokenIssuer signs access tokens. *auth.TokenManager satisfies it.
type TokenIssuer interface {
	Issue(user *domain.User) (string, error)
}

// UserService is the single path for creating users and logging them in.
type UserService struct {
	userRepo   repository.UserRepository
	tokens     TokenIssuer
	log        logrus.FieldLogger
	bcryptCost int
}

// NewUserService creates a new UserService.
func NewUserService(userRepo repository.UserRepository, tokens TokenIssuer, log logrus.FieldLogger) *UserService {
	return &UserService{
		userRepo:   userRepo,
		tokens:     tokens,
		log:        log,
		bcryptCost: bcrypt.DefaultCost,
	}
}

// RegisterRequest contains the parameters for creating a user.
type RegisterRequest struct {
	Name        string
	PhoneNumber string
	Password    string
	Role        string
}

// Register creates a user on behalf of the principal. Sacco and admin
// users may create any role; owners may create conductors and drivers.
// With no principal, only the very first user may register, as sacco.
func (s *UserService) Register(ctx context.Context, p domain.Principal, req RegisterRequest) (*domain.User, error) {
	role, ok := domain.ParseRole(req.Role)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, req.Role)
	}

	if err := s.authorizeRegistration(ctx, p, role); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if len(req.Password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLength)
	}

	phone, err := NormalizePhone(req.PhoneNumber)
	if err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		ID:           uuid.New().String(),
		Name:         name,
		PhoneNumber:  phone,
		Role:         role,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrPhoneTaken
		}
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"user_id":    user.ID,
		"role":       user.Role,
		"created_by": p.UserID,
	}).Info("user registered")

	return user, nil
}

func (s *UserService) authorizeRegistration(ctx context.Context, p domain.Principal, role domain.Role) error {
	if p.UserID == "" {
		n, err := s.userRepo.Count(ctx)
		if err != nil {
			return err
		}
		if n == 0 && role == domain.RoleSacco {
			return nil
		}
		return ErrUnauthenticated
	}

	switch {
	case p.Role.IsAdmin():
		return nil
	case p.Role == domain.RoleOwner && (role == domain.RoleConductor || role == domain.RoleDriver):
		return nil
	default:
		return ErrForbidden
	}
}

// LoginResult is returned by a successful Login.
type LoginResult struct {
	Token string
	User  *domain.User
}

// Login checks a phone and password and issues an access token. Every
// failure is reported as ErrUnauthenticated.
func (s *UserService) Login(ctx context.Context, rawPhone, password string) (*LoginResult, error) {
	phone, err := NormalizePhone(rawPhone)
	if err != nil {
		return nil, ErrUnauthenticated
	}

	user, err := s.userRepo.GetByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.log.WithField("user_id", user.ID).Warn("login rejected")
		return nil, ErrUnauthenticated
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}

	return &LoginResult{Token: token, User: user}, nil
}
