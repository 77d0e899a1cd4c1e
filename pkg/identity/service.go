package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/common/logger"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/common/models"
)

const (
	RoleNurse  = "nurse"
	RoleDoctor = "doctor"
	RoleAdmin  = "admin"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

func ValidRole(role string) bool {
	switch role {
	case RoleNurse, RoleDoctor, RoleAdmin:
		return true
	}
	return false
}

type Service struct {
	repo *Repository
}

func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

type CreateUserParams struct {
	Email    string
	Name     string
	Role     string
	Password string
}

func (s *Service) CreateUser(ctx context.Context, params CreateUserParams) (models.User, error) {
	if params.Email == "" || params.Password == "" {
		return models.User{}, fmt.Errorf("email and password required")
	}
	if !ValidRole(params.Role) {
		return models.User{}, fmt.Errorf("invalid role %q", params.Role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, err
	}

	return s.repo.CreateUser(ctx, CreateUserInput{
		Email:        params.Email,
		Name:         params.Name,
		Role:         params.Role,
		PasswordHash: string(hash),
	})
}

// RegisterUser creates an account on behalf of an administrator.
func (s *Service) RegisterUser(ctx context.Context, actor models.User, params CreateUserParams) (models.User, error) {
	if actor.Role != RoleAdmin {
		return models.User{}, fmt.Errorf("insufficient permissions")
	}
	if params.Role == "" {
		params.Role = RoleNurse
	}
	return s.CreateUser(ctx, params)
}

func (s *Service) Authenticate(ctx context.Context, email, password string) (models.User, error) {
	if password == "" {
		return models.User{}, ErrInvalidCredentials
	}

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return models.User{}, ErrInvalidCredentials
		}
		return models.User{}, err
	}

	hash, err := s.repo.GetPasswordHash(ctx, user.ID)
	if err != nil {
		return models.User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return models.User{}, ErrInvalidCredentials
	}

	return user, nil
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (models.User, error) {
	return s.repo.GetUserByID(ctx, id)
}

// EnsureSeedUsers creates any of the given accounts that do not exist
// yet. Used by the dev bootstrap and the synthetic data generator.
func (s *Service) EnsureSeedUsers(ctx context.Context, seeds []CreateUserParams) error {
	for _, seed := range seeds {
		_, err := s.repo.GetUserByEmail(ctx, seed.Email)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrUserNotFound) {
			return err
		}
		if _, err := s.CreateUser(ctx, seed); err != nil {
			return err
		}
		logger.Log.WithFields(map[string]interface{}{
			"email": seed.Email,
			"role":  seed.Role,
		}).Info("Seed user created")
	}
	return nil
}
