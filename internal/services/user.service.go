package services

import (
	"context"
	"errors"

	"github.com/nimasrn/btc-invoice-gateway/internal/model"
	"github.com/nimasrn/btc-invoice-gateway/internal/repository"
	"github.com/nimasrn/btc-invoice-gateway/pkg/logger"
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) (*model.User, error)
	GetByID(ctx context.Context, id int64) (*model.User, error)
}

type UserService struct {
	users UserRepository
}

func NewUserService(users UserRepository) *UserService {
	return &UserService{users: users}
}

// Register stores a user. Credentials are handled by the auth layer in front of the API.
func (s *UserService) Register(ctx context.Context, p model.UserCreateRequest) (*model.User, error) {
	if err := p.Validate(); err != nil {
		return nil, invalid(err)
	}

	user, err := s.users.Create(ctx, &model.User{Email: p.Email, Name: p.Name})
	if errors.Is(err, repository.ErrDuplicateEmail) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, err
	}
	logger.Info("user registered", "user_id", user.ID)
	return user, nil
}

func (s *UserService) Get(ctx context.Context, id int64) (*model.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrNotFound
	}
	return user, err
}
