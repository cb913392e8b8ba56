package user

import (
	"context"
	"strings"

	"github.com/slotbook/slotbook/internal/apperr"
	"github.com/slotbook/slotbook/internal/utils"
)

type Service interface {
	CreateUser(ctx context.Context, email, firstName, lastName string) (User, error)
	GetUser(ctx context.Context, id int64) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetAllUsers(ctx context.Context) ([]User, error)
	UpdateUser(ctx context.Context, id int64, email, firstName, lastName string) (User, error)
	DeleteUser(ctx context.Context, id int64) error
}

type UserServiceImpl struct {
	repo  Repo
	clock utils.Clock
}

func NewUserService(repo Repo, clock utils.Clock) *UserServiceImpl {
	return &UserServiceImpl{repo: repo, clock: clock}
}

func (s *UserServiceImpl) CreateUser(ctx context.Context, email, firstName, lastName string) (User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return User{}, apperr.Validation("email is required")
	}

	u := User{
		Email:     email,
		FirstName: firstName,
		LastName:  lastName,
		CreatedAt: s.clock.Now().UTC(),
	}
	err := s.repo.WithTransaction(ctx, func(repo Repo) error {
		_, exists, err := repo.FindIdByEmail(ctx, email)
		if err != nil {
			return err
		}
		if exists {
			return apperr.Conflict("user with email %s already exists", email)
		}
		id, err := repo.CreateUser(ctx, u)
		if err != nil {
			return err
		}
		u.Id = id
		return nil
	})
	if err != nil {
		return User{}, err
	}
	return u, nil
}

func (s *UserServiceImpl) GetUser(ctx context.Context, id int64) (User, error) {
	return s.repo.GetUser(ctx, id)
}

func (s *UserServiceImpl) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return s.repo.GetUserByEmail(ctx, email)
}

func (s *UserServiceImpl) GetAllUsers(ctx context.Context) ([]User, error) {
	return s.repo.GetAllUsers(ctx)
}

// UpdateUser overwrites email and names. Renaming a user to their own
// current email is allowed; taking another user's email is a conflict.
func (s *UserServiceImpl) UpdateUser(ctx context.Context, id int64, email, firstName, lastName string) (User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return User{}, apperr.Validation("email is required")
	}

	var updated User
	err := s.repo.WithTransaction(ctx, func(repo Repo) error {
		existing, err := repo.GetUser(ctx, id)
		if err != nil {
			return err
		}
		if email != existing.Email {
			otherId, exists, err := repo.FindIdByEmail(ctx, email)
			if err != nil {
				return err
			}
			if exists && otherId != id {
				return apperr.Conflict("email %s is already in use", email)
			}
		}
		updated = existing
		updated.Email = email
		updated.FirstName = firstName
		updated.LastName = lastName
		return repo.UpdateUser(ctx, updated)
	})
	if err != nil {
		return User{}, err
	}
	return updated, nil
}

func (s *UserServiceImpl) DeleteUser(ctx context.Context, id int64) error {
	return s.repo.WithTransaction(ctx, func(repo Repo) error {
		if _, err := repo.GetUser(ctx, id); err != nil {
			return err
		}
		return repo.DeleteUserCascade(ctx, id)
	})
}
