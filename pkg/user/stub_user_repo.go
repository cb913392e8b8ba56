package user

import (
	"context"

	"github.com/slotbook/slotbook/internal/apperr"
)

// stubUserRepo is an in-memory Repo implementation for service tests.
type stubUserRepo struct {
	users          map[int64]User
	calendars      map[int64]Calendar
	nextId         int64
	cascadeDeletes []int64
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{
		users:     make(map[int64]User),
		calendars: make(map[int64]Calendar),
		nextId:    1,
	}
}

func (s *stubUserRepo) WithTransaction(ctx context.Context, fn func(repo Repo) error) error {
	return fn(s)
}

func (s *stubUserRepo) CreateUser(ctx context.Context, u User) (int64, error) {
	id := s.nextId
	s.nextId++
	u.Id = id
	s.users[id] = u
	s.calendars[id] = Calendar{Id: id, UserId: id, CreatedAt: u.CreatedAt}
	return id, nil
}

func (s *stubUserRepo) GetUser(ctx context.Context, id int64) (User, error) {
	u, ok := s.users[id]
	if !ok {
		return User{}, apperr.NotFound("user with id %d not found", id)
	}
	return u, nil
}

func (s *stubUserRepo) GetUserByEmail(ctx context.Context, email string) (User, error) {
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return User{}, apperr.NotFound("user with email %s not found", email)
}

func (s *stubUserRepo) GetAllUsers(ctx context.Context) ([]User, error) {
	users := make([]User, 0, len(s.users))
	for id := int64(1); id < s.nextId; id++ {
		if u, ok := s.users[id]; ok {
			users = append(users, u)
		}
	}
	return users, nil
}

func (s *stubUserRepo) FindIdByEmail(ctx context.Context, email string) (int64, bool, error) {
	for _, u := range s.users {
		if u.Email == email {
			return u.Id, true, nil
		}
	}
	return 0, false, nil
}

func (s *stubUserRepo) UpdateUser(ctx context.Context, u User) error {
	if _, ok := s.users[u.Id]; !ok {
		return apperr.NotFound("user with id %d not found", u.Id)
	}
	s.users[u.Id] = u
	return nil
}

func (s *stubUserRepo) DeleteUserCascade(ctx context.Context, id int64) error {
	delete(s.users, id)
	delete(s.calendars, id)
	s.cascadeDeletes = append(s.cascadeDeletes, id)
	return nil
}

func (s *stubUserRepo) GetCalendar(ctx context.Context, userId int64) (Calendar, error) {
	c, ok := s.calendars[userId]
	if !ok {
		return Calendar{}, apperr.NotFound("calendar for user %d not found", userId)
	}
	return c, nil
}
