package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/slotbook/slotbook/internal/apperr"
)

type Repo interface {
	WithTransaction(ctx context.Context, fn func(repo Repo) error) error
	CreateUser(ctx context.Context, u User) (int64, error)
	GetUser(ctx context.Context, id int64) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetAllUsers(ctx context.Context) ([]User, error)
	FindIdByEmail(ctx context.Context, email string) (int64, bool, error)
	UpdateUser(ctx context.Context, u User) error
	DeleteUserCascade(ctx context.Context, id int64) error
	GetCalendar(ctx context.Context, userId int64) (Calendar, error)
}

type RepoImpl struct {
	db *sql.DB
	tx *sql.Tx
}

func NewUserRepo(db *sql.DB) *RepoImpl {
	return &RepoImpl{db: db, tx: nil}
}

// getQueryer returns the appropriate database interface for queries (either tx or db)
func (r *RepoImpl) getQueryer() interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
} {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

func (r *RepoImpl) WithTransaction(ctx context.Context, fn func(repo Repo) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		// The Rollback will be a no-op if the transaction was already committed
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			log.Errorf("rollback error: %v", rbErr)
		}
	}()

	txRepo := &RepoImpl{db: r.db, tx: tx}

	if err := fn(txRepo); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// CreateUser inserts the user together with its calendar. A persisted user
// always has exactly one calendar, so both rows go in with the same queryer;
// the service wraps the call in WithTransaction.
func (r *RepoImpl) CreateUser(ctx context.Context, u User) (int64, error) {
	query := `INSERT INTO users (email, first_name, last_name, created_at) VALUES (?, ?, ?, ?)`
	result, err := r.getQueryer().ExecContext(ctx, query, u.Email, u.FirstName, u.LastName, u.CreatedAt.UnixMilli())
	if err != nil {
		err := fmt.Errorf("could not create user: %w", err)
		log.Error(err)
		return 0, err
	}
	userId, err := result.LastInsertId()
	if err != nil {
		err := fmt.Errorf("could not retrieve last insert id: %w", err)
		log.Error(err)
		return 0, err
	}

	query = `INSERT INTO calendars (user_id, created_at) VALUES (?, ?)`
	if _, err := r.getQueryer().ExecContext(ctx, query, userId, u.CreatedAt.UnixMilli()); err != nil {
		err := fmt.Errorf("could not create calendar for user %d: %w", userId, err)
		log.Error(err)
		return 0, err
	}

	return userId, nil
}

func (r *RepoImpl) GetUser(ctx context.Context, id int64) (User, error) {
	query := `SELECT id, email, first_name, last_name, created_at FROM users WHERE id = ?`
	return r.scanUser(r.getQueryer().QueryRowContext(ctx, query, id), fmt.Sprintf("user with id %d not found", id))
}

func (r *RepoImpl) GetUserByEmail(ctx context.Context, email string) (User, error) {
	query := `SELECT id, email, first_name, last_name, created_at FROM users WHERE email = ?`
	return r.scanUser(r.getQueryer().QueryRowContext(ctx, query, email), fmt.Sprintf("user with email %s not found", email))
}

func (r *RepoImpl) scanUser(row *sql.Row, notFoundMsg string) (User, error) {
	var u User
	var createdAtMillis int64
	err := row.Scan(&u.Id, &u.Email, &u.FirstName, &u.LastName, &createdAtMillis)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, apperr.NotFound("%s", notFoundMsg)
	} else if err != nil {
		err := fmt.Errorf("could not scan user: %w", err)
		log.Error(err)
		return User{}, err
	}
	u.CreatedAt = time.UnixMilli(createdAtMillis).UTC()
	return u, nil
}

func (r *RepoImpl) GetAllUsers(ctx context.Context) ([]User, error) {
	query := `SELECT id, email, first_name, last_name, created_at FROM users ORDER BY id`
	rows, err := r.getQueryer().QueryContext(ctx, query)
	if err != nil {
		err := fmt.Errorf("could not query users: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	users := make([]User, 0, 10)
	for rows.Next() {
		var u User
		var createdAtMillis int64
		if err := rows.Scan(&u.Id, &u.Email, &u.FirstName, &u.LastName, &createdAtMillis); err != nil {
			err := fmt.Errorf("could not scan user: %w", err)
			log.Error(err)
			return nil, err
		}
		u.CreatedAt = time.UnixMilli(createdAtMillis).UTC()
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		err := fmt.Errorf("error iterating over rows: %w", err)
		log.Error(err)
		return nil, err
	}
	return users, nil
}

func (r *RepoImpl) FindIdByEmail(ctx context.Context, email string) (int64, bool, error) {
	query := `SELECT id FROM users WHERE email = ?`
	var id int64
	err := r.getQueryer().QueryRowContext(ctx, query, email).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	} else if err != nil {
		err := fmt.Errorf("could not look up email: %w", err)
		log.Error(err)
		return 0, false, err
	}
	return id, true, nil
}

func (r *RepoImpl) UpdateUser(ctx context.Context, u User) error {
	query := `UPDATE users SET email = ?, first_name = ?, last_name = ? WHERE id = ?`
	result, err := r.getQueryer().ExecContext(ctx, query, u.Email, u.FirstName, u.LastName, u.Id)
	if err != nil {
		err := fmt.Errorf("could not update user: %w", err)
		log.Error(err)
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		err := fmt.Errorf("could not get rows affected: %w", err)
		log.Error(err)
		return err
	}
	if rowsAffected == 0 {
		return apperr.NotFound("user with id %d not found", u.Id)
	}
	return nil
}

// DeleteUserCascade removes the user and everything hanging off its calendar
// in an explicit, ordered sequence: participant rows of meetings bound to the
// user's slots, those meetings, the user's own participant memberships, the
// slots, the calendar, and finally the user. Must run inside WithTransaction.
func (r *RepoImpl) DeleteUserCascade(ctx context.Context, id int64) error {
	steps := []string{
		`DELETE FROM meeting_participants WHERE meeting_id IN (
			SELECT m.id FROM meetings m
			JOIN time_slots ts ON m.time_slot_id = ts.id
			JOIN calendars c ON ts.calendar_id = c.id
			WHERE c.user_id = ?)`,
		`DELETE FROM meetings WHERE time_slot_id IN (
			SELECT ts.id FROM time_slots ts
			JOIN calendars c ON ts.calendar_id = c.id
			WHERE c.user_id = ?)`,
		`DELETE FROM meeting_participants WHERE user_id = ?`,
		`DELETE FROM time_slots WHERE calendar_id IN (SELECT id FROM calendars WHERE user_id = ?)`,
		`DELETE FROM calendars WHERE user_id = ?`,
		`DELETE FROM users WHERE id = ?`,
	}
	for _, query := range steps {
		if _, err := r.getQueryer().ExecContext(ctx, query, id); err != nil {
			err := fmt.Errorf("could not cascade delete user %d: %w", id, err)
			log.Error(err)
			return err
		}
	}
	return nil
}

func (r *RepoImpl) GetCalendar(ctx context.Context, userId int64) (Calendar, error) {
	query := `SELECT id, user_id, created_at FROM calendars WHERE user_id = ?`
	var c Calendar
	var createdAtMillis int64
	err := r.getQueryer().QueryRowContext(ctx, query, userId).Scan(&c.Id, &c.UserId, &createdAtMillis)
	if errors.Is(err, sql.ErrNoRows) {
		return Calendar{}, apperr.NotFound("calendar for user %d not found", userId)
	} else if err != nil {
		err := fmt.Errorf("could not scan calendar: %w", err)
		log.Error(err)
		return Calendar{}, err
	}
	c.CreatedAt = time.UnixMilli(createdAtMillis).UTC()
	return c, nil
}
