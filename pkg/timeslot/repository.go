package timeslot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/slotbook/slotbook/internal/apperr"
)

// Filter narrows by-user slot queries. From/To select slots fully contained
// in the range, not merely overlapping it.
type Filter struct {
	Status *Status
	From   *time.Time
	To     *time.Time
}

type Repository interface {
	WithTransaction(ctx context.Context, fn func(repo Repository) error) error
	CalendarForUser(ctx context.Context, userId int64) (int64, string, error)
	StoreSlot(ctx context.Context, slot TimeSlot) (int64, error)
	FindSlot(ctx context.Context, id int64) (TimeSlot, error)
	FindSlotsByUser(ctx context.Context, userId int64, filter Filter) ([]TimeSlot, error)
	HasOverlapping(ctx context.Context, calendarId int64, start, end time.Time, excludeId int64) (bool, error)
	UpdateSlot(ctx context.Context, slot TimeSlot) error
	DeleteSlot(ctx context.Context, id int64) error
}

type RepositoryImpl struct {
	db *sql.DB
	tx *sql.Tx
}

func NewRepository(db *sql.DB) *RepositoryImpl {
	return &RepositoryImpl{db: db, tx: nil}
}

// getQueryer returns the appropriate database interface for queries (either tx or db)
func (r *RepositoryImpl) getQueryer() interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
} {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

func (r *RepositoryImpl) WithTransaction(ctx context.Context, fn func(repo Repository) error) error {
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

	txRepo := &RepositoryImpl{db: r.db, tx: tx}

	if err := fn(txRepo); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

func (r *RepositoryImpl) CalendarForUser(ctx context.Context, userId int64) (int64, string, error) {
	query := `SELECT c.id, u.email FROM calendars c JOIN users u ON c.user_id = u.id WHERE c.user_id = ?`
	var calendarId int64
	var email string
	err := r.getQueryer().QueryRowContext(ctx, query, userId).Scan(&calendarId, &email)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, "", apperr.NotFound("user with id %d not found", userId)
	} else if err != nil {
		err := fmt.Errorf("could not resolve calendar for user %d: %w", userId, err)
		log.Error(err)
		return 0, "", err
	}
	return calendarId, email, nil
}

func (r *RepositoryImpl) StoreSlot(ctx context.Context, slot TimeSlot) (int64, error) {
	query := `INSERT INTO time_slots (calendar_id, start_time, end_time, status, created_at) VALUES (?, ?, ?, ?, ?)`
	result, err := r.getQueryer().ExecContext(ctx, query,
		slot.CalendarId,
		slot.StartTime.UnixMilli(),
		slot.EndTime.UnixMilli(),
		string(slot.Status),
		slot.CreatedAt.UnixMilli(),
	)
	if err != nil {
		err := fmt.Errorf("could not store time slot: %w", err)
		log.Error(err)
		return 0, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		err := fmt.Errorf("could not retrieve last insert id: %w", err)
		log.Error(err)
		return 0, err
	}
	return id, nil
}

const slotSelect = `SELECT ts.id, ts.calendar_id, c.user_id, u.email, ts.start_time, ts.end_time, ts.status, COALESCE(m.id, 0), ts.created_at
	FROM time_slots ts
	JOIN calendars c ON ts.calendar_id = c.id
	JOIN users u ON c.user_id = u.id
	LEFT JOIN meetings m ON m.time_slot_id = ts.id`

func (r *RepositoryImpl) FindSlot(ctx context.Context, id int64) (TimeSlot, error) {
	query := slotSelect + ` WHERE ts.id = ?`
	var slot TimeSlot
	var startMillis, endMillis, createdAtMillis int64
	err := r.getQueryer().QueryRowContext(ctx, query, id).Scan(
		&slot.Id,
		&slot.CalendarId,
		&slot.UserId,
		&slot.UserEmail,
		&startMillis,
		&endMillis,
		&slot.Status,
		&slot.MeetingId,
		&createdAtMillis,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return TimeSlot{}, apperr.NotFound("time slot with id %d not found", id)
	} else if err != nil {
		err := fmt.Errorf("could not scan time slot: %w", err)
		log.Error(err)
		return TimeSlot{}, err
	}
	slot.StartTime = time.UnixMilli(startMillis).UTC()
	slot.EndTime = time.UnixMilli(endMillis).UTC()
	slot.CreatedAt = time.UnixMilli(createdAtMillis).UTC()
	return slot, nil
}

func (r *RepositoryImpl) FindSlotsByUser(ctx context.Context, userId int64, filter Filter) ([]TimeSlot, error) {
	query := slotSelect + ` WHERE c.user_id = ?`
	args := []any{userId}
	if filter.Status != nil {
		query += ` AND ts.status = ?`
		args = append(args, string(*filter.Status))
	}
	if filter.From != nil && filter.To != nil {
		query += ` AND ts.start_time >= ? AND ts.end_time <= ?`
		args = append(args, filter.From.UnixMilli(), filter.To.UnixMilli())
	}
	query += ` ORDER BY ts.start_time`

	rows, err := r.getQueryer().QueryContext(ctx, query, args...)
	if err != nil {
		err := fmt.Errorf("could not query time slots: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	slots := make([]TimeSlot, 0, 10)
	for rows.Next() {
		var slot TimeSlot
		var startMillis, endMillis, createdAtMillis int64
		if err := rows.Scan(
			&slot.Id,
			&slot.CalendarId,
			&slot.UserId,
			&slot.UserEmail,
			&startMillis,
			&endMillis,
			&slot.Status,
			&slot.MeetingId,
			&createdAtMillis,
		); err != nil {
			err := fmt.Errorf("could not scan time slot: %w", err)
			log.Error(err)
			return nil, err
		}
		slot.StartTime = time.UnixMilli(startMillis).UTC()
		slot.EndTime = time.UnixMilli(endMillis).UTC()
		slot.CreatedAt = time.UnixMilli(createdAtMillis).UTC()
		slots = append(slots, slot)
	}
	if err := rows.Err(); err != nil {
		err := fmt.Errorf("error iterating over rows: %w", err)
		log.Error(err)
		return nil, err
	}
	return slots, nil
}

// HasOverlapping tests half-open interval intersection against every slot on
// the calendar, regardless of status. excludeId skips the slot itself on
// update-path re-checks; 0 excludes nothing.
func (r *RepositoryImpl) HasOverlapping(ctx context.Context, calendarId int64, start, end time.Time, excludeId int64) (bool, error) {
	query := `SELECT EXISTS(
		SELECT 1 FROM time_slots
		WHERE calendar_id = ?
		  AND start_time < ?
		  AND end_time > ?
		  AND id != ?)`
	var exists bool
	err := r.getQueryer().QueryRowContext(ctx, query, calendarId, end.UnixMilli(), start.UnixMilli(), excludeId).Scan(&exists)
	if err != nil {
		err := fmt.Errorf("could not check slot overlap: %w", err)
		log.Error(err)
		return false, err
	}
	return exists, nil
}

func (r *RepositoryImpl) UpdateSlot(ctx context.Context, slot TimeSlot) error {
	query := `UPDATE time_slots SET start_time = ?, end_time = ?, status = ? WHERE id = ?`
	result, err := r.getQueryer().ExecContext(ctx, query,
		slot.StartTime.UnixMilli(),
		slot.EndTime.UnixMilli(),
		string(slot.Status),
		slot.Id,
	)
	if err != nil {
		err := fmt.Errorf("could not update time slot: %w", err)
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
		return apperr.NotFound("time slot with id %d not found", slot.Id)
	}
	return nil
}

func (r *RepositoryImpl) DeleteSlot(ctx context.Context, id int64) error {
	query := `DELETE FROM time_slots WHERE id = ?`
	result, err := r.getQueryer().ExecContext(ctx, query, id)
	if err != nil {
		err := fmt.Errorf("could not delete time slot: %w", err)
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
		return apperr.NotFound("time slot with id %d not found", id)
	}
	return nil
}
