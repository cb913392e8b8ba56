package meeting

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/slotbook/slotbook/internal/apperr"
	"github.com/slotbook/slotbook/pkg/timeslot"
)

// BookingSlot is the slice of a time slot the booking checks need: its
// owner, status and range.
type BookingSlot struct {
	Id         int64
	CalendarId int64
	OwnerId    int64
	Status     timeslot.Status
	StartTime  time.Time
	EndTime    time.Time
}

type Repository interface {
	WithTransaction(ctx context.Context, fn func(repo Repository) error) error
	SlotForBooking(ctx context.Context, slotId int64) (BookingSlot, error)
	MeetingIdByTimeSlot(ctx context.Context, slotId int64) (int64, bool, error)
	UserById(ctx context.Context, id int64) (Participant, error)
	StoreMeeting(ctx context.Context, m Meeting) (int64, error)
	SetSlotStatus(ctx context.Context, slotId int64, status timeslot.Status) error
	FindMeeting(ctx context.Context, id int64) (Meeting, error)
	FindByOrganizer(ctx context.Context, userId int64) ([]Meeting, error)
	FindByParticipant(ctx context.Context, userId int64) ([]Meeting, error)
	FindForUser(ctx context.Context, userId int64) ([]Meeting, error)
	FindInRange(ctx context.Context, from, to time.Time, organizerId int64) ([]Meeting, error)
	UpdateMeeting(ctx context.Context, id int64, title, description string) error
	ReplaceParticipants(ctx context.Context, meetingId int64, userIds []int64) error
	AddParticipant(ctx context.Context, meetingId, userId int64) error
	RemoveParticipant(ctx context.Context, meetingId, userId int64) error
	DeleteMeeting(ctx context.Context, id int64) error
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

func (r *RepositoryImpl) SlotForBooking(ctx context.Context, slotId int64) (BookingSlot, error) {
	query := `SELECT ts.id, ts.calendar_id, c.user_id, ts.status, ts.start_time, ts.end_time
		FROM time_slots ts
		JOIN calendars c ON ts.calendar_id = c.id
		WHERE ts.id = ?`
	var slot BookingSlot
	var startMillis, endMillis int64
	err := r.getQueryer().QueryRowContext(ctx, query, slotId).Scan(
		&slot.Id,
		&slot.CalendarId,
		&slot.OwnerId,
		&slot.Status,
		&startMillis,
		&endMillis,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return BookingSlot{}, apperr.NotFound("time slot with id %d not found", slotId)
	} else if err != nil {
		err := fmt.Errorf("could not scan time slot: %w", err)
		log.Error(err)
		return BookingSlot{}, err
	}
	slot.StartTime = time.UnixMilli(startMillis).UTC()
	slot.EndTime = time.UnixMilli(endMillis).UTC()
	return slot, nil
}

func (r *RepositoryImpl) MeetingIdByTimeSlot(ctx context.Context, slotId int64) (int64, bool, error) {
	query := `SELECT id FROM meetings WHERE time_slot_id = ?`
	var id int64
	err := r.getQueryer().QueryRowContext(ctx, query, slotId).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	} else if err != nil {
		err := fmt.Errorf("could not look up meeting by time slot: %w", err)
		log.Error(err)
		return 0, false, err
	}
	return id, true, nil
}

func (r *RepositoryImpl) UserById(ctx context.Context, id int64) (Participant, error) {
	query := `SELECT id, email, first_name, last_name FROM users WHERE id = ?`
	var p Participant
	err := r.getQueryer().QueryRowContext(ctx, query, id).Scan(&p.Id, &p.Email, &p.FirstName, &p.LastName)
	if errors.Is(err, sql.ErrNoRows) {
		return Participant{}, apperr.NotFound("user with id %d not found", id)
	} else if err != nil {
		err := fmt.Errorf("could not scan user: %w", err)
		log.Error(err)
		return Participant{}, err
	}
	return p, nil
}

func (r *RepositoryImpl) StoreMeeting(ctx context.Context, m Meeting) (int64, error) {
	query := `INSERT INTO meetings (title, description, time_slot_id, organizer_id, created_at) VALUES (?, ?, ?, ?, ?)`
	result, err := r.getQueryer().ExecContext(ctx, query,
		m.Title,
		m.Description,
		m.TimeSlotId,
		m.OrganizerId,
		m.CreatedAt.UnixMilli(),
	)
	if err != nil {
		// The UNIQUE constraint on time_slot_id is the final arbiter against
		// two concurrent bookings of the same slot.
		err := fmt.Errorf("could not store meeting: %w", err)
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

func (r *RepositoryImpl) SetSlotStatus(ctx context.Context, slotId int64, status timeslot.Status) error {
	query := `UPDATE time_slots SET status = ? WHERE id = ?`
	if _, err := r.getQueryer().ExecContext(ctx, query, string(status), slotId); err != nil {
		err := fmt.Errorf("could not update slot %d status: %w", slotId, err)
		log.Error(err)
		return err
	}
	return nil
}

const meetingSelect = `SELECT m.id, m.title, m.description, m.time_slot_id, ts.start_time, ts.end_time, m.organizer_id, u.email, m.created_at
	FROM meetings m
	JOIN time_slots ts ON m.time_slot_id = ts.id
	JOIN users u ON m.organizer_id = u.id`

func (r *RepositoryImpl) FindMeeting(ctx context.Context, id int64) (Meeting, error) {
	query := meetingSelect + ` WHERE m.id = ?`
	var m Meeting
	var startMillis, endMillis, createdAtMillis int64
	err := r.getQueryer().QueryRowContext(ctx, query, id).Scan(
		&m.Id,
		&m.Title,
		&m.Description,
		&m.TimeSlotId,
		&startMillis,
		&endMillis,
		&m.OrganizerId,
		&m.OrganizerEmail,
		&createdAtMillis,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Meeting{}, apperr.NotFound("meeting with id %d not found", id)
	} else if err != nil {
		err := fmt.Errorf("could not scan meeting: %w", err)
		log.Error(err)
		return Meeting{}, err
	}
	m.StartTime = time.UnixMilli(startMillis).UTC()
	m.EndTime = time.UnixMilli(endMillis).UTC()
	m.CreatedAt = time.UnixMilli(createdAtMillis).UTC()

	participants, err := r.loadParticipants(ctx, m.Id)
	if err != nil {
		return Meeting{}, err
	}
	m.Participants = participants
	return m, nil
}

func (r *RepositoryImpl) FindByOrganizer(ctx context.Context, userId int64) ([]Meeting, error) {
	query := meetingSelect + ` WHERE m.organizer_id = ? ORDER BY ts.start_time`
	return r.queryMeetings(ctx, query, userId)
}

func (r *RepositoryImpl) FindByParticipant(ctx context.Context, userId int64) ([]Meeting, error) {
	query := meetingSelect + ` JOIN meeting_participants mp ON mp.meeting_id = m.id
		WHERE mp.user_id = ? ORDER BY ts.start_time`
	return r.queryMeetings(ctx, query, userId)
}

// FindForUser returns meetings the user organizes or attends. The organizer
// is structurally never also a participant, so the union cannot duplicate.
func (r *RepositoryImpl) FindForUser(ctx context.Context, userId int64) ([]Meeting, error) {
	query := meetingSelect + ` WHERE m.organizer_id = ?
		OR m.id IN (SELECT meeting_id FROM meeting_participants WHERE user_id = ?)
		ORDER BY ts.start_time`
	return r.queryMeetings(ctx, query, userId, userId)
}

// FindInRange returns meetings whose slot is fully contained in [from, to].
// organizerId 0 means any organizer.
func (r *RepositoryImpl) FindInRange(ctx context.Context, from, to time.Time, organizerId int64) ([]Meeting, error) {
	query := meetingSelect + ` WHERE ts.start_time >= ? AND ts.end_time <= ?`
	args := []any{from.UnixMilli(), to.UnixMilli()}
	if organizerId != 0 {
		query += ` AND m.organizer_id = ?`
		args = append(args, organizerId)
	}
	query += ` ORDER BY ts.start_time`
	return r.queryMeetings(ctx, query, args...)
}

func (r *RepositoryImpl) queryMeetings(ctx context.Context, query string, args ...any) ([]Meeting, error) {
	rows, err := r.getQueryer().QueryContext(ctx, query, args...)
	if err != nil {
		err := fmt.Errorf("could not query meetings: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	meetings := make([]Meeting, 0, 10)
	for rows.Next() {
		var m Meeting
		var startMillis, endMillis, createdAtMillis int64
		if err := rows.Scan(
			&m.Id,
			&m.Title,
			&m.Description,
			&m.TimeSlotId,
			&startMillis,
			&endMillis,
			&m.OrganizerId,
			&m.OrganizerEmail,
			&createdAtMillis,
		); err != nil {
			err := fmt.Errorf("could not scan meeting: %w", err)
			log.Error(err)
			return nil, err
		}
		m.StartTime = time.UnixMilli(startMillis).UTC()
		m.EndTime = time.UnixMilli(endMillis).UTC()
		m.CreatedAt = time.UnixMilli(createdAtMillis).UTC()
		meetings = append(meetings, m)
	}
	if err := rows.Err(); err != nil {
		err := fmt.Errorf("error iterating over rows: %w", err)
		log.Error(err)
		return nil, err
	}

	for i := range meetings {
		participants, err := r.loadParticipants(ctx, meetings[i].Id)
		if err != nil {
			return nil, err
		}
		meetings[i].Participants = participants
	}
	return meetings, nil
}

func (r *RepositoryImpl) loadParticipants(ctx context.Context, meetingId int64) ([]Participant, error) {
	query := `SELECT u.id, u.email, u.first_name, u.last_name
		FROM meeting_participants mp
		JOIN users u ON mp.user_id = u.id
		WHERE mp.meeting_id = ?
		ORDER BY u.id`
	rows, err := r.getQueryer().QueryContext(ctx, query, meetingId)
	if err != nil {
		err := fmt.Errorf("could not query participants: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	participants := make([]Participant, 0, 4)
	for rows.Next() {
		var p Participant
		if err := rows.Scan(&p.Id, &p.Email, &p.FirstName, &p.LastName); err != nil {
			err := fmt.Errorf("could not scan participant: %w", err)
			log.Error(err)
			return nil, err
		}
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		err := fmt.Errorf("error iterating over rows: %w", err)
		log.Error(err)
		return nil, err
	}
	return participants, nil
}

func (r *RepositoryImpl) UpdateMeeting(ctx context.Context, id int64, title, description string) error {
	query := `UPDATE meetings SET title = ?, description = ? WHERE id = ?`
	result, err := r.getQueryer().ExecContext(ctx, query, title, description, id)
	if err != nil {
		err := fmt.Errorf("could not update meeting: %w", err)
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
		return apperr.NotFound("meeting with id %d not found", id)
	}
	return nil
}

func (r *RepositoryImpl) ReplaceParticipants(ctx context.Context, meetingId int64, userIds []int64) error {
	query := `DELETE FROM meeting_participants WHERE meeting_id = ?`
	if _, err := r.getQueryer().ExecContext(ctx, query, meetingId); err != nil {
		err := fmt.Errorf("could not clear participants: %w", err)
		log.Error(err)
		return err
	}
	for _, userId := range userIds {
		if err := r.AddParticipant(ctx, meetingId, userId); err != nil {
			return err
		}
	}
	return nil
}

func (r *RepositoryImpl) AddParticipant(ctx context.Context, meetingId, userId int64) error {
	// INSERT OR IGNORE makes repeated adds a no-op.
	query := `INSERT OR IGNORE INTO meeting_participants (meeting_id, user_id) VALUES (?, ?)`
	if _, err := r.getQueryer().ExecContext(ctx, query, meetingId, userId); err != nil {
		err := fmt.Errorf("could not add participant: %w", err)
		log.Error(err)
		return err
	}
	return nil
}

func (r *RepositoryImpl) RemoveParticipant(ctx context.Context, meetingId, userId int64) error {
	query := `DELETE FROM meeting_participants WHERE meeting_id = ? AND user_id = ?`
	if _, err := r.getQueryer().ExecContext(ctx, query, meetingId, userId); err != nil {
		err := fmt.Errorf("could not remove participant: %w", err)
		log.Error(err)
		return err
	}
	return nil
}

func (r *RepositoryImpl) DeleteMeeting(ctx context.Context, id int64) error {
	query := `DELETE FROM meeting_participants WHERE meeting_id = ?`
	if _, err := r.getQueryer().ExecContext(ctx, query, id); err != nil {
		err := fmt.Errorf("could not delete participants: %w", err)
		log.Error(err)
		return err
	}
	query = `DELETE FROM meetings WHERE id = ?`
	result, err := r.getQueryer().ExecContext(ctx, query, id)
	if err != nil {
		err := fmt.Errorf("could not delete meeting: %w", err)
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
		return apperr.NotFound("meeting with id %d not found", id)
	}
	return nil
}
