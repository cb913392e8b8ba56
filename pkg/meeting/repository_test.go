package meeting

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/slotbook/slotbook/internal/apperr"
	"github.com/slotbook/slotbook/internal/test_utils"
	"github.com/slotbook/slotbook/pkg/timeslot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	ctx   context.Context
	repo  *RepositoryImpl
	db    *sql.DB
	alice int64
	bob   int64
	slot  int64
}

func setupFixture(t *testing.T) fixture {
	t.Helper()
	db := test_utils.SetupTestDB(t)
	ctx := context.Background()

	alice := seedUser(t, db, "alice@example.com")
	bob := seedUser(t, db, "bob@example.com")
	slot := seedSlot(t, db, alice, time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC))

	return fixture{ctx: ctx, repo: NewRepository(db), db: db, alice: alice, bob: bob, slot: slot}
}

func seedUser(t *testing.T, db *sql.DB, email string) int64 {
	t.Helper()
	now := time.Now().UnixMilli()
	result, err := db.Exec(`INSERT INTO users (email, created_at) VALUES (?, ?)`, email, now)
	require.NoError(t, err)
	userId, err := result.LastInsertId()
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO calendars (user_id, created_at) VALUES (?, ?)`, userId, now)
	require.NoError(t, err)
	return userId
}

func seedSlot(t *testing.T, db *sql.DB, userId int64, start, end time.Time) int64 {
	t.Helper()
	var calendarId int64
	require.NoError(t, db.QueryRow(`SELECT id FROM calendars WHERE user_id = ?`, userId).Scan(&calendarId))
	result, err := db.Exec(`INSERT INTO time_slots (calendar_id, start_time, end_time, status, created_at) VALUES (?, ?, ?, 'AVAILABLE', ?)`,
		calendarId, start.UnixMilli(), end.UnixMilli(), time.Now().UnixMilli())
	require.NoError(t, err)
	slotId, err := result.LastInsertId()
	require.NoError(t, err)
	return slotId
}

func bookMeeting(t *testing.T, f fixture, title string, slotId, organizerId int64, participantIds ...int64) Meeting {
	t.Helper()
	var created Meeting
	err := f.repo.WithTransaction(f.ctx, func(repo Repository) error {
		slot, err := repo.SlotForBooking(f.ctx, slotId)
		if err != nil {
			return err
		}
		created = Meeting{
			Title:       title,
			TimeSlotId:  slot.Id,
			OrganizerId: organizerId,
			CreatedAt:   time.Now().UTC(),
		}
		id, err := repo.StoreMeeting(f.ctx, created)
		if err != nil {
			return err
		}
		created.Id = id
		if err := repo.ReplaceParticipants(f.ctx, id, participantIds); err != nil {
			return err
		}
		return repo.SetSlotStatus(f.ctx, slot.Id, timeslot.StatusBusy)
	})
	require.NoError(t, err)
	return created
}

func TestRepositoryImpl_SlotForBooking(t *testing.T) {
	f := setupFixture(t)

	// when
	slot, err := f.repo.SlotForBooking(f.ctx, f.slot)

	// then
	require.NoError(t, err)
	assert.Equal(t, f.slot, slot.Id)
	assert.Equal(t, f.alice, slot.OwnerId)
	assert.Equal(t, timeslot.StatusAvailable, slot.Status)
	assert.Equal(t, time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), slot.StartTime)

	_, err = f.repo.SlotForBooking(f.ctx, 42)
	assert.True(t, apperr.IsNotFound(err))
}

func TestRepositoryImpl_StoreAndFindMeeting(t *testing.T) {
	f := setupFixture(t)
	created := bookMeeting(t, f, "Sprint planning", f.slot, f.alice, f.bob)

	// when
	found, err := f.repo.FindMeeting(f.ctx, created.Id)

	// then
	require.NoError(t, err)
	assert.Equal(t, "Sprint planning", found.Title)
	assert.Equal(t, f.slot, found.TimeSlotId)
	assert.Equal(t, "alice@example.com", found.OrganizerEmail)
	assert.Equal(t, time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), found.StartTime)
	assert.Equal(t, time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC), found.EndTime)
	require.Len(t, found.Participants, 1)
	assert.Equal(t, "bob@example.com", found.Participants[0].Email)

	// the slot was flipped to busy with the insert
	slot, err := f.repo.SlotForBooking(f.ctx, f.slot)
	require.NoError(t, err)
	assert.Equal(t, timeslot.StatusBusy, slot.Status)

	_, err = f.repo.FindMeeting(f.ctx, 42)
	assert.True(t, apperr.IsNotFound(err))
}

func TestRepositoryImpl_StoreMeeting_SlotUniqueness(t *testing.T) {
	f := setupFixture(t)
	bookMeeting(t, f, "First", f.slot, f.alice)

	// when: a second insert against the same slot
	_, err := f.repo.StoreMeeting(f.ctx, Meeting{
		Title:       "Second",
		TimeSlotId:  f.slot,
		OrganizerId: f.alice,
		CreatedAt:   time.Now().UTC(),
	})

	// then: the UNIQUE constraint on time_slot_id rejects it
	assert.Error(t, err)
}

func TestRepositoryImpl_MeetingIdByTimeSlot(t *testing.T) {
	f := setupFixture(t)

	_, exists, err := f.repo.MeetingIdByTimeSlot(f.ctx, f.slot)
	require.NoError(t, err)
	assert.False(t, exists)

	created := bookMeeting(t, f, "Sync", f.slot, f.alice)

	id, exists, err := f.repo.MeetingIdByTimeSlot(f.ctx, f.slot)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, created.Id, id)
}

func TestRepositoryImpl_FindByUserQueries(t *testing.T) {
	f := setupFixture(t)
	carol := seedUser(t, f.db, "carol@example.com")
	bobSlot := seedSlot(t, f.db, f.bob, time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC), time.Date(2026, 3, 3, 11, 0, 0, 0, time.UTC))

	aliceMeeting := bookMeeting(t, f, "Alice's meeting", f.slot, f.alice, f.bob)
	bobMeeting := bookMeeting(t, f, "Bob's meeting", bobSlot, f.bob, carol)

	t.Run("by organizer", func(t *testing.T) {
		meetings, err := f.repo.FindByOrganizer(f.ctx, f.alice)
		require.NoError(t, err)
		require.Len(t, meetings, 1)
		assert.Equal(t, aliceMeeting.Id, meetings[0].Id)
	})

	t.Run("by participant", func(t *testing.T) {
		meetings, err := f.repo.FindByParticipant(f.ctx, f.bob)
		require.NoError(t, err)
		require.Len(t, meetings, 1)
		assert.Equal(t, aliceMeeting.Id, meetings[0].Id)
	})

	t.Run("for user covers both roles", func(t *testing.T) {
		meetings, err := f.repo.FindForUser(f.ctx, f.bob)
		require.NoError(t, err)
		require.Len(t, meetings, 2)
	})

	t.Run("for an uninvolved user", func(t *testing.T) {
		meetings, err := f.repo.FindForUser(f.ctx, f.alice)
		require.NoError(t, err)
		require.Len(t, meetings, 1)
		assert.Equal(t, aliceMeeting.Id, meetings[0].Id)
	})

	t.Run("in range", func(t *testing.T) {
		from := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
		to := time.Date(2026, 3, 2, 23, 59, 0, 0, time.UTC)
		meetings, err := f.repo.FindInRange(f.ctx, from, to, 0)
		require.NoError(t, err)
		require.Len(t, meetings, 1)
		assert.Equal(t, aliceMeeting.Id, meetings[0].Id)
	})

	t.Run("in range filtered by organizer", func(t *testing.T) {
		from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
		to := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
		meetings, err := f.repo.FindInRange(f.ctx, from, to, f.bob)
		require.NoError(t, err)
		require.Len(t, meetings, 1)
		assert.Equal(t, bobMeeting.Id, meetings[0].Id)
	})
}

func TestRepositoryImpl_UpdateMeeting(t *testing.T) {
	f := setupFixture(t)
	created := bookMeeting(t, f, "Sync", f.slot, f.alice)

	// when
	require.NoError(t, f.repo.UpdateMeeting(f.ctx, created.Id, "Weekly sync", "every monday"))

	// then
	found, err := f.repo.FindMeeting(f.ctx, created.Id)
	require.NoError(t, err)
	assert.Equal(t, "Weekly sync", found.Title)
	assert.Equal(t, "every monday", found.Description)

	err = f.repo.UpdateMeeting(f.ctx, 42, "Ghost", "")
	assert.True(t, apperr.IsNotFound(err))
}

func TestRepositoryImpl_Participants(t *testing.T) {
	f := setupFixture(t)
	created := bookMeeting(t, f, "Sync", f.slot, f.alice)

	// when
	require.NoError(t, f.repo.AddParticipant(f.ctx, created.Id, f.bob))
	// adding again is a no-op
	require.NoError(t, f.repo.AddParticipant(f.ctx, created.Id, f.bob))

	// then
	found, err := f.repo.FindMeeting(f.ctx, created.Id)
	require.NoError(t, err)
	require.Len(t, found.Participants, 1)

	// replace
	carol := seedUser(t, f.db, "carol@example.com")
	require.NoError(t, f.repo.ReplaceParticipants(f.ctx, created.Id, []int64{carol}))
	found, err = f.repo.FindMeeting(f.ctx, created.Id)
	require.NoError(t, err)
	require.Len(t, found.Participants, 1)
	assert.Equal(t, "carol@example.com", found.Participants[0].Email)

	// remove
	require.NoError(t, f.repo.RemoveParticipant(f.ctx, created.Id, carol))
	found, err = f.repo.FindMeeting(f.ctx, created.Id)
	require.NoError(t, err)
	assert.Empty(t, found.Participants)
}

func TestRepositoryImpl_DeleteMeeting_FreesSlotForRebooking(t *testing.T) {
	f := setupFixture(t)
	created := bookMeeting(t, f, "Sync", f.slot, f.alice, f.bob)

	// when: cancel in one transaction
	err := f.repo.WithTransaction(f.ctx, func(repo Repository) error {
		if err := repo.SetSlotStatus(f.ctx, created.TimeSlotId, timeslot.StatusAvailable); err != nil {
			return err
		}
		return repo.DeleteMeeting(f.ctx, created.Id)
	})

	// then
	require.NoError(t, err)
	_, err = f.repo.FindMeeting(f.ctx, created.Id)
	assert.True(t, apperr.IsNotFound(err))

	var count int
	require.NoError(t, f.db.QueryRow(`SELECT COUNT(*) FROM meeting_participants WHERE meeting_id = ?`, created.Id).Scan(&count))
	assert.Zero(t, count)

	// the slot can be booked again
	bookMeeting(t, f, "Rebooked", f.slot, f.alice)
}

func TestRepositoryImpl_WithTransaction_RollsBackOnError(t *testing.T) {
	f := setupFixture(t)

	// when: booking fails after the insert
	err := f.repo.WithTransaction(f.ctx, func(repo Repository) error {
		if _, err := repo.StoreMeeting(f.ctx, Meeting{
			Title:       "Doomed",
			TimeSlotId:  f.slot,
			OrganizerId: f.alice,
			CreatedAt:   time.Now().UTC(),
		}); err != nil {
			return err
		}
		if err := repo.SetSlotStatus(f.ctx, f.slot, timeslot.StatusBusy); err != nil {
			return err
		}
		return apperr.Conflict("forced failure")
	})

	// then: neither the meeting nor the status change survived
	assert.True(t, apperr.IsConflict(err))
	_, exists, err := f.repo.MeetingIdByTimeSlot(f.ctx, f.slot)
	require.NoError(t, err)
	assert.False(t, exists)
	slot, err := f.repo.SlotForBooking(f.ctx, f.slot)
	require.NoError(t, err)
	assert.Equal(t, timeslot.StatusAvailable, slot.Status)
}
