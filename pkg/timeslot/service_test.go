package timeslot

import (
	"context"
	"testing"
	"time"

	"github.com/slotbook/slotbook/internal/apperr"
	"github.com/slotbook/slotbook/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func setupServiceTest() (*ServiceImpl, *stubSlotRepository) {
	repo := newStubSlotRepository()
	repo.addUser(1, "alice@example.com")
	clock := &utils.MockClock{FixedNow: now}
	return NewService(repo, clock), repo
}

func TestServiceImpl_CreateSlot(t *testing.T) {
	ctx := context.Background()

	t.Run("should create an available slot", func(t *testing.T) {
		service, _ := setupServiceTest()

		// when
		slot, err := service.CreateSlot(ctx, 1, now.Add(time.Hour), now.Add(2*time.Hour))

		// then
		require.NoError(t, err)
		assert.Equal(t, StatusAvailable, slot.Status)
		assert.Equal(t, "alice@example.com", slot.UserEmail)
		assert.NotZero(t, slot.Id)
	})

	t.Run("should reject a slot in the past", func(t *testing.T) {
		service, _ := setupServiceTest()

		// when
		_, err := service.CreateSlot(ctx, 1, now.Add(-time.Hour), now.Add(time.Hour))

		// then
		assert.True(t, apperr.IsValidation(err))
	})

	t.Run("should reject an inverted range", func(t *testing.T) {
		service, _ := setupServiceTest()

		// when
		_, err := service.CreateSlot(ctx, 1, now.Add(2*time.Hour), now.Add(time.Hour))

		// then
		assert.True(t, apperr.IsValidation(err))
	})

	t.Run("should reject an empty range", func(t *testing.T) {
		service, _ := setupServiceTest()

		// when
		_, err := service.CreateSlot(ctx, 1, now.Add(time.Hour), now.Add(time.Hour))

		// then
		assert.True(t, apperr.IsValidation(err))
	})

	t.Run("should reject an overlapping slot", func(t *testing.T) {
		service, _ := setupServiceTest()
		_, err := service.CreateSlot(ctx, 1, now.Add(time.Hour), now.Add(2*time.Hour))
		require.NoError(t, err)

		// when
		_, err = service.CreateSlot(ctx, 1, now.Add(90*time.Minute), now.Add(3*time.Hour))

		// then
		assert.True(t, apperr.IsConflict(err))
	})

	t.Run("should allow a slot touching an existing one", func(t *testing.T) {
		service, _ := setupServiceTest()
		_, err := service.CreateSlot(ctx, 1, now.Add(time.Hour), now.Add(2*time.Hour))
		require.NoError(t, err)

		// when
		_, err = service.CreateSlot(ctx, 1, now.Add(2*time.Hour), now.Add(3*time.Hour))

		// then
		assert.NoError(t, err)
	})

	t.Run("should return not found for unknown user", func(t *testing.T) {
		service, _ := setupServiceTest()

		// when
		_, err := service.CreateSlot(ctx, 42, now.Add(time.Hour), now.Add(2*time.Hour))

		// then
		assert.True(t, apperr.IsNotFound(err))
	})
}

func TestServiceImpl_UpdateSlot(t *testing.T) {
	ctx := context.Background()

	t.Run("should move a slot to a free range", func(t *testing.T) {
		service, _ := setupServiceTest()
		slot, err := service.CreateSlot(ctx, 1, now.Add(time.Hour), now.Add(2*time.Hour))
		require.NoError(t, err)

		// when
		newStart := now.Add(3 * time.Hour)
		newEnd := now.Add(4 * time.Hour)
		updated, err := service.UpdateSlot(ctx, slot.Id, SlotUpdate{StartTime: &newStart, EndTime: &newEnd})

		// then
		require.NoError(t, err)
		assert.Equal(t, newStart, updated.StartTime)
		assert.Equal(t, newEnd, updated.EndTime)
	})

	t.Run("should re-check overlap when moving a slot", func(t *testing.T) {
		service, _ := setupServiceTest()
		_, err := service.CreateSlot(ctx, 1, now.Add(time.Hour), now.Add(2*time.Hour))
		require.NoError(t, err)
		second, err := service.CreateSlot(ctx, 1, now.Add(3*time.Hour), now.Add(4*time.Hour))
		require.NoError(t, err)

		// when
		newStart := now.Add(90 * time.Minute)
		newEnd := now.Add(150 * time.Minute)
		_, err = service.UpdateSlot(ctx, second.Id, SlotUpdate{StartTime: &newStart, EndTime: &newEnd})

		// then
		assert.True(t, apperr.IsConflict(err))
	})

	t.Run("should not conflict with the slot's own range", func(t *testing.T) {
		service, _ := setupServiceTest()
		slot, err := service.CreateSlot(ctx, 1, now.Add(time.Hour), now.Add(2*time.Hour))
		require.NoError(t, err)

		// when: shrink the slot within its own range
		newStart := now.Add(time.Hour)
		newEnd := now.Add(90 * time.Minute)
		_, err = service.UpdateSlot(ctx, slot.Id, SlotUpdate{StartTime: &newStart, EndTime: &newEnd})

		// then
		assert.NoError(t, err)
	})

	t.Run("should reject marking a booked slot as available", func(t *testing.T) {
		service, repo := setupServiceTest()
		slot, err := service.CreateSlot(ctx, 1, now.Add(time.Hour), now.Add(2*time.Hour))
		require.NoError(t, err)
		repo.bindMeeting(slot.Id, 7)

		// when
		available := StatusAvailable
		_, err = service.UpdateSlot(ctx, slot.Id, SlotUpdate{Status: &available})

		// then
		assert.True(t, apperr.IsValidation(err))
	})

	t.Run("should return not found for unknown slot", func(t *testing.T) {
		service, _ := setupServiceTest()

		// when
		busy := StatusBusy
		_, err := service.UpdateSlot(ctx, 42, SlotUpdate{Status: &busy})

		// then
		assert.True(t, apperr.IsNotFound(err))
	})
}

func TestServiceImpl_MarkBusyAndAvailable(t *testing.T) {
	ctx := context.Background()

	t.Run("should mark a slot busy without a meeting", func(t *testing.T) {
		service, _ := setupServiceTest()
		slot, err := service.CreateSlot(ctx, 1, now.Add(time.Hour), now.Add(2*time.Hour))
		require.NoError(t, err)

		// when
		updated, err := service.MarkBusy(ctx, slot.Id)

		// then
		require.NoError(t, err)
		assert.Equal(t, StatusBusy, updated.Status)
	})

	t.Run("should mark a busy slot available again", func(t *testing.T) {
		service, _ := setupServiceTest()
		slot, err := service.CreateSlot(ctx, 1, now.Add(time.Hour), now.Add(2*time.Hour))
		require.NoError(t, err)
		_, err = service.MarkBusy(ctx, slot.Id)
		require.NoError(t, err)

		// when
		updated, err := service.MarkAvailable(ctx, slot.Id)

		// then
		require.NoError(t, err)
		assert.Equal(t, StatusAvailable, updated.Status)
	})

	t.Run("should not free a slot with a meeting", func(t *testing.T) {
		service, repo := setupServiceTest()
		slot, err := service.CreateSlot(ctx, 1, now.Add(time.Hour), now.Add(2*time.Hour))
		require.NoError(t, err)
		repo.bindMeeting(slot.Id, 7)

		// when
		_, err = service.MarkAvailable(ctx, slot.Id)

		// then
		assert.True(t, apperr.IsValidation(err))
	})
}

func TestServiceImpl_DeleteSlot(t *testing.T) {
	ctx := context.Background()

	t.Run("should delete an unbooked slot", func(t *testing.T) {
		service, _ := setupServiceTest()
		slot, err := service.CreateSlot(ctx, 1, now.Add(time.Hour), now.Add(2*time.Hour))
		require.NoError(t, err)

		// when
		err = service.DeleteSlot(ctx, slot.Id)

		// then
		require.NoError(t, err)
		_, err = service.GetSlot(ctx, slot.Id)
		assert.True(t, apperr.IsNotFound(err))
	})

	t.Run("should refuse to delete a slot with a meeting", func(t *testing.T) {
		service, repo := setupServiceTest()
		slot, err := service.CreateSlot(ctx, 1, now.Add(time.Hour), now.Add(2*time.Hour))
		require.NoError(t, err)
		repo.bindMeeting(slot.Id, 7)

		// when
		err = service.DeleteSlot(ctx, slot.Id)

		// then
		assert.True(t, apperr.IsValidation(err))
	})
}

func TestServiceImpl_GetAvailability(t *testing.T) {
	ctx := context.Background()
	service, _ := setupServiceTest()

	first, err := service.CreateSlot(ctx, 1, now.Add(time.Hour), now.Add(2*time.Hour))
	require.NoError(t, err)
	second, err := service.CreateSlot(ctx, 1, now.Add(3*time.Hour), now.Add(4*time.Hour))
	require.NoError(t, err)
	_, err = service.MarkBusy(ctx, second.Id)
	require.NoError(t, err)

	// slot outside the queried range
	_, err = service.CreateSlot(ctx, 1, now.Add(24*time.Hour), now.Add(25*time.Hour))
	require.NoError(t, err)

	// when
	availability, err := service.GetAvailability(ctx, 1, now, now.Add(5*time.Hour))

	// then
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", availability.UserEmail)
	require.Len(t, availability.AvailableSlots, 1)
	assert.Equal(t, first.Id, availability.AvailableSlots[0].Id)
	require.Len(t, availability.BusySlots, 1)
	assert.Equal(t, second.Id, availability.BusySlots[0].Id)
}

func TestServiceImpl_GetSlotsByUser(t *testing.T) {
	ctx := context.Background()

	t.Run("should return not found for unknown user", func(t *testing.T) {
		service, _ := setupServiceTest()

		// when
		_, err := service.GetSlotsByUser(ctx, 42, Filter{})

		// then
		assert.True(t, apperr.IsNotFound(err))
	})

	t.Run("should filter by status", func(t *testing.T) {
		service, _ := setupServiceTest()
		_, err := service.CreateSlot(ctx, 1, now.Add(time.Hour), now.Add(2*time.Hour))
		require.NoError(t, err)
		busySlot, err := service.CreateSlot(ctx, 1, now.Add(3*time.Hour), now.Add(4*time.Hour))
		require.NoError(t, err)
		_, err = service.MarkBusy(ctx, busySlot.Id)
		require.NoError(t, err)

		// when
		busy := StatusBusy
		slots, err := service.GetSlotsByUser(ctx, 1, Filter{Status: &busy})

		// then
		require.NoError(t, err)
		require.Len(t, slots, 1)
		assert.Equal(t, busySlot.Id, slots[0].Id)
	})
}
