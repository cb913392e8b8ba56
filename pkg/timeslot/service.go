package timeslot

import (
	"context"
	"time"

	"github.com/slotbook/slotbook/internal/apperr"
	"github.com/slotbook/slotbook/internal/utils"
)

type SlotUpdate struct {
	StartTime *time.Time
	EndTime   *time.Time
	Status    *Status
}

type Availability struct {
	UserId         int64
	UserEmail      string
	QueryStart     time.Time
	QueryEnd       time.Time
	AvailableSlots []TimeSlot
	BusySlots      []TimeSlot
}

type Service interface {
	CreateSlot(ctx context.Context, userId int64, start, end time.Time) (TimeSlot, error)
	GetSlot(ctx context.Context, id int64) (TimeSlot, error)
	GetSlotsByUser(ctx context.Context, userId int64, filter Filter) ([]TimeSlot, error)
	GetAvailability(ctx context.Context, userId int64, from, to time.Time) (Availability, error)
	UpdateSlot(ctx context.Context, id int64, update SlotUpdate) (TimeSlot, error)
	MarkBusy(ctx context.Context, id int64) (TimeSlot, error)
	MarkAvailable(ctx context.Context, id int64) (TimeSlot, error)
	DeleteSlot(ctx context.Context, id int64) error
}

type ServiceImpl struct {
	repo  Repository
	clock utils.Clock
}

func NewService(repo Repository, clock utils.Clock) *ServiceImpl {
	return &ServiceImpl{repo: repo, clock: clock}
}

func (s *ServiceImpl) CreateSlot(ctx context.Context, userId int64, start, end time.Time) (TimeSlot, error) {
	if err := s.validateRange(start, end); err != nil {
		return TimeSlot{}, err
	}

	var created TimeSlot
	err := s.repo.WithTransaction(ctx, func(repo Repository) error {
		calendarId, email, err := repo.CalendarForUser(ctx, userId)
		if err != nil {
			return err
		}
		overlaps, err := repo.HasOverlapping(ctx, calendarId, start, end, 0)
		if err != nil {
			return err
		}
		if overlaps {
			return apperr.Conflict("time slot overlaps with an existing slot")
		}
		created = TimeSlot{
			CalendarId: calendarId,
			UserId:     userId,
			UserEmail:  email,
			StartTime:  start.UTC(),
			EndTime:    end.UTC(),
			Status:     StatusAvailable,
			CreatedAt:  s.clock.Now().UTC(),
		}
		id, err := repo.StoreSlot(ctx, created)
		if err != nil {
			return err
		}
		created.Id = id
		return nil
	})
	if err != nil {
		return TimeSlot{}, err
	}
	return created, nil
}

func (s *ServiceImpl) GetSlot(ctx context.Context, id int64) (TimeSlot, error) {
	return s.repo.FindSlot(ctx, id)
}

func (s *ServiceImpl) GetSlotsByUser(ctx context.Context, userId int64, filter Filter) ([]TimeSlot, error) {
	if _, _, err := s.repo.CalendarForUser(ctx, userId); err != nil {
		return nil, err
	}
	return s.repo.FindSlotsByUser(ctx, userId, filter)
}

func (s *ServiceImpl) GetAvailability(ctx context.Context, userId int64, from, to time.Time) (Availability, error) {
	_, email, err := s.repo.CalendarForUser(ctx, userId)
	if err != nil {
		return Availability{}, err
	}

	available := StatusAvailable
	availableSlots, err := s.repo.FindSlotsByUser(ctx, userId, Filter{Status: &available, From: &from, To: &to})
	if err != nil {
		return Availability{}, err
	}
	busy := StatusBusy
	busySlots, err := s.repo.FindSlotsByUser(ctx, userId, Filter{Status: &busy, From: &from, To: &to})
	if err != nil {
		return Availability{}, err
	}

	return Availability{
		UserId:         userId,
		UserEmail:      email,
		QueryStart:     from,
		QueryEnd:       to,
		AvailableSlots: availableSlots,
		BusySlots:      busySlots,
	}, nil
}

// UpdateSlot applies the requested time and status changes. Both times must
// be supplied for the range to change, and the new range is validated and
// re-checked for overlap against sibling slots, the same rules as creation.
func (s *ServiceImpl) UpdateSlot(ctx context.Context, id int64, update SlotUpdate) (TimeSlot, error) {
	var updated TimeSlot
	err := s.repo.WithTransaction(ctx, func(repo Repository) error {
		slot, err := repo.FindSlot(ctx, id)
		if err != nil {
			return err
		}
		if slot.MeetingId != 0 && update.Status != nil && *update.Status == StatusAvailable {
			return apperr.Validation("cannot mark slot %d as available when it has a meeting scheduled", id)
		}

		if update.StartTime != nil && update.EndTime != nil {
			start, end := *update.StartTime, *update.EndTime
			if err := s.validateRange(start, end); err != nil {
				return err
			}
			overlaps, err := repo.HasOverlapping(ctx, slot.CalendarId, start, end, slot.Id)
			if err != nil {
				return err
			}
			if overlaps {
				return apperr.Conflict("time slot overlaps with an existing slot")
			}
			slot.StartTime = start.UTC()
			slot.EndTime = end.UTC()
		}
		if update.Status != nil {
			slot.Status = *update.Status
		}

		if err := repo.UpdateSlot(ctx, slot); err != nil {
			return err
		}
		updated = slot
		return nil
	})
	if err != nil {
		return TimeSlot{}, err
	}
	return updated, nil
}

// MarkBusy is an administrative override: it flips the slot to BUSY without
// binding a meeting and without any guard.
func (s *ServiceImpl) MarkBusy(ctx context.Context, id int64) (TimeSlot, error) {
	var updated TimeSlot
	err := s.repo.WithTransaction(ctx, func(repo Repository) error {
		slot, err := repo.FindSlot(ctx, id)
		if err != nil {
			return err
		}
		slot.Status = StatusBusy
		if err := repo.UpdateSlot(ctx, slot); err != nil {
			return err
		}
		updated = slot
		return nil
	})
	if err != nil {
		return TimeSlot{}, err
	}
	return updated, nil
}

func (s *ServiceImpl) MarkAvailable(ctx context.Context, id int64) (TimeSlot, error) {
	var updated TimeSlot
	err := s.repo.WithTransaction(ctx, func(repo Repository) error {
		slot, err := repo.FindSlot(ctx, id)
		if err != nil {
			return err
		}
		if slot.MeetingId != 0 {
			return apperr.Validation("cannot mark slot %d as available when it has a meeting scheduled", id)
		}
		slot.Status = StatusAvailable
		if err := repo.UpdateSlot(ctx, slot); err != nil {
			return err
		}
		updated = slot
		return nil
	})
	if err != nil {
		return TimeSlot{}, err
	}
	return updated, nil
}

func (s *ServiceImpl) DeleteSlot(ctx context.Context, id int64) error {
	return s.repo.WithTransaction(ctx, func(repo Repository) error {
		slot, err := repo.FindSlot(ctx, id)
		if err != nil {
			return err
		}
		if slot.MeetingId != 0 {
			return apperr.Validation("cannot delete slot %d with a scheduled meeting, cancel the meeting first", id)
		}
		return repo.DeleteSlot(ctx, id)
	})
}

func (s *ServiceImpl) validateRange(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return apperr.Validation("start time and end time are required")
	}
	if !start.Before(end) {
		return apperr.Validation("start time must be before end time")
	}
	if start.Before(s.clock.Now()) {
		return apperr.Validation("cannot create a time slot in the past")
	}
	return nil
}
