package timeslot

import (
	"context"
	"sort"
	"time"

	"github.com/slotbook/slotbook/internal/apperr"
)

type stubCalendar struct {
	calendarId int64
	email      string
}

// stubSlotRepository is an in-memory Repository implementation for service tests.
type stubSlotRepository struct {
	calendars map[int64]stubCalendar
	slots     map[int64]TimeSlot
	nextId    int64
}

func newStubSlotRepository() *stubSlotRepository {
	return &stubSlotRepository{
		calendars: make(map[int64]stubCalendar),
		slots:     make(map[int64]TimeSlot),
		nextId:    1,
	}
}

func (s *stubSlotRepository) addUser(userId int64, email string) {
	s.calendars[userId] = stubCalendar{calendarId: userId, email: email}
}

func (s *stubSlotRepository) bindMeeting(slotId, meetingId int64) {
	slot := s.slots[slotId]
	slot.MeetingId = meetingId
	s.slots[slotId] = slot
}

func (s *stubSlotRepository) WithTransaction(ctx context.Context, fn func(repo Repository) error) error {
	return fn(s)
}

func (s *stubSlotRepository) CalendarForUser(ctx context.Context, userId int64) (int64, string, error) {
	c, ok := s.calendars[userId]
	if !ok {
		return 0, "", apperr.NotFound("user with id %d not found", userId)
	}
	return c.calendarId, c.email, nil
}

func (s *stubSlotRepository) StoreSlot(ctx context.Context, slot TimeSlot) (int64, error) {
	id := s.nextId
	s.nextId++
	slot.Id = id
	s.slots[id] = slot
	return id, nil
}

func (s *stubSlotRepository) FindSlot(ctx context.Context, id int64) (TimeSlot, error) {
	slot, ok := s.slots[id]
	if !ok {
		return TimeSlot{}, apperr.NotFound("time slot with id %d not found", id)
	}
	return slot, nil
}

func (s *stubSlotRepository) FindSlotsByUser(ctx context.Context, userId int64, filter Filter) ([]TimeSlot, error) {
	c, ok := s.calendars[userId]
	if !ok {
		return []TimeSlot{}, nil
	}
	slots := make([]TimeSlot, 0, len(s.slots))
	for _, slot := range s.slots {
		if slot.CalendarId != c.calendarId {
			continue
		}
		if filter.Status != nil && slot.Status != *filter.Status {
			continue
		}
		if filter.From != nil && filter.To != nil {
			if slot.StartTime.Before(*filter.From) || slot.EndTime.After(*filter.To) {
				continue
			}
		}
		slots = append(slots, slot)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].StartTime.Before(slots[j].StartTime) })
	return slots, nil
}

func (s *stubSlotRepository) HasOverlapping(ctx context.Context, calendarId int64, start, end time.Time, excludeId int64) (bool, error) {
	for _, slot := range s.slots {
		if slot.CalendarId == calendarId && slot.Id != excludeId && slot.Overlaps(start, end) {
			return true, nil
		}
	}
	return false, nil
}

func (s *stubSlotRepository) UpdateSlot(ctx context.Context, slot TimeSlot) error {
	existing, ok := s.slots[slot.Id]
	if !ok {
		return apperr.NotFound("time slot with id %d not found", slot.Id)
	}
	slot.MeetingId = existing.MeetingId
	s.slots[slot.Id] = slot
	return nil
}

func (s *stubSlotRepository) DeleteSlot(ctx context.Context, id int64) error {
	if _, ok := s.slots[id]; !ok {
		return apperr.NotFound("time slot with id %d not found", id)
	}
	delete(s.slots, id)
	return nil
}
