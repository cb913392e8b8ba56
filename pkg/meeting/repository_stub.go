package meeting

import (
	"context"
	"sort"
	"time"

	"github.com/slotbook/slotbook/internal/apperr"
	"github.com/slotbook/slotbook/pkg/timeslot"
)

// stubMeetingRepository is an in-memory Repository implementation for
// service tests. It keeps the slot→meeting link in a separate table like
// the real schema does.
type stubMeetingRepository struct {
	users        map[int64]Participant
	slots        map[int64]BookingSlot
	meetings     map[int64]Meeting
	participants map[int64]map[int64]bool
	nextId       int64
}

func newStubMeetingRepository() *stubMeetingRepository {
	return &stubMeetingRepository{
		users:        make(map[int64]Participant),
		slots:        make(map[int64]BookingSlot),
		meetings:     make(map[int64]Meeting),
		participants: make(map[int64]map[int64]bool),
		nextId:       1,
	}
}

func (s *stubMeetingRepository) addUser(p Participant) {
	s.users[p.Id] = p
}

func (s *stubMeetingRepository) addSlot(slot BookingSlot) {
	s.slots[slot.Id] = slot
}

func (s *stubMeetingRepository) slotStatus(slotId int64) timeslot.Status {
	return s.slots[slotId].Status
}

func (s *stubMeetingRepository) WithTransaction(ctx context.Context, fn func(repo Repository) error) error {
	return fn(s)
}

func (s *stubMeetingRepository) SlotForBooking(ctx context.Context, slotId int64) (BookingSlot, error) {
	slot, ok := s.slots[slotId]
	if !ok {
		return BookingSlot{}, apperr.NotFound("time slot with id %d not found", slotId)
	}
	return slot, nil
}

func (s *stubMeetingRepository) MeetingIdByTimeSlot(ctx context.Context, slotId int64) (int64, bool, error) {
	for id, m := range s.meetings {
		if m.TimeSlotId == slotId {
			return id, true, nil
		}
	}
	return 0, false, nil
}

func (s *stubMeetingRepository) UserById(ctx context.Context, id int64) (Participant, error) {
	p, ok := s.users[id]
	if !ok {
		return Participant{}, apperr.NotFound("user with id %d not found", id)
	}
	return p, nil
}

func (s *stubMeetingRepository) StoreMeeting(ctx context.Context, m Meeting) (int64, error) {
	if _, exists, _ := s.MeetingIdByTimeSlot(ctx, m.TimeSlotId); exists {
		return 0, apperr.Conflict("time slot %d already has a meeting scheduled", m.TimeSlotId)
	}
	id := s.nextId
	s.nextId++
	m.Id = id
	m.Participants = nil
	s.meetings[id] = m
	s.participants[id] = make(map[int64]bool)
	return id, nil
}

func (s *stubMeetingRepository) SetSlotStatus(ctx context.Context, slotId int64, status timeslot.Status) error {
	slot, ok := s.slots[slotId]
	if !ok {
		return apperr.NotFound("time slot with id %d not found", slotId)
	}
	slot.Status = status
	s.slots[slotId] = slot
	return nil
}

func (s *stubMeetingRepository) FindMeeting(ctx context.Context, id int64) (Meeting, error) {
	m, ok := s.meetings[id]
	if !ok {
		return Meeting{}, apperr.NotFound("meeting with id %d not found", id)
	}
	return s.compose(m), nil
}

func (s *stubMeetingRepository) FindByOrganizer(ctx context.Context, userId int64) ([]Meeting, error) {
	return s.filter(func(m Meeting) bool { return m.OrganizerId == userId }), nil
}

func (s *stubMeetingRepository) FindByParticipant(ctx context.Context, userId int64) ([]Meeting, error) {
	return s.filter(func(m Meeting) bool { return s.participants[m.Id][userId] }), nil
}

func (s *stubMeetingRepository) FindForUser(ctx context.Context, userId int64) ([]Meeting, error) {
	return s.filter(func(m Meeting) bool {
		return m.OrganizerId == userId || s.participants[m.Id][userId]
	}), nil
}

func (s *stubMeetingRepository) FindInRange(ctx context.Context, from, to time.Time, organizerId int64) ([]Meeting, error) {
	return s.filter(func(m Meeting) bool {
		slot := s.slots[m.TimeSlotId]
		if slot.StartTime.Before(from) || slot.EndTime.After(to) {
			return false
		}
		return organizerId == 0 || m.OrganizerId == organizerId
	}), nil
}

func (s *stubMeetingRepository) UpdateMeeting(ctx context.Context, id int64, title, description string) error {
	m, ok := s.meetings[id]
	if !ok {
		return apperr.NotFound("meeting with id %d not found", id)
	}
	m.Title = title
	m.Description = description
	s.meetings[id] = m
	return nil
}

func (s *stubMeetingRepository) ReplaceParticipants(ctx context.Context, meetingId int64, userIds []int64) error {
	set := make(map[int64]bool, len(userIds))
	for _, userId := range userIds {
		set[userId] = true
	}
	s.participants[meetingId] = set
	return nil
}

func (s *stubMeetingRepository) AddParticipant(ctx context.Context, meetingId, userId int64) error {
	s.participants[meetingId][userId] = true
	return nil
}

func (s *stubMeetingRepository) RemoveParticipant(ctx context.Context, meetingId, userId int64) error {
	delete(s.participants[meetingId], userId)
	return nil
}

func (s *stubMeetingRepository) DeleteMeeting(ctx context.Context, id int64) error {
	if _, ok := s.meetings[id]; !ok {
		return apperr.NotFound("meeting with id %d not found", id)
	}
	delete(s.meetings, id)
	delete(s.participants, id)
	return nil
}

func (s *stubMeetingRepository) compose(m Meeting) Meeting {
	slot := s.slots[m.TimeSlotId]
	m.StartTime = slot.StartTime
	m.EndTime = slot.EndTime
	ids := make([]int64, 0, len(s.participants[m.Id]))
	for userId := range s.participants[m.Id] {
		ids = append(ids, userId)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	participants := make([]Participant, 0, len(ids))
	for _, userId := range ids {
		participants = append(participants, s.users[userId])
	}
	m.Participants = participants
	return m
}

func (s *stubMeetingRepository) filter(keep func(Meeting) bool) []Meeting {
	ids := make([]int64, 0, len(s.meetings))
	for id, m := range s.meetings {
		if keep(m) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	meetings := make([]Meeting, 0, len(ids))
	for _, id := range ids {
		meetings = append(meetings, s.compose(s.meetings[id]))
	}
	return meetings
}
