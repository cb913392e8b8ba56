package meeting

import (
	"context"
	"strings"
	"time"

	"github.com/slotbook/slotbook/internal/apperr"
	"github.com/slotbook/slotbook/internal/utils"
	"github.com/slotbook/slotbook/pkg/timeslot"
)

type CreateMeeting struct {
	TimeSlotId     int64
	OrganizerId    int64
	Title          string
	Description    string
	ParticipantIds []int64
}

// MeetingUpdate carries partial changes. A blank Title leaves the title
// untouched; a nil Description leaves it, a non-nil one (including empty)
// overwrites; a nil ParticipantIds leaves the set, a non-nil one replaces it.
type MeetingUpdate struct {
	Title          string
	Description    *string
	ParticipantIds *[]int64
}

type Service interface {
	Create(ctx context.Context, req CreateMeeting) (Meeting, error)
	GetMeeting(ctx context.Context, id int64) (Meeting, error)
	GetByOrganizer(ctx context.Context, userId int64) ([]Meeting, error)
	GetByParticipant(ctx context.Context, userId int64) ([]Meeting, error)
	GetForUser(ctx context.Context, userId int64) ([]Meeting, error)
	GetInRange(ctx context.Context, from, to time.Time, organizerId int64) ([]Meeting, error)
	Update(ctx context.Context, id int64, update MeetingUpdate) (Meeting, error)
	AddParticipant(ctx context.Context, meetingId, userId int64) (Meeting, error)
	RemoveParticipant(ctx context.Context, meetingId, userId int64) (Meeting, error)
	Cancel(ctx context.Context, id int64) error
}

type ServiceImpl struct {
	repo  Repository
	clock utils.Clock
}

func NewService(repo Repository, clock utils.Clock) *ServiceImpl {
	return &ServiceImpl{repo: repo, clock: clock}
}

// Create books a meeting onto an available slot. The slot flip to BUSY and
// the meeting insert happen in one transaction; a reader can never observe
// a BUSY slot without its meeting or the reverse.
func (s *ServiceImpl) Create(ctx context.Context, req CreateMeeting) (Meeting, error) {
	if strings.TrimSpace(req.Title) == "" {
		return Meeting{}, apperr.Validation("meeting title is required")
	}

	var created Meeting
	err := s.repo.WithTransaction(ctx, func(repo Repository) error {
		slot, err := repo.SlotForBooking(ctx, req.TimeSlotId)
		if err != nil {
			return err
		}
		if slot.Status != timeslot.StatusAvailable {
			return apperr.Conflict("time slot %d is not available for booking, current status: %s", slot.Id, slot.Status)
		}
		// Double-check the slot→meeting link independently of the status
		// flag, in case the two ever drift.
		if existingId, exists, err := repo.MeetingIdByTimeSlot(ctx, slot.Id); err != nil {
			return err
		} else if exists {
			return apperr.Conflict("time slot %d already has meeting %d scheduled", slot.Id, existingId)
		}

		organizer, err := repo.UserById(ctx, req.OrganizerId)
		if err != nil {
			if apperr.IsNotFound(err) {
				return apperr.NotFound("organizer with id %d not found", req.OrganizerId)
			}
			return err
		}
		if slot.OwnerId != organizer.Id {
			return apperr.Validation("organizer %d does not own time slot %d", organizer.Id, slot.Id)
		}

		participants := make([]Participant, 0, len(req.ParticipantIds))
		participantIds := make([]int64, 0, len(req.ParticipantIds))
		for _, participantId := range req.ParticipantIds {
			if participantId == organizer.Id {
				// The organizer is never a participant, even if requested.
				continue
			}
			p, err := repo.UserById(ctx, participantId)
			if err != nil {
				if apperr.IsNotFound(err) {
					return apperr.NotFound("participant with id %d not found", participantId)
				}
				return err
			}
			if !containsId(participantIds, p.Id) {
				participants = append(participants, p)
				participantIds = append(participantIds, p.Id)
			}
		}

		created = Meeting{
			Title:          req.Title,
			Description:    req.Description,
			TimeSlotId:     slot.Id,
			StartTime:      slot.StartTime,
			EndTime:        slot.EndTime,
			OrganizerId:    organizer.Id,
			OrganizerEmail: organizer.Email,
			Participants:   participants,
			CreatedAt:      s.clock.Now().UTC(),
		}
		id, err := repo.StoreMeeting(ctx, created)
		if err != nil {
			return err
		}
		created.Id = id
		if err := repo.ReplaceParticipants(ctx, id, participantIds); err != nil {
			return err
		}
		return repo.SetSlotStatus(ctx, slot.Id, timeslot.StatusBusy)
	})
	if err != nil {
		return Meeting{}, err
	}
	return created, nil
}

func (s *ServiceImpl) GetMeeting(ctx context.Context, id int64) (Meeting, error) {
	return s.repo.FindMeeting(ctx, id)
}

func (s *ServiceImpl) GetByOrganizer(ctx context.Context, userId int64) ([]Meeting, error) {
	return s.repo.FindByOrganizer(ctx, userId)
}

func (s *ServiceImpl) GetByParticipant(ctx context.Context, userId int64) ([]Meeting, error) {
	return s.repo.FindByParticipant(ctx, userId)
}

func (s *ServiceImpl) GetForUser(ctx context.Context, userId int64) ([]Meeting, error) {
	return s.repo.FindForUser(ctx, userId)
}

func (s *ServiceImpl) GetInRange(ctx context.Context, from, to time.Time, organizerId int64) ([]Meeting, error) {
	return s.repo.FindInRange(ctx, from, to, organizerId)
}

func (s *ServiceImpl) Update(ctx context.Context, id int64, update MeetingUpdate) (Meeting, error) {
	var updated Meeting
	err := s.repo.WithTransaction(ctx, func(repo Repository) error {
		m, err := repo.FindMeeting(ctx, id)
		if err != nil {
			return err
		}

		if strings.TrimSpace(update.Title) != "" {
			m.Title = update.Title
		}
		if update.Description != nil {
			m.Description = *update.Description
		}
		if err := repo.UpdateMeeting(ctx, m.Id, m.Title, m.Description); err != nil {
			return err
		}

		if update.ParticipantIds != nil {
			participantIds := make([]int64, 0, len(*update.ParticipantIds))
			for _, participantId := range *update.ParticipantIds {
				if participantId == m.OrganizerId {
					continue
				}
				if _, err := repo.UserById(ctx, participantId); err != nil {
					if apperr.IsNotFound(err) {
						return apperr.NotFound("participant with id %d not found", participantId)
					}
					return err
				}
				if !containsId(participantIds, participantId) {
					participantIds = append(participantIds, participantId)
				}
			}
			if err := repo.ReplaceParticipants(ctx, m.Id, participantIds); err != nil {
				return err
			}
		}

		updated, err = repo.FindMeeting(ctx, id)
		return err
	})
	if err != nil {
		return Meeting{}, err
	}
	return updated, nil
}

func (s *ServiceImpl) AddParticipant(ctx context.Context, meetingId, userId int64) (Meeting, error) {
	var updated Meeting
	err := s.repo.WithTransaction(ctx, func(repo Repository) error {
		m, err := repo.FindMeeting(ctx, meetingId)
		if err != nil {
			return err
		}
		if userId == m.OrganizerId {
			return apperr.Validation("organizer cannot be added as a participant")
		}
		if _, err := repo.UserById(ctx, userId); err != nil {
			return err
		}
		if err := repo.AddParticipant(ctx, meetingId, userId); err != nil {
			return err
		}
		updated, err = repo.FindMeeting(ctx, meetingId)
		return err
	})
	if err != nil {
		return Meeting{}, err
	}
	return updated, nil
}

func (s *ServiceImpl) RemoveParticipant(ctx context.Context, meetingId, userId int64) (Meeting, error) {
	var updated Meeting
	err := s.repo.WithTransaction(ctx, func(repo Repository) error {
		if _, err := repo.FindMeeting(ctx, meetingId); err != nil {
			return err
		}
		if _, err := repo.UserById(ctx, userId); err != nil {
			return err
		}
		// Removing a user who is not a participant is a silent no-op.
		if err := repo.RemoveParticipant(ctx, meetingId, userId); err != nil {
			return err
		}
		var err error
		updated, err = repo.FindMeeting(ctx, meetingId)
		return err
	})
	if err != nil {
		return Meeting{}, err
	}
	return updated, nil
}

// Cancel frees the slot back to AVAILABLE and deletes the meeting in one
// transaction, so no read can see the pair half-unwound.
func (s *ServiceImpl) Cancel(ctx context.Context, id int64) error {
	return s.repo.WithTransaction(ctx, func(repo Repository) error {
		m, err := repo.FindMeeting(ctx, id)
		if err != nil {
			return err
		}
		if err := repo.SetSlotStatus(ctx, m.TimeSlotId, timeslot.StatusAvailable); err != nil {
			return err
		}
		return repo.DeleteMeeting(ctx, id)
	})
}

func containsId(ids []int64, id int64) bool {
	for _, existing := range ids {
		if existing == id {
			return true
		}
	}
	return false
}
