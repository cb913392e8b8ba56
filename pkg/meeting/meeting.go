package meeting

import "time"

type Meeting struct {
	Id             int64
	Title          string
	Description    string
	TimeSlotId     int64
	StartTime      time.Time
	EndTime        time.Time
	OrganizerId    int64
	OrganizerEmail string
	Participants   []Participant
	CreatedAt      time.Time
}

// Participant is the denormalized user summary carried on a meeting.
type Participant struct {
	Id        int64
	Email     string
	FirstName string
	LastName  string
}

// DurationInMinutes is derived from the bound slot's range; meetings store
// no times of their own.
func (m Meeting) DurationInMinutes() int64 {
	return int64(m.EndTime.Sub(m.StartTime) / time.Minute)
}

func (m Meeting) HasParticipant(userId int64) bool {
	for _, p := range m.Participants {
		if p.Id == userId {
			return true
		}
	}
	return false
}
