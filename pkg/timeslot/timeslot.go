package timeslot

import "time"

type Status string

const (
	StatusAvailable Status = "AVAILABLE"
	StatusBusy      Status = "BUSY"
)

func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusAvailable, StatusBusy:
		return Status(s), true
	}
	return "", false
}

type TimeSlot struct {
	Id         int64
	CalendarId int64
	UserId     int64
	UserEmail  string
	StartTime  time.Time
	EndTime    time.Time
	Status     Status
	// MeetingId is the id of the meeting bound to this slot, 0 when unbound.
	MeetingId int64
	CreatedAt time.Time
}

// Overlaps reports whether the slot's half-open interval [StartTime, EndTime)
// intersects [start, end).
func (s TimeSlot) Overlaps(start, end time.Time) bool {
	return s.StartTime.Before(end) && start.Before(s.EndTime)
}

func (s TimeSlot) DurationInMinutes() int64 {
	return int64(s.EndTime.Sub(s.StartTime) / time.Minute)
}
