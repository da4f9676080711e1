package scheduling

import (
	"time"

	"github.com/google/uuid"
)

// Session statuses. Transitions are monotonic: a session never returns to an
// earlier state, and COMPLETED/CANCELLED are terminal.
const (
	SessionScheduled = "SCHEDULED"
	SessionStarted   = "STARTED"
	SessionCompleted = "COMPLETED"
	SessionCancelled = "CANCELLED"
)

// Appointment statuses. Appointments are never deleted; cancellation and
// completion are status writes.
const (
	AppointmentBooked    = "BOOKED"
	AppointmentCompleted = "COMPLETED"
	AppointmentCancelled = "CANCELLED"
)

// sessionTransitions maps each session status to the statuses reachable from it.
var sessionTransitions = map[string]map[string]bool{
	SessionScheduled: {SessionStarted: true, SessionCancelled: true},
	SessionStarted:   {SessionCompleted: true, SessionCancelled: true},
	SessionCompleted: {},
	SessionCancelled: {},
}

// CanTransition reports whether a session may move from one status to another.
func CanTransition(from, to string) bool {
	return sessionTransitions[from][to]
}

// Session is a bookable block of a doctor's time with a fixed capacity.
// BookedCount tracks the number of BOOKED appointments and never exceeds
// Capacity.
type Session struct {
	ID          uuid.UUID `db:"id" json:"id"`
	DoctorID    uuid.UUID `db:"doctor_id" json:"doctor_id"`
	Date        time.Time `db:"date" json:"date"`
	StartTime   time.Time `db:"start_time" json:"start_time"`
	EndTime     time.Time `db:"end_time" json:"end_time"`
	Capacity    int       `db:"capacity" json:"capacity"`
	BookedCount int       `db:"booked_count" json:"booked_count"`
	Status      string    `db:"status" json:"status"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// AvailableSlots returns the remaining capacity of the session.
func (s *Session) AvailableSlots() int {
	free := s.Capacity - s.BookedCount
	if free < 0 {
		return 0
	}
	return free
}

// IsTerminal reports whether the session is in a terminal state.
func (s *Session) IsTerminal() bool {
	return s.Status == SessionCompleted || s.Status == SessionCancelled
}

// Appointment links a patient to a session. BookedAt orders the ledger.
type Appointment struct {
	ID        uuid.UUID `db:"id" json:"id"`
	SessionID uuid.UUID `db:"session_id" json:"session_id"`
	PatientID uuid.UUID `db:"patient_id" json:"patient_id"`
	Status    string    `db:"status" json:"status"`
	BookedAt  time.Time `db:"booked_at" json:"booked_at"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
