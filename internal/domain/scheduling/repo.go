package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SessionRepository persists sessions. Implementations must map a missing row
// to ErrSessionNotFound.
type SessionRepository interface {
	Create(ctx context.Context, s *Session) error
	GetByID(ctx context.Context, id uuid.UUID) (*Session, error)
	// GetForUpdate loads the session with a row lock when running inside a
	// transaction. Callers use it for check-and-increment sequences.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Session, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	// IncrementBooked bumps booked_count by one only while it is below
	// capacity. Returns false when the session is full.
	IncrementBooked(ctx context.Context, id uuid.UUID) (bool, error)
	DecrementBooked(ctx context.Context, id uuid.UUID) error
	ResetBooked(ctx context.Context, id uuid.UUID) error
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Session, int, error)
	ListAvailable(ctx context.Context, doctorID uuid.UUID, from time.Time, limit, offset int) ([]*Session, int, error)
}

// AppointmentRepository persists appointments. Rows are never deleted; all
// list queries order by booked_at ascending. Implementations must map a
// missing row to ErrAppointmentNotFound.
type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	// CountBooked returns the number of BOOKED appointments the patient holds
	// on the session.
	CountBooked(ctx context.Context, sessionID, patientID uuid.UUID) (int, error)
	// ListBookedBySession returns every BOOKED appointment on the session,
	// unpaginated, for cascade cancellation.
	ListBookedBySession(ctx context.Context, sessionID uuid.UUID) ([]*Appointment, error)
	// CancelAllBooked flips every BOOKED appointment on the session to
	// CANCELLED and returns how many rows changed.
	CancelAllBooked(ctx context.Context, sessionID uuid.UUID) (int, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
}

// TxRunner runs fn inside a database transaction. Repository calls made with
// the ctx passed to fn share that transaction.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Notifier receives booking events after the surrounding transaction commits.
// It is never called while a session lock or transaction is held.
type Notifier interface {
	AppointmentBooked(ctx context.Context, sess *Session, appt *Appointment)
	AppointmentCancelled(ctx context.Context, sess *Session, appt *Appointment)
	SessionCancelled(ctx context.Context, sess *Session, cancelled []*Appointment)
}
