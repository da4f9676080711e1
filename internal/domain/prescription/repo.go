package prescription

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, rec *Record) error
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)
	ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*Record, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Record, int, error)
}

type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// AppointmentCompleter marks an appointment completed after a prescription is
// saved. Wired to the scheduling service when the feature is enabled.
type AppointmentCompleter interface {
	Complete(ctx context.Context, appointmentID uuid.UUID) error
}
