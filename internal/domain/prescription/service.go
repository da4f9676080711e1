package prescription

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type Service struct {
	records   Repository
	tx        TxRunner
	completer AppointmentCompleter
}

func NewService(records Repository, tx TxRunner) *Service {
	return &Service{records: records, tx: tx}
}

// SetCompleter enables marking the appointment completed after each save.
// Off unless configured.
func (s *Service) SetCompleter(c AppointmentCompleter) { s.completer = c }

func (s *Service) Create(ctx context.Context, rec *Record) error {
	if rec.AppointmentID == uuid.Nil {
		return fmt.Errorf("appointment_id is required: %w", ErrInvalidRecord)
	}
	if rec.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required: %w", ErrInvalidRecord)
	}
	if rec.DoctorID == uuid.Nil {
		return fmt.Errorf("doctor_id is required: %w", ErrInvalidRecord)
	}
	if len(rec.Items) == 0 {
		return fmt.Errorf("at least one medication item is required: %w", ErrInvalidRecord)
	}
	for i, item := range rec.Items {
		if item.Name == "" {
			return fmt.Errorf("item %d: name is required: %w", i, ErrInvalidRecord)
		}
		if item.Dosage == "" {
			return fmt.Errorf("item %d: dosage is required: %w", i, ErrInvalidRecord)
		}
	}

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		return s.records.Create(ctx, rec)
	})
	if err != nil {
		return err
	}

	if s.completer != nil {
		if err := s.completer.Complete(ctx, rec.AppointmentID); err != nil {
			return fmt.Errorf("prescription saved but appointment not completed: %w", err)
		}
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	return s.records.GetByID(ctx, id)
}

func (s *Service) ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*Record, error) {
	return s.records.ListByAppointment(ctx, appointmentID)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Record, int, error) {
	return s.records.ListByPatient(ctx, patientID, limit, offset)
}
