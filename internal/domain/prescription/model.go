package prescription

import (
	"time"

	"github.com/google/uuid"
)

// Record maps to the prescription_record table. Records are append-only:
// re-prescribing for the same appointment inserts a new record and keeps the
// old one.
type Record struct {
	ID            uuid.UUID `db:"id" json:"id"`
	AppointmentID uuid.UUID `db:"appointment_id" json:"appointment_id"`
	PatientID     uuid.UUID `db:"patient_id" json:"patient_id"`
	DoctorID      uuid.UUID `db:"doctor_id" json:"doctor_id"`
	Notes         string    `db:"notes" json:"notes"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`

	Items []*Item `db:"-" json:"items"`
}

// Item maps to the prescription_item table.
type Item struct {
	ID           uuid.UUID `db:"id" json:"id"`
	RecordID     uuid.UUID `db:"record_id" json:"record_id"`
	Position     int       `db:"position" json:"position"`
	Name         string    `db:"name" json:"name"`
	Dosage       string    `db:"dosage" json:"dosage"`
	Frequency    string    `db:"frequency" json:"frequency"`
	Duration     string    `db:"duration" json:"duration"`
	Instructions string    `db:"instructions" json:"instructions"`
}
