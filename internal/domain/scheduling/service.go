package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Service implements session lifecycle, booking, and the appointment ledger.
// All writes that touch a session's booked_count run inside a per-session
// critical section plus a single transaction, so concurrent bookings observe
// the capacity check and the increment atomically.
type Service struct {
	sessions     SessionRepository
	appointments AppointmentRepository
	tx           TxRunner
	locks        *sessionLocks
	lockWait     time.Duration
	notifier     Notifier
	now          func() time.Time
}

func NewService(sessions SessionRepository, appointments AppointmentRepository, tx TxRunner, lockWait time.Duration) *Service {
	return &Service{
		sessions:     sessions,
		appointments: appointments,
		tx:           tx,
		locks:        newSessionLocks(),
		lockWait:     lockWait,
		now:          time.Now,
	}
}

// SetNotifier attaches a post-commit event sink. A nil notifier disables
// events.
func (s *Service) SetNotifier(n Notifier) { s.notifier = n }

// -- Sessions --

func (s *Service) CreateSession(ctx context.Context, sess *Session) error {
	if sess.DoctorID == uuid.Nil {
		return ErrDoctorRequired
	}
	if sess.Capacity < 1 {
		return ErrInvalidCapacity
	}
	// Equal start and end is a point-in-time session and is allowed.
	if sess.StartTime.IsZero() || sess.EndTime.IsZero() || sess.StartTime.After(sess.EndTime) {
		return ErrInvalidTimeRange
	}
	if sess.Date.IsZero() {
		sess.Date = sess.StartTime.Truncate(24 * time.Hour)
	}
	sess.Status = SessionScheduled
	sess.BookedCount = 0
	return s.sessions.Create(ctx, sess)
}

func (s *Service) GetSession(ctx context.Context, id uuid.UUID) (*Session, error) {
	return s.sessions.GetByID(ctx, id)
}

func (s *Service) ListSessionsByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Session, int, error) {
	return s.sessions.ListByDoctor(ctx, doctorID, limit, offset)
}

// ListAvailableSessions returns SCHEDULED sessions of a doctor that have not
// yet ended and still have headroom.
func (s *Service) ListAvailableSessions(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Session, int, error) {
	return s.sessions.ListAvailable(ctx, doctorID, s.now(), limit, offset)
}

// StartSession moves a session from SCHEDULED to STARTED.
func (s *Service) StartSession(ctx context.Context, id uuid.UUID) (*Session, error) {
	return s.transitionSession(ctx, id, SessionStarted)
}

// CompleteSession moves a session from STARTED to COMPLETED.
func (s *Service) CompleteSession(ctx context.Context, id uuid.UUID) (*Session, error) {
	return s.transitionSession(ctx, id, SessionCompleted)
}

func (s *Service) transitionSession(ctx context.Context, id uuid.UUID, to string) (*Session, error) {
	if err := s.locks.Acquire(ctx, id, s.lockWait); err != nil {
		return nil, err
	}
	defer s.locks.Release(id)

	var sess *Session
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		sess, err = s.sessions.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !CanTransition(sess.Status, to) {
			return ErrInvalidTransition
		}
		if err := s.sessions.UpdateStatus(ctx, id, to); err != nil {
			return err
		}
		sess.Status = to
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// CancelSession cancels a SCHEDULED or STARTED session. Every BOOKED
// appointment on it flips to CANCELLED and booked_count drops to zero, all in
// one transaction. Affected patients are notified after commit.
func (s *Service) CancelSession(ctx context.Context, id uuid.UUID) (*Session, error) {
	if err := s.locks.Acquire(ctx, id, s.lockWait); err != nil {
		return nil, err
	}

	var (
		sess      *Session
		cancelled []*Appointment
	)
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		sess, err = s.sessions.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !CanTransition(sess.Status, SessionCancelled) {
			return ErrInvalidTransition
		}
		cancelled, err = s.appointments.ListBookedBySession(ctx, id)
		if err != nil {
			return err
		}
		if _, err := s.appointments.CancelAllBooked(ctx, id); err != nil {
			return err
		}
		if err := s.sessions.ResetBooked(ctx, id); err != nil {
			return err
		}
		if err := s.sessions.UpdateStatus(ctx, id, SessionCancelled); err != nil {
			return err
		}
		sess.Status = SessionCancelled
		sess.BookedCount = 0
		return nil
	})
	// The lock covers only the transaction; notification must not hold it.
	s.locks.Release(id)
	if err != nil {
		return nil, err
	}

	if s.notifier != nil && len(cancelled) > 0 {
		s.notifier.SessionCancelled(ctx, sess, cancelled)
	}
	return sess, nil
}

// -- Booking Engine --

// Book places an appointment for the patient on the session. The capacity
// check and the booked_count increment happen atomically: concurrent callers
// racing for the last slot see exactly one success.
func (s *Service) Book(ctx context.Context, sessionID, patientID uuid.UUID) (*Appointment, error) {
	if patientID == uuid.Nil {
		return nil, ErrNotAuthorized
	}
	if err := s.locks.Acquire(ctx, sessionID, s.lockWait); err != nil {
		return nil, err
	}

	var (
		sess *Session
		appt *Appointment
	)
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		sess, err = s.sessions.GetForUpdate(ctx, sessionID)
		if err != nil {
			return err
		}
		if sess.Status != SessionScheduled {
			return ErrSessionNotBookable
		}
		if sess.EndTime.Before(s.now()) {
			return ErrSessionInPast
		}
		active, err := s.appointments.CountBooked(ctx, sessionID, patientID)
		if err != nil {
			return err
		}
		if active > 0 {
			return ErrDuplicateBooking
		}
		ok, err := s.sessions.IncrementBooked(ctx, sessionID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrCapacityExceeded
		}
		sess.BookedCount++

		appt = &Appointment{
			SessionID: sessionID,
			PatientID: patientID,
			Status:    AppointmentBooked,
			BookedAt:  s.now().UTC(),
		}
		return s.appointments.Create(ctx, appt)
	})
	s.locks.Release(sessionID)
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.AppointmentBooked(ctx, sess, appt)
	}
	return appt, nil
}

// CancelAppointment cancels a BOOKED appointment and releases its slot. The
// actor must be the owning patient or carry the permission flag (staff roles).
func (s *Service) CancelAppointment(ctx context.Context, id uuid.UUID, actorID string, permitted bool) (*Appointment, error) {
	appt, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !permitted && appt.PatientID.String() != actorID {
		return nil, ErrNotAuthorized
	}

	sessionID := appt.SessionID
	if err := s.locks.Acquire(ctx, sessionID, s.lockWait); err != nil {
		return nil, err
	}

	var sess *Session
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		// Re-read under the lock; the appointment may have changed between
		// the authorization check and here.
		appt, err = s.appointments.GetByID(ctx, id)
		if err != nil {
			return err
		}
		switch appt.Status {
		case AppointmentCancelled:
			return ErrAlreadyCancelled
		case AppointmentCompleted:
			return ErrAlreadyCompleted
		}
		sess, err = s.sessions.GetForUpdate(ctx, appt.SessionID)
		if err != nil {
			return err
		}
		if err := s.appointments.UpdateStatus(ctx, id, AppointmentCancelled); err != nil {
			return err
		}
		appt.Status = AppointmentCancelled
		if err := s.sessions.DecrementBooked(ctx, appt.SessionID); err != nil {
			return err
		}
		if sess.BookedCount > 0 {
			sess.BookedCount--
		}
		return nil
	})
	s.locks.Release(sessionID)
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.AppointmentCancelled(ctx, sess, appt)
	}
	return appt, nil
}

// MarkCompleted marks a BOOKED appointment COMPLETED. The session must have
// started; booked_count is not changed, the visit consumed its slot.
func (s *Service) MarkCompleted(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.locks.Acquire(ctx, appt.SessionID, s.lockWait); err != nil {
		return nil, err
	}
	defer s.locks.Release(appt.SessionID)

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		appt, err = s.appointments.GetByID(ctx, id)
		if err != nil {
			return err
		}
		switch appt.Status {
		case AppointmentCancelled:
			return ErrAlreadyCancelled
		case AppointmentCompleted:
			return ErrAlreadyCompleted
		}
		sess, err := s.sessions.GetForUpdate(ctx, appt.SessionID)
		if err != nil {
			return err
		}
		if sess.Status != SessionStarted && sess.Status != SessionCompleted {
			return ErrInvalidTransition
		}
		if err := s.appointments.UpdateStatus(ctx, id, AppointmentCompleted); err != nil {
			return err
		}
		appt.Status = AppointmentCompleted
		return nil
	})
	if err != nil {
		return nil, err
	}
	return appt, nil
}

// -- Ledger --

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.appointments.GetByID(ctx, id)
}

func (s *Service) ListAppointmentsBySession(ctx context.Context, sessionID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return s.appointments.ListBySession(ctx, sessionID, limit, offset)
}

func (s *Service) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return s.appointments.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) ListAppointmentsByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return s.appointments.ListByDoctor(ctx, doctorID, limit, offset)
}
