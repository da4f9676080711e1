package scheduling

import "errors"

var (
	// Validation.
	ErrDoctorRequired   = errors.New("doctor_id is required")
	ErrInvalidCapacity  = errors.New("capacity must be at least 1")
	ErrInvalidTimeRange = errors.New("start time must not be after end time")
	ErrSessionInPast    = errors.New("session is in the past")

	// Conflict.
	ErrCapacityExceeded   = errors.New("session is fully booked")
	ErrDuplicateBooking   = errors.New("patient already has a booking on this session")
	ErrInvalidTransition  = errors.New("invalid session status transition")
	ErrAlreadyCancelled   = errors.New("appointment is already cancelled")
	ErrAlreadyCompleted   = errors.New("appointment is already completed")
	ErrSessionNotBookable = errors.New("session is not open for booking")

	// Concurrency.
	ErrBusy = errors.New("session is busy, retry later")

	// Not found.
	ErrSessionNotFound     = errors.New("session not found")
	ErrAppointmentNotFound = errors.New("appointment not found")

	// Authorization.
	ErrNotAuthorized = errors.New("actor is not allowed to modify this appointment")
)
