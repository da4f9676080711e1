package prescription

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
)

type mockRepo struct {
	records map[uuid.UUID]*Record
}

func newMockRepo() *mockRepo {
	return &mockRepo{records: make(map[uuid.UUID]*Record)}
}

func (m *mockRepo) Create(_ context.Context, rec *Record) error {
	rec.ID = uuid.New()
	rec.CreatedAt = time.Now()
	for i, item := range rec.Items {
		item.ID = uuid.New()
		item.RecordID = rec.ID
		item.Position = i
	}
	cp := *rec
	m.records[rec.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Record, error) {
	rec, ok := m.records[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *mockRepo) ListByAppointment(_ context.Context, appointmentID uuid.UUID) ([]*Record, error) {
	var result []*Record
	for _, rec := range m.records {
		if rec.AppointmentID == appointmentID {
			cp := *rec
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Record, int, error) {
	var result []*Record
	for _, rec := range m.records {
		if rec.PatientID == patientID {
			cp := *rec
			result = append(result, &cp)
		}
	}
	return result, len(result), nil
}

type mockTxRunner struct{}

func (mockTxRunner) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type mockCompleter struct {
	completed []uuid.UUID
	err       error
}

func (m *mockCompleter) Complete(_ context.Context, appointmentID uuid.UUID) error {
	if m.err != nil {
		return m.err
	}
	m.completed = append(m.completed, appointmentID)
	return nil
}

func newTestService() (*Service, *mockRepo) {
	repo := newMockRepo()
	return NewService(repo, mockTxRunner{}), repo
}

func validRecord() *Record {
	return &Record{
		AppointmentID: uuid.New(),
		PatientID:     uuid.New(),
		DoctorID:      uuid.New(),
		Notes:         "viral fever, rest advised",
		Items: []*Item{
			{Name: "Paracetamol", Dosage: "500mg", Frequency: "3x daily", Duration: "5 days"},
			{Name: "Cetirizine", Dosage: "10mg", Frequency: "1x daily", Duration: "5 days", Instructions: "at night"},
		},
	}
}

func TestCreate(t *testing.T) {
	svc, _ := newTestService()
	rec := validRecord()

	if err := svc.Create(context.Background(), rec); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.ID == uuid.Nil {
		t.Error("expected id to be assigned")
	}
	for i, item := range rec.Items {
		if item.Position != i {
			t.Errorf("item %d: position = %d", i, item.Position)
		}
		if item.RecordID != rec.ID {
			t.Errorf("item %d: record_id not set", i)
		}
	}
}

func TestCreate_Validation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*Record)
	}{
		{"missing appointment", func(r *Record) { r.AppointmentID = uuid.Nil }},
		{"missing patient", func(r *Record) { r.PatientID = uuid.Nil }},
		{"missing doctor", func(r *Record) { r.DoctorID = uuid.Nil }},
		{"no items", func(r *Record) { r.Items = nil }},
		{"item without name", func(r *Record) { r.Items[0].Name = "" }},
		{"item without dosage", func(r *Record) { r.Items[1].Dosage = "" }},
	}
	for _, tc := range cases {
		rec := validRecord()
		tc.mutate(rec)
		if err := svc.Create(ctx, rec); !errors.Is(err, ErrInvalidRecord) {
			t.Errorf("%s: err = %v, want ErrInvalidRecord", tc.name, err)
		}
	}
}

func TestCreate_AppendOnly(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	appointmentID := uuid.New()

	first := validRecord()
	first.AppointmentID = appointmentID
	if err := svc.Create(ctx, first); err != nil {
		t.Fatalf("first Create: %v", err)
	}

	second := validRecord()
	second.AppointmentID = appointmentID
	second.Notes = "follow-up, dosage adjusted"
	if err := svc.Create(ctx, second); err != nil {
		t.Fatalf("second Create: %v", err)
	}

	records, err := svc.ListByAppointment(ctx, appointmentID)
	if err != nil {
		t.Fatalf("ListByAppointment: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2 (history preserved)", len(records))
	}
	if records[0].ID != first.ID {
		t.Error("records should be ordered oldest first")
	}
}

func TestCreate_CompleterDisabledByDefault(t *testing.T) {
	svc, _ := newTestService()
	if err := svc.Create(context.Background(), validRecord()); err != nil {
		t.Fatalf("Create: %v", err)
	}
	// no completer configured; nothing to assert beyond success
}

func TestCreate_CompleterInvoked(t *testing.T) {
	svc, _ := newTestService()
	completer := &mockCompleter{}
	svc.SetCompleter(completer)

	rec := validRecord()
	if err := svc.Create(context.Background(), rec); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(completer.completed) != 1 || completer.completed[0] != rec.AppointmentID {
		t.Errorf("completed = %v, want [%s]", completer.completed, rec.AppointmentID)
	}
}

func TestCreate_CompleterFailureSurfaced(t *testing.T) {
	svc, repo := newTestService()
	completer := &mockCompleter{err: fmt.Errorf("session not started")}
	svc.SetCompleter(completer)

	rec := validRecord()
	err := svc.Create(context.Background(), rec)
	if err == nil {
		t.Fatal("expected error from completer")
	}
	// the record itself is still saved
	if _, getErr := repo.GetByID(context.Background(), rec.ID); getErr != nil {
		t.Errorf("record should be persisted despite completer failure: %v", getErr)
	}
}

func TestGet_NotFound(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.Get(context.Background(), uuid.New()); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("err = %v, want ErrRecordNotFound", err)
	}
}

func TestListByPatient(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	patient := uuid.New()

	for i := 0; i < 3; i++ {
		rec := validRecord()
		rec.PatientID = patient
		if err := svc.Create(ctx, rec); err != nil {
			t.Fatalf("Create %d: %v", i, err)
		}
	}
	if err := svc.Create(ctx, validRecord()); err != nil {
		t.Fatalf("Create: %v", err)
	}

	_, total, err := svc.ListByPatient(ctx, patient, 50, 0)
	if err != nil {
		t.Fatalf("ListByPatient: %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
}
