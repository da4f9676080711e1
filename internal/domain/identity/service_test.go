package identity

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
)

type mockDoctorRepo struct {
	doctors map[uuid.UUID]*Doctor
}

func newMockDoctorRepo() *mockDoctorRepo {
	return &mockDoctorRepo{doctors: make(map[uuid.UUID]*Doctor)}
}

func (m *mockDoctorRepo) Create(_ context.Context, d *Doctor) error {
	d.ID = uuid.New()
	d.CreatedAt = time.Now()
	d.UpdatedAt = time.Now()
	cp := *d
	m.doctors[d.ID] = &cp
	return nil
}

func (m *mockDoctorRepo) GetByID(_ context.Context, id uuid.UUID) (*Doctor, error) {
	d, ok := m.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *mockDoctorRepo) Update(_ context.Context, d *Doctor) error {
	if _, ok := m.doctors[d.ID]; !ok {
		return ErrDoctorNotFound
	}
	cp := *d
	m.doctors[d.ID] = &cp
	return nil
}

func (m *mockDoctorRepo) Deactivate(_ context.Context, id uuid.UUID) error {
	d, ok := m.doctors[id]
	if !ok {
		return ErrDoctorNotFound
	}
	d.Active = false
	return nil
}

func (m *mockDoctorRepo) List(_ context.Context, specialty string, limit, offset int) ([]*Doctor, int, error) {
	var result []*Doctor
	for _, d := range m.doctors {
		if d.Active && (specialty == "" || d.Specialty == specialty) {
			cp := *d
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, len(result), nil
}

type mockPatientRepo struct {
	patients map[uuid.UUID]*Patient
}

func newMockPatientRepo() *mockPatientRepo {
	return &mockPatientRepo{patients: make(map[uuid.UUID]*Patient)}
}

func (m *mockPatientRepo) Create(_ context.Context, p *Patient) error {
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	p.UpdatedAt = time.Now()
	cp := *p
	m.patients[p.ID] = &cp
	return nil
}

func (m *mockPatientRepo) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockPatientRepo) Update(_ context.Context, p *Patient) error {
	if _, ok := m.patients[p.ID]; !ok {
		return ErrPatientNotFound
	}
	cp := *p
	m.patients[p.ID] = &cp
	return nil
}

func (m *mockPatientRepo) Deactivate(_ context.Context, id uuid.UUID) error {
	p, ok := m.patients[id]
	if !ok {
		return ErrPatientNotFound
	}
	p.Active = false
	return nil
}

func (m *mockPatientRepo) List(_ context.Context, limit, offset int) ([]*Patient, int, error) {
	var result []*Patient
	for _, p := range m.patients {
		if p.Active {
			cp := *p
			result = append(result, &cp)
		}
	}
	return result, len(result), nil
}

func newTestService() *Service {
	return NewService(newMockDoctorRepo(), newMockPatientRepo())
}

func strPtr(s string) *string { return &s }

func TestCreateDoctor(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	d := &Doctor{Name: "Dr. Asha Rao", Specialty: "cardiology", Phone: strPtr("+1-555-0101")}
	if err := svc.CreateDoctor(ctx, d); err != nil {
		t.Fatalf("CreateDoctor: %v", err)
	}
	if d.ID == uuid.Nil {
		t.Error("expected id to be assigned")
	}
	if !d.Active {
		t.Error("new doctor should be active")
	}

	got, err := svc.GetDoctor(ctx, d.ID)
	if err != nil {
		t.Fatalf("GetDoctor: %v", err)
	}
	if got.Name != "Dr. Asha Rao" {
		t.Errorf("name = %q", got.Name)
	}
}

func TestCreateDoctor_Validation(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	if err := svc.CreateDoctor(ctx, &Doctor{Specialty: "cardiology"}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("missing name: err = %v, want ErrInvalidInput", err)
	}
	if err := svc.CreateDoctor(ctx, &Doctor{Name: "Dr. Rao"}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("missing specialty: err = %v, want ErrInvalidInput", err)
	}
}

func TestGetDoctor_NotFound(t *testing.T) {
	svc := newTestService()
	if _, err := svc.GetDoctor(context.Background(), uuid.New()); !errors.Is(err, ErrDoctorNotFound) {
		t.Errorf("err = %v, want ErrDoctorNotFound", err)
	}
}

func TestListDoctors_SpecialtyFilter(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	for _, spec := range []string{"cardiology", "cardiology", "dermatology"} {
		d := &Doctor{Name: "Dr. " + uuid.NewString()[:8], Specialty: spec}
		if err := svc.CreateDoctor(ctx, d); err != nil {
			t.Fatalf("CreateDoctor: %v", err)
		}
	}

	cardio, total, err := svc.ListDoctors(ctx, "cardiology", 50, 0)
	if err != nil {
		t.Fatalf("ListDoctors: %v", err)
	}
	if total != 2 || len(cardio) != 2 {
		t.Errorf("cardiology doctors = %d, want 2", len(cardio))
	}

	all, total, err := svc.ListDoctors(ctx, "", 50, 0)
	if err != nil {
		t.Fatalf("ListDoctors: %v", err)
	}
	if total != 3 || len(all) != 3 {
		t.Errorf("all doctors = %d, want 3", len(all))
	}
}

func TestDeactivateDoctor_HiddenFromList(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	d := &Doctor{Name: "Dr. Rao", Specialty: "cardiology"}
	if err := svc.CreateDoctor(ctx, d); err != nil {
		t.Fatalf("CreateDoctor: %v", err)
	}
	if err := svc.DeactivateDoctor(ctx, d.ID); err != nil {
		t.Fatalf("DeactivateDoctor: %v", err)
	}

	_, total, err := svc.ListDoctors(ctx, "", 50, 0)
	if err != nil {
		t.Fatalf("ListDoctors: %v", err)
	}
	if total != 0 {
		t.Errorf("listed doctors = %d, want 0 after deactivation", total)
	}
}

func TestCreatePatient(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	birth := time.Date(1990, 4, 12, 0, 0, 0, 0, time.UTC)
	p := &Patient{Name: "Ravi Kumar", BirthDate: &birth, Email: strPtr("ravi@example.com")}
	if err := svc.CreatePatient(ctx, p); err != nil {
		t.Fatalf("CreatePatient: %v", err)
	}
	if !p.Active {
		t.Error("new patient should be active")
	}

	got, err := svc.GetPatient(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetPatient: %v", err)
	}
	if got.BirthDate == nil || !got.BirthDate.Equal(birth) {
		t.Errorf("birth_date = %v, want %v", got.BirthDate, birth)
	}
}

func TestCreatePatient_Validation(t *testing.T) {
	svc := newTestService()
	if err := svc.CreatePatient(context.Background(), &Patient{}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestUpdatePatient_NotFound(t *testing.T) {
	svc := newTestService()
	p := &Patient{ID: uuid.New(), Name: "Ravi Kumar"}
	if err := svc.UpdatePatient(context.Background(), p); !errors.Is(err, ErrPatientNotFound) {
		t.Errorf("err = %v, want ErrPatientNotFound", err)
	}
}
