package prescription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/auth"
)

func TestHTTPError_Mapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{ErrRecordNotFound, http.StatusNotFound},
		{fmt.Errorf("no items: %w", ErrInvalidRecord), http.StatusBadRequest},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		he, ok := httpError(tc.err).(*echo.HTTPError)
		if !ok || he.Code != tc.want {
			t.Errorf("httpError(%v) = %v, want %d", tc.err, he, tc.want)
		}
	}
}

func doctorRequest(method, path, body string, doctorID uuid.UUID) (*http.Request, *httptest.ResponseRecorder) {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	ctx := context.WithValue(req.Context(), auth.UserIDKey, doctorID.String())
	ctx = context.WithValue(ctx, auth.UserRolesKey, []string{"doctor"})
	return req.WithContext(ctx), httptest.NewRecorder()
}

func TestHandler_Create(t *testing.T) {
	svc, _ := newTestService()
	h := NewHandler(svc)
	e := echo.New()
	doctorID := uuid.New()

	body := fmt.Sprintf(`{
		"appointment_id": %q,
		"patient_id": %q,
		"notes": "viral fever",
		"items": [{"name":"Paracetamol","dosage":"500mg","frequency":"3x daily","duration":"5 days"}]
	}`, uuid.New(), uuid.New())

	req, rec := doctorRequest(http.MethodPost, "/api/v1/prescriptions", body, doctorID)
	c := e.NewContext(req, rec)
	if err := h.Create(c); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}

	var got Record
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.DoctorID != doctorID {
		t.Errorf("doctor_id = %s, want token subject %s", got.DoctorID, doctorID)
	}
	if len(got.Items) != 1 || got.Items[0].Name != "Paracetamol" {
		t.Errorf("items = %+v", got.Items)
	}
}

func TestHandler_Create_NoItems(t *testing.T) {
	svc, _ := newTestService()
	h := NewHandler(svc)
	e := echo.New()

	body := fmt.Sprintf(`{"appointment_id":%q,"patient_id":%q,"notes":"x","items":[]}`, uuid.New(), uuid.New())
	req, rec := doctorRequest(http.MethodPost, "/api/v1/prescriptions", body, uuid.New())
	c := e.NewContext(req, rec)

	err := h.Create(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Errorf("err = %v, want 400", err)
	}
}

func TestHandler_Get_NotFound(t *testing.T) {
	svc, _ := newTestService()
	h := NewHandler(svc)
	e := echo.New()

	req, rec := doctorRequest(http.MethodGet, "/", "", uuid.New())
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	err := h.Get(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Errorf("err = %v, want 404", err)
	}
}

func TestHandler_List_ByAppointment(t *testing.T) {
	svc, _ := newTestService()
	h := NewHandler(svc)
	e := echo.New()
	appointmentID := uuid.New()

	recd := validRecord()
	recd.AppointmentID = appointmentID
	if err := svc.Create(context.Background(), recd); err != nil {
		t.Fatalf("Create: %v", err)
	}

	req, rec := doctorRequest(http.MethodGet, "/api/v1/prescriptions?appointment_id="+appointmentID.String(), "", uuid.New())
	c := e.NewContext(req, rec)
	if err := h.List(c); err != nil {
		t.Fatalf("List: %v", err)
	}

	var records []*Record
	if err := json.Unmarshal(rec.Body.Bytes(), &records); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("records = %d, want 1", len(records))
	}
}

func TestHandler_List_DefaultsToCaller(t *testing.T) {
	svc, _ := newTestService()
	h := NewHandler(svc)
	e := echo.New()
	patient := uuid.New()

	recd := validRecord()
	recd.PatientID = patient
	if err := svc.Create(context.Background(), recd); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := svc.Create(context.Background(), validRecord()); err != nil {
		t.Fatalf("Create: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/prescriptions", nil)
	ctx := context.WithValue(req.Context(), auth.UserIDKey, patient.String())
	ctx = context.WithValue(ctx, auth.UserRolesKey, []string{"patient"})
	rec := httptest.NewRecorder()
	c := e.NewContext(req.WithContext(ctx), rec)

	if err := h.List(c); err != nil {
		t.Fatalf("List: %v", err)
	}

	var resp struct {
		Total int `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 1 {
		t.Errorf("total = %d, want 1 (caller's own history)", resp.Total)
	}
}
