package notification

import (
	"fmt"
	"strings"
	"sync"
)

// Template is a message skeleton with {{key}} placeholders.
type Template struct {
	ID      string
	Channel Channel
	Subject string
	Body    string
}

// clinicTemplates are the messages the scheduling and prescription flows send.
var clinicTemplates = []Template{
	{
		ID:      "booking-confirmed",
		Channel: ChannelEmail,
		Subject: "Appointment Confirmed for {{patient_name}}",
		Body:    "Dear {{patient_name}}, your appointment with Dr. {{doctor_name}} on {{date}} from {{start_time}} to {{end_time}} is confirmed.",
	},
	{
		ID:      "appointment-cancelled",
		Channel: ChannelEmail,
		Subject: "Appointment Cancelled",
		Body:    "Dear {{patient_name}}, your appointment with Dr. {{doctor_name}} on {{date}} has been cancelled.",
	},
	{
		ID:      "session-cancelled",
		Channel: ChannelEmail,
		Subject: "Session Cancelled by Clinic",
		Body:    "Dear {{patient_name}}, the session with Dr. {{doctor_name}} on {{date}} has been cancelled by the clinic. Your appointment was cancelled with it.",
	},
	{
		ID:      "appointment-reminder",
		Channel: ChannelEmail,
		Subject: "Appointment Reminder for {{patient_name}}",
		Body:    "Dear {{patient_name}}, this is a reminder of your appointment on {{date}} at {{start_time}} with Dr. {{doctor_name}}.",
	},
	{
		ID:      "prescription-issued",
		Channel: ChannelEmail,
		Subject: "Your Prescription Is Ready",
		Body:    "Dear {{patient_name}}, Dr. {{doctor_name}} has issued a prescription for you: {{medications}}.",
	},
}

// TemplateSet holds the registered message templates.
type TemplateSet struct {
	mu  sync.RWMutex
	set map[string]Template
}

// NewTemplateSet returns a set preloaded with the clinic templates.
func NewTemplateSet() *TemplateSet {
	ts := &TemplateSet{set: make(map[string]Template, len(clinicTemplates))}
	for _, t := range clinicTemplates {
		ts.set[t.ID] = t
	}
	return ts
}

// Register adds or replaces a template.
func (ts *TemplateSet) Register(t Template) {
	ts.mu.Lock()
	ts.set[t.ID] = t
	ts.mu.Unlock()
}

// Render substitutes data into the template identified by id. Placeholders
// without a matching key are left in place.
func (ts *TemplateSet) Render(id string, data map[string]string) (subject, body string, ch Channel, err error) {
	ts.mu.RLock()
	t, ok := ts.set[id]
	ts.mu.RUnlock()
	if !ok {
		return "", "", "", fmt.Errorf("template %q not found", id)
	}

	subject, body = t.Subject, t.Body
	for k, v := range data {
		ph := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, ph, v)
		body = strings.ReplaceAll(body, ph, v)
	}
	return subject, body, t.Channel, nil
}
