package notification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Dispatcher sends messages through the configured channels and records every
// attempt in the outbox.
type Dispatcher struct {
	email     EmailSender
	sms       SMSSender
	templates *TemplateSet

	mu     sync.RWMutex
	outbox map[string]*Message
}

func NewDispatcher(email EmailSender, sms SMSSender, templates *TemplateSet) *Dispatcher {
	return &Dispatcher{
		email:     email,
		sms:       sms,
		templates: templates,
		outbox:    make(map[string]*Message),
	}
}

func (d *Dispatcher) deliver(ctx context.Context, m *Message) error {
	switch m.Channel {
	case ChannelEmail:
		return d.email.SendEmail(ctx, m.Recipient, m.Subject, m.Body)
	case ChannelSMS:
		return d.sms.SendSMS(ctx, m.Recipient, m.Body)
	default:
		return fmt.Errorf("unknown channel %q", m.Channel)
	}
}

// Send delivers the message and records the outcome in the outbox. A delivery
// failure is recorded on the message and returned.
func (d *Dispatcher) Send(ctx context.Context, m *Message) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	m.CreatedAt = time.Now().UTC()
	m.Status = StatusPending

	err := d.deliver(ctx, m)
	if err != nil {
		m.Status = StatusFailed
		m.Error = err.Error()
	} else {
		m.Status = StatusSent
		now := time.Now().UTC()
		m.SentAt = &now
	}

	d.mu.Lock()
	d.outbox[m.ID] = m
	d.mu.Unlock()
	return err
}

// SendTemplate renders the template and delivers the result. The message is
// returned even when delivery fails so the caller can log its id.
func (d *Dispatcher) SendTemplate(ctx context.Context, templateID string, data map[string]string, recipient string) (*Message, error) {
	subject, body, ch, err := d.templates.Render(templateID, data)
	if err != nil {
		return nil, err
	}

	m := &Message{
		Channel:    ch,
		Recipient:  recipient,
		Subject:    subject,
		Body:       body,
		TemplateID: templateID,
		Data:       data,
	}
	if err := d.Send(ctx, m); err != nil {
		return m, err
	}
	return m, nil
}

// Get returns a recorded message.
func (d *Dispatcher) Get(id string) (*Message, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	m, ok := d.outbox[id]
	if !ok {
		return nil, fmt.Errorf("message %q not found", id)
	}
	return m, nil
}

// ListByRecipient returns up to limit messages addressed to recipient.
func (d *Dispatcher) ListByRecipient(recipient string, limit int) []*Message {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []*Message
	for _, m := range d.outbox {
		if m.Recipient != recipient {
			continue
		}
		out = append(out, m)
		if len(out) == limit {
			break
		}
	}
	return out
}

// Retry re-delivers a failed message. Messages in any other status are
// rejected.
func (d *Dispatcher) Retry(ctx context.Context, id string) error {
	d.mu.RLock()
	m, ok := d.outbox[id]
	d.mu.RUnlock()
	if !ok {
		return fmt.Errorf("message %q not found", id)
	}
	if m.Status != StatusFailed {
		return fmt.Errorf("message %q is %s, only failed messages can be retried", id, m.Status)
	}

	err := d.deliver(ctx, m)
	d.mu.Lock()
	if err != nil {
		m.Status = StatusFailed
		m.Error = err.Error()
	} else {
		m.Status = StatusSent
		now := time.Now().UTC()
		m.SentAt = &now
		m.Error = ""
	}
	d.mu.Unlock()
	return err
}

// Stats counts outbox messages by status.
func (d *Dispatcher) Stats() map[string]int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]int)
	for _, m := range d.outbox {
		out[m.Status]++
	}
	return out
}
