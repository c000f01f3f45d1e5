package comms

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/clinic-decision-core/internal/apperr"
)

// Status tracks the lifecycle of a scheduled communication.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusSent      Status = "SENT"
	StatusCancelled Status = "CANCELLED"
	StatusFailed    Status = "FAILED"
)

// Channel specifies how the communication is delivered.
type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
)

// ParseChannel validates a channel string. Empty defaults to SMS.
func ParseChannel(raw string) (Channel, error) {
	switch Channel(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ChannelSMS:
		return ChannelSMS, nil
	case ChannelEmail:
		return ChannelEmail, nil
	}
	return "", apperr.Validation("invalid channel %q", raw)
}

// Communication is one reminder or follow-up due at ScheduledAt.
type Communication struct {
	ID            uuid.UUID  `json:"id"`
	OrgID         uuid.UUID  `json:"org_id"`
	PatientID     uuid.UUID  `json:"patient_id"`
	AppointmentID *uuid.UUID `json:"appointment_id,omitempty"`
	Channel       Channel    `json:"channel"`
	Recipient     string     `json:"recipient"`
	Message       string     `json:"message"`
	ScheduledAt   time.Time  `json:"scheduled_at"`
	OffsetMinutes int        `json:"offset_minutes"`
	Status        Status     `json:"status"`
	Attempts      int        `json:"attempts"`
	LastError     string     `json:"last_error,omitempty"`
	SentAt        *time.Time `json:"sent_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// ScheduleRequest describes the reminders for one appointment.
type ScheduleRequest struct {
	OrgID           uuid.UUID
	PatientID       uuid.UUID
	AppointmentID   *uuid.UUID
	Channel         Channel
	Recipient       string
	Message         string
	AppointmentTime time.Time
	Offsets         []time.Duration
}

// Validate checks the request before any row is created.
func (r ScheduleRequest) Validate() error {
	if r.OrgID == uuid.Nil {
		return apperr.Validation("org_id is required")
	}
	if r.PatientID == uuid.Nil {
		return apperr.Validation("patient_id is required")
	}
	if r.AppointmentTime.IsZero() {
		return apperr.Validation("appointment_time is required")
	}
	if len(r.Offsets) == 0 {
		return apperr.Validation("at least one offset is required")
	}
	if _, err := ParseChannel(string(r.Channel)); err != nil {
		return err
	}
	return nil
}
