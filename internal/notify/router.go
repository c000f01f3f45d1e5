package notify

import (
	"context"
	"fmt"

	"github.com/wolfman30/clinic-decision-core/internal/comms"
	"github.com/wolfman30/clinic-decision-core/pkg/logging"
)

// SMSPublisher hands an SMS to the delivery service.
type SMSPublisher interface {
	Publish(ctx context.Context, msg SMSMessage) error
}

// Router delivers scheduled communications over their channel.
type Router struct {
	sms     SMSPublisher
	email   EmailSender
	subject string
	logger  *logging.Logger
}

// NewRouter creates a router. Either channel may be nil; sends on a missing
// channel fail and are retried by the dispatcher.
func NewRouter(sms SMSPublisher, email EmailSender, logger *logging.Logger) *Router {
	if logger == nil {
		logger = logging.Default()
	}
	return &Router{sms: sms, email: email, subject: "Appointment reminder", logger: logger}
}

// WithSubject overrides the e-mail subject line.
func (r *Router) WithSubject(subject string) *Router {
	if subject != "" {
		r.subject = subject
	}
	return r
}

func (r *Router) Send(ctx context.Context, c comms.Communication) error {
	switch c.Channel {
	case comms.ChannelSMS:
		if r.sms == nil {
			return fmt.Errorf("notify: sms channel not configured")
		}
		return r.sms.Publish(ctx, SMSMessage{
			CommunicationID: c.ID.String(),
			OrgID:           c.OrgID.String(),
			To:              c.Recipient,
			Body:            c.Message,
		})
	case comms.ChannelEmail:
		if r.email == nil {
			return fmt.Errorf("notify: email channel not configured")
		}
		return r.email.Send(ctx, EmailMessage{To: c.Recipient, Subject: r.subject, Body: c.Message})
	}
	return fmt.Errorf("notify: unsupported channel %q", c.Channel)
}

var _ comms.Sender = (*Router)(nil)
