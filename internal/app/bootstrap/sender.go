package bootstrap

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	appconfig "github.com/wolfman30/clinic-decision-core/internal/config"
	"github.com/wolfman30/clinic-decision-core/internal/notify"
	"github.com/wolfman30/clinic-decision-core/pkg/logging"
)

// BuildEmailSender picks the email provider named by EMAIL_PROVIDER. A
// provider missing its credentials degrades to the stub sender.
func BuildEmailSender(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) notify.EmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	switch cfg.EmailProvider {
	case "ses":
		if cfg.SESFromEmail != "" {
			return notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
				FromEmail: cfg.SESFromEmail,
				FromName:  cfg.SendGridFromName,
			}, logger)
		}
		logger.Warn("EMAIL_PROVIDER=ses without SES_FROM_EMAIL; email reminders will be logged only")
	case "sendgrid":
		if sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger); sender != nil {
			return sender
		}
		logger.Warn("EMAIL_PROVIDER=sendgrid without SENDGRID_API_KEY; email reminders will be logged only")
	}
	return notify.NewStubEmailSender(logger)
}

// BuildSender wires the channel router used by the dispatcher.
func BuildSender(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (*notify.Router, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	var sms notify.SMSPublisher
	if cfg.SMSQueueURL != "" {
		publisher, err := notify.NewSQSPublisher(sqs.NewFromConfig(awsCfg), cfg.SMSQueueURL)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: sms publisher: %w", err)
		}
		sms = publisher
	} else if logger != nil {
		logger.Warn("SMS_QUEUE_URL not set; sms reminders will fail until configured")
	}
	return notify.NewRouter(sms, BuildEmailSender(cfg, awsCfg, logger), logger), nil
}
