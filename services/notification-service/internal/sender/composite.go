package sender

import "context"

// Composite fans channel sends out to the configured per-channel senders.
// It satisfies dispatch.Sender.
type Composite struct {
	sms    SMSSender
	email  EmailSender
	social SocialSender
}

func NewComposite(sms SMSSender, email EmailSender, social SocialSender) *Composite {
	return &Composite{sms: sms, email: email, social: social}
}

func (c *Composite) SendSMS(ctx context.Context, to string, body string) error {
	return c.sms.Send(ctx, to, body)
}

func (c *Composite) SendEmail(ctx context.Context, to string, subject string, body string) error {
	return c.email.Send(ctx, to, subject, body)
}

func (c *Composite) SendSocial(ctx context.Context, userID string, body string) error {
	return c.social.Send(ctx, userID, body)
}
