package model

import (
	"fmt"
	"time"
)

// Channel is the delivery transport for a notification.
type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
	ChannelVK    Channel = "vk"
)

func ParseChannel(s string) (Channel, error) {
	switch Channel(s) {
	case ChannelSMS, ChannelEmail, ChannelVK:
		return Channel(s), nil
	}
	return "", fmt.Errorf("unknown channel %q", s)
}

// Template names the message kind. Reminders are scheduled ahead of the
// booking start; the rest are due as soon as they are created.
type Template string

const (
	TemplateCreated   Template = "created"
	TemplateConfirmed Template = "confirmed"
	TemplateCancelled Template = "cancelled"
	TemplateReminder  Template = "reminder"
)

func ParseTemplate(s string) (Template, error) {
	switch Template(s) {
	case TemplateCreated, TemplateConfirmed, TemplateCancelled, TemplateReminder:
		return Template(s), nil
	}
	return "", fmt.Errorf("unknown template %q", s)
}

type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

type Notification struct {
	ID            string
	BusinessID    string
	BookingID     string
	ClientID      string
	Channel       Channel
	Template      Template
	Message       string
	Status        Status
	ScheduledFor  time.Time
	SentAt        *time.Time
	FailureReason string
	CreatedAt     time.Time
}
