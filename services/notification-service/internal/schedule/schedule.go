package schedule

import (
	"fmt"
	"time"

	"github.com/olnovikova/slotline/services/notification-service/internal/model"
)

// ReminderHour is the local wall-clock hour reminders are pinned to on the
// day before the booking.
const ReminderHour = 18

// DueAt computes when a notification becomes dispatchable. Non-reminder
// templates are due immediately. Reminders land at 18:00 business-local on
// the day before the booking; if that moment has already passed the
// reminder is due now, never later than the booking start itself.
func DueAt(tpl model.Template, bookingStart time.Time, loc *time.Location, now time.Time) time.Time {
	if tpl != model.TemplateReminder {
		return now
	}

	local := bookingStart.In(loc)
	eve := local.AddDate(0, 0, -1)
	due := time.Date(eve.Year(), eve.Month(), eve.Day(), ReminderHour, 0, 0, 0, loc).UTC()

	if due.Before(now) {
		due = now
	}
	if due.After(bookingStart) {
		due = bookingStart
	}
	return due
}

// MessageContext carries the names and times rendered into message bodies.
type MessageContext struct {
	BusinessName string
	ServiceTitle string
	StaffName    string
	ClientName   string
	Start        time.Time
	Location     *time.Location
}

const messageTimeLayout = "02.01.2006 15:04"

// Render produces the default message body for a template. Callers may
// override it with a custom message.
func Render(tpl model.Template, mc MessageContext) string {
	loc := mc.Location
	if loc == nil {
		loc = time.UTC
	}
	when := mc.Start.In(loc).Format(messageTimeLayout)

	switch tpl {
	case model.TemplateCreated:
		return fmt.Sprintf("%s: your booking for %s on %s has been received and is awaiting confirmation.", mc.BusinessName, mc.ServiceTitle, when)
	case model.TemplateConfirmed:
		return fmt.Sprintf("%s: your booking for %s on %s is confirmed. See you there!", mc.BusinessName, mc.ServiceTitle, when)
	case model.TemplateCancelled:
		return fmt.Sprintf("%s: your booking for %s on %s has been cancelled.", mc.BusinessName, mc.ServiceTitle, when)
	case model.TemplateReminder:
		if mc.StaffName != "" {
			return fmt.Sprintf("%s: reminder about your booking for %s with %s on %s.", mc.BusinessName, mc.ServiceTitle, mc.StaffName, when)
		}
		return fmt.Sprintf("%s: reminder about your booking for %s on %s.", mc.BusinessName, mc.ServiceTitle, when)
	default:
		return fmt.Sprintf("%s: update about your booking on %s.", mc.BusinessName, when)
	}
}
