package worker

import (
	"fmt"
	"strings"

	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/domain"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/sender"
)

// RenderContent builds the channel-appropriate subject and body from the
// payload snapshot captured at scheduling time
func RenderContent(msg *domain.DeliveryMessage) sender.Content {
	p := msg.Payload
	when := p.StartsAt.Format("Monday, January 2 at 3:04 PM")

	var lead string
	switch msg.Type {
	case domain.ReminderType24Hour:
		lead = "You have an appointment tomorrow"
	case domain.ReminderType2Hour, domain.ReminderType1Hour:
		lead = "Your appointment is coming up soon"
	default:
		lead = "This is a reminder about your upcoming appointment"
	}

	doctor := p.DoctorName
	if doctor == "" {
		doctor = "your doctor"
	}

	if msg.Channel == domain.ChannelSMS {
		// SMS stays inside one segment where possible
		body := fmt.Sprintf("Reminder: appointment with %s on %s.", doctor, when)
		if p.Location != "" {
			body = fmt.Sprintf("Reminder: appointment with %s on %s at %s.", doctor, when, p.Location)
		}
		return sender.Content{Body: body}
	}

	var b strings.Builder
	if p.PatientName != "" {
		fmt.Fprintf(&b, "Hello %s,\n\n", p.PatientName)
	}
	fmt.Fprintf(&b, "%s with %s on %s.\n", lead, doctor, when)
	if p.Location != "" {
		fmt.Fprintf(&b, "Location: %s\n", p.Location)
	}
	if p.Notes != "" {
		fmt.Fprintf(&b, "\n%s\n", p.Notes)
	}
	b.WriteString("\nIf you cannot make it, please contact the clinic to reschedule.\n")

	return sender.Content{
		Subject: fmt.Sprintf("Appointment Reminder - %s", p.StartsAt.Format("Jan 2, 3:04 PM")),
		Body:    b.String(),
	}
}
