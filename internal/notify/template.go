// Package notify renders and delivers new-slot notifications.
package notify

import (
	"strings"

	"github.com/example/luxmed-sniper/internal/luxmed"
)

// Fields lists the placeholder values a template can reference for one
// appointment. Adding an Appointment field here makes it available as a
// {Name} placeholder.
func Fields(a luxmed.Appointment) map[string]string {
	return map[string]string{
		"AppointmentDate":  a.FormattedDate,
		"ClinicPublicName": a.ClinicName,
		"DoctorName":       a.DoctorName,
	}
}

// Render substitutes {Name} placeholders. Unknown placeholders are left
// intact, so a template typo shows up verbatim in the delivered message
// instead of dropping the notification.
func Render(template string, a luxmed.Appointment) string {
	out := template
	for name, val := range Fields(a) {
		out = strings.ReplaceAll(out, "{"+name+"}", val)
	}
	return out
}
