package luxmed

import (
	"fmt"
	"time"
)

// AnyID matches any facility or doctor in a search (the portal's -1 sentinel).
const AnyID = -1

// Appointment is one bookable slot returned by the portal search.
type Appointment struct {
	Start         time.Time
	FormattedDate string
	DoctorName    string
	ClinicName    string
}

// ID derives a stable identifier for the slot. Two appointments with equal
// IDs are the same slot even if other response fields drift between polls.
func (a Appointment) ID() string {
	return fmt.Sprintf("%s|%s|%s", a.FormattedDate, a.DoctorName, a.ClinicName)
}

// Session is an authenticated portal session. The client never mutates a
// Session in place; a refreshed one replaces the old one in the caller.
type Session struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Expiry       time.Time
}

func (s Session) Valid() bool { return s.AccessToken != "" }

func (s Session) authorization() string {
	tt := s.TokenType
	if tt == "" {
		tt = "Bearer"
	}
	return tt + " " + s.AccessToken
}
