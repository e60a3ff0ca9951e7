package documents

import (
	"time"

	ics "github.com/arran4/golang-ical"
)

// CalendarEvent describes one appointment as an iCalendar invite.
type CalendarEvent struct {
	UID            string
	Summary        string
	Description    string
	Location       string
	Start          time.Time
	Duration       time.Duration
	OrganizerName  string
	OrganizerEmail string
	AttendeeEmails []string
}

// CalendarInvite serializes e as a METHOD:REQUEST calendar with a single event.
func CalendarInvite(e CalendarEvent, now time.Time) []byte {
	if e.Duration <= 0 {
		e.Duration = 30 * time.Minute
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodRequest)
	cal.SetProductId("-//diagnostic-management//appointments//EN")

	ev := cal.AddEvent(e.UID)
	ev.SetCreatedTime(now)
	ev.SetDtStampTime(now)
	ev.SetModifiedAt(now)
	ev.SetStartAt(e.Start)
	ev.SetEndAt(e.Start.Add(e.Duration))
	ev.SetSummary(e.Summary)
	if e.Description != "" {
		ev.SetDescription(e.Description)
	}
	if e.Location != "" {
		ev.SetLocation(e.Location)
	}
	if e.OrganizerEmail != "" {
		ev.SetOrganizer("mailto:"+e.OrganizerEmail, ics.WithCN(e.OrganizerName))
	}
	for _, a := range e.AttendeeEmails {
		if a == "" {
			continue
		}
		ev.AddAttendee("mailto:"+a,
			ics.CalendarUserTypeIndividual,
			ics.ParticipationStatusNeedsAction,
			ics.ParticipationRoleReqParticipant,
			ics.WithRSVP(true),
		)
	}

	return []byte(cal.Serialize())
}
