package engine

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/emersion/go-ical"

	"github.com/majcheradam/BetterVCardTools/internal/config"
	"github.com/majcheradam/BetterVCardTools/internal/vcard"
)

// BirthdayCalendar renders the contacts' birthdays as an iCalendar feed:
// one all-day VEVENT per birthday for the previous, current and next year,
// with deterministic UIDs so refreshes update events instead of duplicating
// them. Contacts without a usable birthday are skipped. An empty result is
// still a valid VCALENDAR stub.
func (c *Converter) BirthdayCalendar(contacts []vcard.Contact, reminderTrigger string) ([]byte, error) {
	log := slog.With(config.LogKeyComponent, config.CompEngine)

	cal := ical.NewCalendar()
	cal.Props.SetText(config.ICalPropVersion, config.ICalVersion)
	cal.Props.SetText(config.ICalPropProdID, config.ICalProdID)
	cal.Props.SetText(config.ICalPropXWRCalName, config.ICalCalName)
	cal.Props.SetText(config.ICalPropCalScale, config.ICalScale)
	cal.Props.SetText(config.ICalPropMethod, config.ICalMethod)

	// RFC 7986 refresh hint for subscribing clients.
	refreshProp := ical.NewProp(config.ICalPropRefresh)
	refreshProp.SetDuration(config.DefaultICalRefresh)
	cal.Props.Set(refreshProp)

	// Local time decides which date counts as "today"; only the DTSTAMP is
	// converted to UTC. A birthday is a local calendar date, not an absolute
	// instant.
	now := c.clock().Now()
	dtStampProp := ical.NewProp(config.ICalPropDTStamp)
	dtStampProp.SetDateTime(now.UTC())

	stats := struct{ withBday, today int }{}

	for _, contact := range contacts {
		if contact.Birthday == "" {
			continue
		}
		birthDate, yearKnown, err := parseDate(contact.Birthday)
		if err != nil {
			log.Debug(config.MsgSkippedDate, config.LogKeyValue, contact.Birthday)
			continue
		}
		stats.withBday++

		name := contact.DisplayName
		if name == "" {
			name = config.FallbackName
		}

		// Stable hash base so the UID survives refreshes.
		input := fmt.Sprintf(config.FormatHashInput, name, birthDate.Format(time.RFC3339), config.UIDSalt)
		hash := sha256.Sum256([]byte(input))
		uidBase := fmt.Sprintf("%x", hash[:config.UIDHashLength])

		events, isToday := createEvents(name, birthDate, yearKnown, reminderTrigger, now, uidBase)
		if isToday {
			stats.today++
			log.Info(config.MsgBdayToday,
				config.LogKeyName, name,
				config.LogKeyValue, birthDate.Format(config.DateFormatFullDash))
		}
		for _, e := range events {
			e.Props.Set(dtStampProp)
			cal.Children = append(cal.Children, e.Component)
		}
	}

	logCalendarDone := func() {
		log.Info(config.MsgCalendarDone,
			slog.Group(config.LogKeyStats,
				slog.Int(config.LogKeyContacts, len(contacts)),
				slog.Int(config.LogKeyBirthdays, stats.withBday),
				slog.Int(config.LogKeyToday, stats.today),
			),
		)
	}

	// Keep the feed valid for clients even when nothing is in it.
	if len(cal.Children) == 0 {
		logCalendarDone()
		return []byte(config.StubVCalendar), nil
	}

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrICalEncode, err)
	}

	logCalendarDone()
	return buf.Bytes(), nil
}

// clock returns the configured clock, defaulting to wall time.
func (c *Converter) clock() Clock {
	if c.Clock == nil {
		return RealClock{}
	}
	return c.Clock
}

// createEvents generates the events for the previous, current and next year,
// so calendar apps keep events visible when scrolling without an immediate
// re-sync. No event is created before the person was born.
func createEvents(name string, birthDate time.Time, yearKnown bool, reminderTrigger string, now time.Time, uidBase string) ([]*ical.Event, bool) {
	currentYear := now.Year()
	targetYears := []int{currentYear - 1, currentYear, currentYear + 1}
	loc := now.Location()

	var events []*ical.Event
	isToday := false

	todayYear, todayMonth, todayDay := now.Date()

	for _, y := range targetYears {
		if yearKnown && y < birthDate.Year() {
			continue
		}

		event := ical.NewEvent()
		event.Props.SetText(config.ICalPropUID, fmt.Sprintf(config.FormatUID, uidBase, y, config.ICalDomain))

		age := 0
		if yearKnown {
			age = y - birthDate.Year()
		}
		summary := eventSummary(name, age, yearKnown)
		event.Props.SetText(config.ICalPropSummary, summary)

		// time.Date normalizes Feb 29 to March 1 in non-leap years.
		eventDate := time.Date(y, birthDate.Month(), birthDate.Day(), 0, 0, 0, 0, loc)
		if y == todayYear && eventDate.Month() == todayMonth && eventDate.Day() == todayDay {
			isToday = true
		}

		dtStartProp := ical.NewProp(config.ICalPropDTStart)
		dtStartProp.SetDate(eventDate)
		event.Props.Set(dtStartProp)

		if reminderTrigger != "" {
			addAlarm(event, reminderTrigger, summary)
		}

		events = append(events, event)
	}
	return events, isToday
}

// eventSummary renders the event title. Age zero with a known year marks the
// birth itself.
func eventSummary(name string, age int, yearKnown bool) string {
	switch {
	case yearKnown && age == 0:
		return fmt.Sprintf(config.EventSummaryBirth, name)
	case yearKnown:
		return fmt.Sprintf(config.EventSummaryAge, name, age)
	default:
		return fmt.Sprintf(config.EventSummary, name)
	}
}

// addAlarm attaches a DISPLAY reminder to the event.
func addAlarm(event *ical.Event, trigger, description string) {
	alarm := ical.NewComponent(config.ICalComponent)
	alarm.Props.SetText(config.ICalPropAction, config.ICalAction)
	alarm.Props.SetText(config.ICalPropDesc, description)

	// Set the trigger manually to avoid a VALUE=TEXT param on a duration.
	triggerProp := ical.NewProp(config.ICalPropTrigger)
	triggerProp.Value = trigger
	alarm.Props.Set(triggerProp)

	event.Children = append(event.Children, alarm)
}

// parseDate reads the canonical birthday forms plus a few liberal extras for
// hand-built contacts. The second return reports whether the year is known;
// year-less dates are anchored to a leap year so Feb 29 stays representable.
func parseDate(value string) (time.Time, bool, error) {
	formatsWithYear := []string{
		config.DateFormatFullDash,
		config.DateFormatFullBasic,
		config.DateFormatRFC3339,
		config.DateFormatFullT,
	}
	for _, f := range formatsWithYear {
		if t, err := time.Parse(f, value); err == nil {
			return t, true, nil
		}
	}

	formatsWithoutYear := []string{config.DateFormatNoYearD, config.DateFormatNoYearB}
	for _, f := range formatsWithoutYear {
		if t, err := time.Parse(f, value); err == nil {
			safeDate := time.Date(config.DefaultLeapYear, t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return safeDate, false, nil
		}
	}

	return time.Time{}, false, errors.New(config.ErrDateParse)
}
