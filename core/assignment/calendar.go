package assignment

import (
	"context"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/pkg/errors"

	"github.com/NoheilaRamdani/sae401/core"
	"github.com/NoheilaRamdani/sae401/core/access"
)

const (
	completedClass = "completed-event"

	icalNoDescription = "Pas de description"
	icalNoLocation    = "Non spécifié"
	icalEventLength   = time.Hour
)

type (
	CalendarEvent struct {
		ID            string       `json:"id"`
		Title         string       `json:"title"`
		Start         string       `json:"start"` // ISO-8601
		Color         string       `json:"color"`
		ClassNames    []string     `json:"classNames"`
		IsCompleted   bool         `json:"isCompleted"`
		ExtendedProps EventDetails `json:"extendedProps"`
	}

	EventDetails struct {
		Description   string `json:"description"`
		SubmissionURL string `json:"submissionUrl"`
		Type          Type   `json:"type"`
		CreatedAt     string `json:"createdAt"`
	}
)

// NewCalendarEvent renders v for the calendar widget, dates in loc.
func NewCalendarEvent(v View, now time.Time, loc *time.Location) CalendarEvent {
	classNames := []string{}
	if v.IsCompleted {
		classNames = append(classNames, completedClass)
	}
	return CalendarEvent{
		ID:          v.ID,
		Title:       v.Title,
		Start:       v.DueDate.In(loc).Format(time.RFC3339),
		Color:       EventColor(v.Assignment, v.Subject, now),
		ClassNames:  classNames,
		IsCompleted: v.IsCompleted,
		ExtendedProps: EventDetails{
			Description:   core.StringValue(v.Description),
			SubmissionURL: core.StringValue(v.SubmissionURL),
			Type:          v.Type,
			CreatedAt:     v.CreatedAt.In(loc).Format(core.DisplayLayout),
		},
	}
}

// CalendarEvents returns every assignment the principal can see as calendar events.
func (svc *Service) CalendarEvents(ctx context.Context, p access.Principal, f Filters) ([]CalendarEvent, error) {
	now := core.NowFunc()
	list, _, err := svc.repo.QueryAssignments(ctx, scopedFilter(p, f), orderByDueDate, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	views, err := svc.views(ctx, list, now)
	if err != nil {
		return nil, err
	}

	events := make([]CalendarEvent, 0, len(views))
	for _, v := range views {
		events = append(events, NewCalendarEvent(v, now, svc.Location()))
	}
	return events, nil
}

// ICalFeed renders the upcoming assignments the principal can see as an RFC 5545 calendar.
func (svc *Service) ICalFeed(ctx context.Context, p access.Principal, calName string) (string, error) {
	views, err := svc.ListUpcoming(ctx, p, Filters{})
	if err != nil {
		return "", err
	}
	return RenderICal(views, ICalOptions{
		Name:      calName,
		ProductID: svc.conf.Calendar.ProductID,
		UIDDomain: svc.conf.Calendar.UIDDomain,
		Stamp:     core.NowFunc(),
	}), nil
}

type ICalOptions struct {
	Name      string
	ProductID string
	UIDDomain string
	Stamp     time.Time
}

// RenderICal builds one VEVENT per view. Completed assignments get a struck-through summary.
func RenderICal(views []View, opts ICalOptions) string {
	cal := ics.NewCalendar()
	cal.SetProductId(opts.ProductID)
	cal.SetCalscale("GREGORIAN")
	cal.SetMethod(ics.MethodPublish)
	cal.SetXWRCalName(opts.Name)

	for _, v := range views {
		event := cal.AddEvent(v.ID + "@" + opts.UIDDomain)
		event.SetDtStampTime(opts.Stamp)
		event.SetStartAt(v.DueDate)
		event.SetEndAt(v.DueDate.Add(icalEventLength))

		summary := v.Title
		if v.IsCompleted {
			summary = "~~" + summary + "~~"
		}
		event.SetSummary(summary)

		description := core.StringValue(v.Description)
		if description == "" {
			description = icalNoDescription
		}
		event.SetDescription(description)

		location := core.StringValue(v.SubmissionURL)
		if location == "" {
			location = icalNoLocation
		}
		event.SetLocation(location)
	}
	return cal.Serialize()
}
