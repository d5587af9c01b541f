package assignment

import (
	"time"

	"github.com/NoheilaRamdani/sae401/core"
	"github.com/NoheilaRamdani/sae401/core/subject"
)

type Type string

const (
	TypeDevoir Type = "devoir"
	TypeExamen Type = "examen"
	TypeOral   Type = "oral"
)

var Types = []Type{TypeDevoir, TypeExamen, TypeOral}

func (t Type) Valid() bool {
	for _, typ := range Types {
		if t == typ {
			return true
		}
	}
	return false
}

type SubmissionType string

const (
	SubmissionEmail  SubmissionType = "email"
	SubmissionMoodle SubmissionType = "moodle"
	SubmissionVPS    SubmissionType = "vps"
	SubmissionOther  SubmissionType = "other"
)

var SubmissionTypes = []SubmissionType{SubmissionEmail, SubmissionMoodle, SubmissionVPS, SubmissionOther}

// Valid accepts the empty submission type (not specified).
func (st SubmissionType) Valid() bool {
	if st == "" {
		return true
	}
	for _, typ := range SubmissionTypes {
		if st == typ {
			return true
		}
	}
	return false
}

type Assignment struct {
	ID              string         `json:"id"`
	Title           string         `json:"title"`
	Description     *string        `json:"description"`
	DueDate         time.Time      `json:"due_date"` // UTC
	SubjectID       string         `json:"subject_id"`
	GroupIDs        []string       `json:"group_ids"`
	CreatedBy       *string        `json:"created_by"`
	SubmissionType  SubmissionType `json:"submission_type"`
	SubmissionURL   *string        `json:"submission_url"`
	SubmissionOther *string        `json:"submission_other"`
	CourseLocation  *string        `json:"course_location"`
	Type            Type           `json:"type"`
	IsCompleted     bool           `json:"is_completed"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       *time.Time     `json:"updated_at"`
}

func (a Assignment) ScopeGroupIDs() []string { return a.GroupIDs }
func (a Assignment) CreatorID() string       { return core.StringValue(a.CreatedBy) }

// Touch sets UpdatedAt.
func (a *Assignment) Touch(now time.Time) {
	a.UpdatedAt = &now
}

// Form holds the editable fields of an assignment, as submitted for a direct edit or a suggestion.
type Form struct {
	Title           string         `json:"title" validate:"required,notblank,max=255"`
	Description     *string        `json:"description"`
	DueDate         string         `json:"due_date" validate:"required,datetime_"`
	SubjectID       string         `json:"subject_id" validate:"omitempty,uuid"`
	Type            Type           `json:"type" validate:"required,oneof=devoir examen oral"`
	SubmissionType  SubmissionType `json:"submission_type" validate:"omitempty,oneof=email moodle vps other"`
	SubmissionURL   *string        `json:"submission_url" validate:"omitempty,url,max=255"`
	SubmissionOther *string        `json:"submission_other" validate:"omitempty,max=255"`
	CourseLocation  *string        `json:"course_location" validate:"omitempty,max=255"`
}

// FormOf fills a Form with the current values of a, dates rendered in loc.
func FormOf(a Assignment, loc *time.Location) Form {
	return Form{
		Title:           a.Title,
		Description:     a.Description,
		DueDate:         core.FormatDateTime(a.DueDate, loc),
		SubjectID:       a.SubjectID,
		Type:            a.Type,
		SubmissionType:  a.SubmissionType,
		SubmissionURL:   a.SubmissionURL,
		SubmissionOther: a.SubmissionOther,
		CourseLocation:  a.CourseLocation,
	}
}

// NewAssignment contains information needed to create a new Assignment.
type NewAssignment struct {
	Form
	GroupIDs []string `json:"group_ids" validate:"required,min=1,dive,uuid"`
}

type QueryFilter struct {
	// GroupIDs scopes the listing: nil is unrestricted, empty matches nothing.
	GroupIDs    []string
	GroupID     string
	SubjectID   string
	Type        Type
	DueFrom     *time.Time
	DueBefore   *time.Time
	IsCompleted *bool
}

// Filters are the optional listing predicates a user may combine.
type Filters struct {
	Type      Type   `query:"type"`
	SubjectID string `query:"subject_id"`
	GroupID   string `query:"group_id"`
}

func (f *Filters) Clean() {
	f.Type = Type(core.CleanString(string(f.Type), true /* lower */))
	f.SubjectID = core.CleanString(f.SubjectID)
	f.GroupID = core.CleanString(f.GroupID)
}

// View is an assignment as listed to users, with its derived urgency.
type View struct {
	Assignment
	Subject       *subject.Subject `json:"subject"`
	UrgencyClass  Urgency          `json:"urgency_class"`
	HoursUntilDue int              `json:"hours_until_due"`
}

// Page is one page of a paginated listing.
type Page struct {
	Items []View `json:"items"`
	core.PageInfo
}
