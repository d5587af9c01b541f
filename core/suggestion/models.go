package suggestion

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/NoheilaRamdani/sae401/core"
	"github.com/NoheilaRamdani/sae401/core/assignment"
)

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusAccepted Status = "ACCEPTED"
	StatusRejected Status = "REJECTED"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusAccepted || s == StatusRejected
}

// Field names an editable assignment field.
type Field string

const (
	FieldTitle           Field = "title"
	FieldDescription     Field = "description"
	FieldDueDate         Field = "due_date"
	FieldType            Field = "type"
	FieldSubmissionType  Field = "submission_type"
	FieldSubmissionURL   Field = "submission_url"
	FieldSubmissionOther Field = "submission_other"
	FieldCourseLocation  Field = "course_location"
	FieldSubjectID       Field = "subject_id"
)

// EditableFields lists the fields a suggestion may change, in diff order.
var EditableFields = []Field{
	FieldTitle,
	FieldDescription,
	FieldDueDate,
	FieldType,
	FieldSubmissionType,
	FieldSubmissionURL,
	FieldSubmissionOther,
	FieldCourseLocation,
	FieldSubjectID,
}

var ErrUnknownField = errors.New("unknown field")

// FieldChange is one proposed edit of an assignment field.
// The set of implementations is closed: one type per editable field.
type FieldChange interface {
	Field() Field
	// Raw is the submitted value, nil when the form left the field empty.
	Raw() *string
	isFieldChange()
}

type (
	TitleChange           struct{ Title string }
	DescriptionChange     struct{ Description *string }
	DueDateChange         struct{ DueDate string } // core.DateTimeLayout
	TypeChange            struct{ Type assignment.Type }
	SubmissionTypeChange  struct{ SubmissionType assignment.SubmissionType }
	SubmissionURLChange   struct{ URL *string }
	SubmissionOtherChange struct{ Text *string }
	CourseLocationChange  struct{ Location *string }
	SubjectChange         struct{ SubjectID string }
)

func (TitleChange) Field() Field           { return FieldTitle }
func (DescriptionChange) Field() Field     { return FieldDescription }
func (DueDateChange) Field() Field         { return FieldDueDate }
func (TypeChange) Field() Field            { return FieldType }
func (SubmissionTypeChange) Field() Field  { return FieldSubmissionType }
func (SubmissionURLChange) Field() Field   { return FieldSubmissionURL }
func (SubmissionOtherChange) Field() Field { return FieldSubmissionOther }
func (CourseLocationChange) Field() Field  { return FieldCourseLocation }
func (SubjectChange) Field() Field         { return FieldSubjectID }

func (c TitleChange) Raw() *string           { return &c.Title }
func (c DescriptionChange) Raw() *string     { return c.Description }
func (c DueDateChange) Raw() *string         { return &c.DueDate }
func (c TypeChange) Raw() *string            { return core.StringPtr(string(c.Type)) }
func (c SubmissionTypeChange) Raw() *string  { return core.StringPtr(string(c.SubmissionType)) }
func (c SubmissionURLChange) Raw() *string   { return c.URL }
func (c SubmissionOtherChange) Raw() *string { return c.Text }
func (c CourseLocationChange) Raw() *string  { return c.Location }
func (c SubjectChange) Raw() *string         { return &c.SubjectID }

func (TitleChange) isFieldChange()           {}
func (DescriptionChange) isFieldChange()     {}
func (DueDateChange) isFieldChange()         {}
func (TypeChange) isFieldChange()            {}
func (SubmissionTypeChange) isFieldChange()  {}
func (SubmissionURLChange) isFieldChange()   {}
func (SubmissionOtherChange) isFieldChange() {}
func (CourseLocationChange) isFieldChange()  {}
func (SubjectChange) isFieldChange()         {}

// NewFieldChange rebuilds a typed change from its stored form.
func NewFieldChange(field Field, raw *string) (FieldChange, error) {
	value := core.StringValue(raw)
	switch field {
	case FieldTitle:
		return TitleChange{Title: value}, nil
	case FieldDescription:
		return DescriptionChange{Description: raw}, nil
	case FieldDueDate:
		return DueDateChange{DueDate: value}, nil
	case FieldType:
		return TypeChange{Type: assignment.Type(value)}, nil
	case FieldSubmissionType:
		return SubmissionTypeChange{SubmissionType: assignment.SubmissionType(value)}, nil
	case FieldSubmissionURL:
		return SubmissionURLChange{URL: raw}, nil
	case FieldSubmissionOther:
		return SubmissionOtherChange{Text: raw}, nil
	case FieldCourseLocation:
		return CourseLocationChange{Location: raw}, nil
	case FieldSubjectID:
		return SubjectChange{SubjectID: value}, nil
	}
	return nil, errors.Wrapf(ErrUnknownField, "%q", field)
}

// Patch is a sparse set of field changes, at most one per field.
type Patch []FieldChange

func (p Patch) Fields() []Field {
	fields := make([]Field, 0, len(p))
	for _, c := range p {
		fields = append(fields, c.Field())
	}
	return fields
}

func (p Patch) Get(field Field) (FieldChange, bool) {
	for _, c := range p {
		if c.Field() == field {
			return c, true
		}
	}
	return nil, false
}

// Map returns the stored form of p: field name to raw value.
func (p Patch) Map() map[Field]*string {
	m := make(map[Field]*string, len(p))
	for _, c := range p {
		m[c.Field()] = c.Raw()
	}
	return m
}

func (p Patch) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Map())
}

// UnmarshalJSON decodes the stored form, keeping EditableFields order.
func (p *Patch) UnmarshalJSON(data []byte) error {
	var m map[Field]*string
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	patch, err := PatchFromMap(m)
	if err != nil {
		return err
	}
	*p = patch
	return nil
}

func PatchFromMap(m map[Field]*string) (Patch, error) {
	for field := range m {
		if !isEditable(field) {
			return nil, errors.Wrapf(ErrUnknownField, "%q", field)
		}
	}
	patch := make(Patch, 0, len(m))
	for _, field := range EditableFields {
		raw, ok := m[field]
		if !ok {
			continue
		}
		c, err := NewFieldChange(field, raw)
		if err != nil {
			return nil, err
		}
		patch = append(patch, c)
	}
	return patch, nil
}

func isEditable(field Field) bool {
	for _, f := range EditableFields {
		if f == field {
			return true
		}
	}
	return false
}

// Originals holds the normalized value of each changed field at submission time.
type Originals map[Field]string

type Suggestion struct {
	ID              string     `json:"id"`
	AssignmentID    string     `json:"assignment_id"`
	SuggestedBy     string     `json:"suggested_by"`
	Message         *string    `json:"message"`
	ProposedChanges Patch      `json:"proposed_changes"`
	OriginalValues  Originals  `json:"original_values"`
	Status          Status     `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	ReviewedBy      *string    `json:"reviewed_by"`
	ReviewedAt      *time.Time `json:"reviewed_at"`
}

// SubmitForm is the assignment edit form a user proposes, with an optional note for reviewers.
type SubmitForm struct {
	assignment.Form
	Message *string `json:"message" validate:"omitempty,max=2000"`
}

type QueryFilter struct {
	// GroupIDs scopes the listing through the suggestion's assignment: nil is unrestricted.
	GroupIDs     []string
	AssignmentID string
	Status       Status
}
