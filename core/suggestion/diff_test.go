package suggestion

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NoheilaRamdani/sae401/core"
	"github.com/NoheilaRamdani/sae401/core/assignment"
)

var paris, _ = time.LoadLocation("Europe/Paris")

func sampleAssignment() assignment.Assignment {
	return assignment.Assignment{
		ID:        "a1",
		Title:     "Old",
		DueDate:   time.Date(2025, 6, 1, 21, 59, 0, 0, time.UTC), // 23:59 in Paris
		SubjectID: "s1",
		GroupIDs:  []string{"g1"},
		Type:      assignment.TypeDevoir,
	}
}

func TestComputeDiff(t *testing.T) {
	current := sampleAssignment()

	tests := []struct {
		name          string
		current       func() assignment.Assignment
		form          func(f assignment.Form) assignment.Form
		wantErr       error
		wantChanges   map[Field]*string
		wantOriginals Originals
	}{
		{
			name:    "no changes",
			form:    func(f assignment.Form) assignment.Form { return f },
			wantErr: ErrNoChanges,
		},
		{
			name: "empty description against null",
			form: func(f assignment.Form) assignment.Form {
				f.Description = new(string)
				return f
			},
			wantErr: ErrNoChanges,
		},
		{
			name: "null description against empty",
			current: func() assignment.Assignment {
				a := sampleAssignment()
				a.Description = new(string)
				return a
			},
			form: func(f assignment.Form) assignment.Form {
				f.Description = nil
				return f
			},
			wantErr: ErrNoChanges,
		},
		{
			name: "title only",
			form: func(f assignment.Form) assignment.Form {
				f.Title = "New"
				return f
			},
			wantChanges:   map[Field]*string{FieldTitle: core.StringPtr("New")},
			wantOriginals: Originals{FieldTitle: "Old"},
		},
		{
			name: "title padded with spaces",
			form: func(f assignment.Form) assignment.Form {
				f.Title = "  Old "
				return f
			},
			wantErr: ErrNoChanges,
		},
		{
			name: "new title is trimmed",
			form: func(f assignment.Form) assignment.Form {
				f.Title = " New\t"
				return f
			},
			wantChanges:   map[Field]*string{FieldTitle: core.StringPtr("New")},
			wantOriginals: Originals{FieldTitle: "Old"},
		},
		{
			name: "description set",
			form: func(f assignment.Form) assignment.Form {
				f.Description = core.StringPtr("Read chapter 2")
				return f
			},
			wantChanges:   map[Field]*string{FieldDescription: core.StringPtr("Read chapter 2")},
			wantOriginals: Originals{FieldDescription: ""},
		},
		{
			name: "submission url cleared",
			current: func() assignment.Assignment {
				a := sampleAssignment()
				a.SubmissionURL = core.StringPtr("https://moodle.example.com")
				return a
			},
			form: func(f assignment.Form) assignment.Form {
				f.SubmissionURL = nil
				return f
			},
			wantChanges:   map[Field]*string{FieldSubmissionURL: nil},
			wantOriginals: Originals{FieldSubmissionURL: "https://moodle.example.com"},
		},
		{
			name: "same due date in another layout",
			form: func(f assignment.Form) assignment.Form {
				f.DueDate = "2025-06-01T23:59"
				return f
			},
			wantErr: ErrNoChanges,
		},
		{
			name: "sub-second precision is ignored",
			current: func() assignment.Assignment {
				a := sampleAssignment()
				a.DueDate = a.DueDate.Add(500 * time.Millisecond)
				return a
			},
			form: func(f assignment.Form) assignment.Form {
				f.DueDate = "2025-06-01 23:59:00"
				return f
			},
			wantErr: ErrNoChanges,
		},
		{
			name: "due date moved",
			form: func(f assignment.Form) assignment.Form {
				f.DueDate = "2025-06-02T10:00"
				return f
			},
			wantChanges:   map[Field]*string{FieldDueDate: core.StringPtr("2025-06-02 10:00:00")},
			wantOriginals: Originals{FieldDueDate: "2025-06-01 23:59:00"},
		},
		{
			name: "empty subject keeps the current one",
			form: func(f assignment.Form) assignment.Form {
				f.SubjectID = ""
				return f
			},
			wantErr: ErrNoChanges,
		},
		{
			name: "type is case sensitive",
			form: func(f assignment.Form) assignment.Form {
				f.Type = "Devoir"
				return f
			},
			wantChanges:   map[Field]*string{FieldType: core.StringPtr("Devoir")},
			wantOriginals: Originals{FieldType: "devoir"},
		},
		{
			name: "several fields",
			form: func(f assignment.Form) assignment.Form {
				f.Type = assignment.TypeExamen
				f.SubjectID = "s2"
				f.CourseLocation = core.StringPtr("B204")
				return f
			},
			wantChanges: map[Field]*string{
				FieldType:           core.StringPtr("examen"),
				FieldSubjectID:      core.StringPtr("s2"),
				FieldCourseLocation: core.StringPtr("B204"),
			},
			wantOriginals: Originals{FieldType: "devoir", FieldSubjectID: "s1", FieldCourseLocation: ""},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cur := current
			if tt.current != nil {
				cur = tt.current()
			}
			diff, err := ComputeDiff(cur, tt.form(assignment.FormOf(sampleAssignment(), paris)), paris)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, errors.Cause(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantChanges, diff.Changes.Map())
			assert.Equal(t, tt.wantOriginals, diff.Originals)
		})
	}
}

func TestComputeDiff_KeySets(t *testing.T) {
	current := sampleAssignment()
	form := assignment.Form{
		Title:          "Other",
		Description:    core.StringPtr("x"),
		DueDate:        "2025-07-01 08:00:00",
		SubjectID:      "s9",
		Type:           assignment.TypeOral,
		SubmissionType: assignment.SubmissionMoodle,
		SubmissionURL:  core.StringPtr("https://moodle.example.com"),
	}

	diff, err := ComputeDiff(current, form, paris)
	require.NoError(t, err)

	keys := make([]Field, 0, len(diff.Originals))
	for _, f := range EditableFields {
		if _, ok := diff.Originals[f]; ok {
			keys = append(keys, f)
		}
	}
	assert.Equal(t, diff.Changes.Fields(), keys)
	assert.Len(t, diff.Changes, 7)
}

func TestComputeDiff_InvalidDate(t *testing.T) {
	form := assignment.FormOf(sampleAssignment(), paris)
	form.DueDate = "tomorrow"

	_, err := ComputeDiff(sampleAssignment(), form, paris)
	require.Error(t, err)
	verr, ok := core.AsValidation(err)
	require.True(t, ok)
	_, ok = verr.Field("due_date")
	assert.True(t, ok)
}

func TestPatch_UnmarshalJSON(t *testing.T) {
	var p Patch
	require.NoError(t, p.UnmarshalJSON([]byte(`{"subject_id":"s2","title":"New","description":null}`)))
	assert.Equal(t, []Field{FieldTitle, FieldDescription, FieldSubjectID}, p.Fields())
	assert.Equal(t, Patch{TitleChange{Title: "New"}, DescriptionChange{}, SubjectChange{SubjectID: "s2"}}, p)

	err := p.UnmarshalJSON([]byte(`{"is_completed":"true"}`))
	assert.Equal(t, ErrUnknownField, errors.Cause(err))
}
