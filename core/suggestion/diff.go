package suggestion

import (
	"time"

	"github.com/pkg/errors"

	"github.com/NoheilaRamdani/sae401/core"
	"github.com/NoheilaRamdani/sae401/core/assignment"
)

// ErrNoChanges is returned when a submitted form matches the assignment.
var ErrNoChanges = errors.New("no changes to suggest")

// Diff is a sparse patch with the original value of every changed field.
type Diff struct {
	Changes   Patch
	Originals Originals
}

func (d *Diff) add(c FieldChange, original string) {
	d.Changes = append(d.Changes, c)
	d.Originals[c.Field()] = original
}

// ComputeDiff compares the submitted form with the current assignment, field by field.
// null and "" are the same value; due dates compare by their canonical text in loc, so precision
// below the second is ignored. Changes keep the submitted value (the title trimmed, the due date in
// canonical form), originals the normalized current one.
// An empty diff fails with ErrNoChanges.
func ComputeDiff(current assignment.Assignment, submitted assignment.Form, loc *time.Location) (Diff, error) {
	diff := Diff{Changes: make(Patch, 0), Originals: make(Originals)}

	// titles are trimmed the way the direct edit stores them
	if title := core.CleanString(submitted.Title); title != current.Title {
		diff.add(TitleChange{Title: title}, current.Title)
	}

	if cur := core.StringValue(current.Description); cur != core.StringValue(submitted.Description) {
		diff.add(DescriptionChange{Description: submitted.Description}, cur)
	}

	curDue := core.FormatDateTime(current.DueDate, loc)
	if submitted.DueDate != "" {
		due, err := core.CanonicalDateTime(submitted.DueDate, loc)
		if err != nil {
			return Diff{}, core.FieldInvalid(string(FieldDueDate), err)
		}
		if due != curDue {
			diff.add(DueDateChange{DueDate: due}, curDue)
		}
	}

	if current.Type != submitted.Type {
		diff.add(TypeChange{Type: submitted.Type}, string(current.Type))
	}

	if current.SubmissionType != submitted.SubmissionType {
		diff.add(SubmissionTypeChange{SubmissionType: submitted.SubmissionType}, string(current.SubmissionType))
	}

	if cur := core.StringValue(current.SubmissionURL); cur != core.StringValue(submitted.SubmissionURL) {
		diff.add(SubmissionURLChange{URL: submitted.SubmissionURL}, cur)
	}

	if cur := core.StringValue(current.SubmissionOther); cur != core.StringValue(submitted.SubmissionOther) {
		diff.add(SubmissionOtherChange{Text: submitted.SubmissionOther}, cur)
	}

	if cur := core.StringValue(current.CourseLocation); cur != core.StringValue(submitted.CourseLocation) {
		diff.add(CourseLocationChange{Location: submitted.CourseLocation}, cur)
	}

	// a subject cannot be unset: an empty submission keeps the current one
	if submitted.SubjectID != "" && submitted.SubjectID != current.SubjectID {
		diff.add(SubjectChange{SubjectID: submitted.SubjectID}, current.SubjectID)
	}

	if len(diff.Changes) == 0 {
		return Diff{}, ErrNoChanges
	}
	return diff, nil
}
