package suggestion

import (
	"time"

	"github.com/pkg/errors"

	"github.com/NoheilaRamdani/sae401/core"
	"github.com/NoheilaRamdani/sae401/core/assignment"
)

// SubjectExists reports whether the subject with id is still there.
type SubjectExists func(id string) (bool, error)

// Apply sets every change of p on a. A subject change pointing to a subject that no longer exists is
// dropped and its field returned in skipped.
func Apply(a *assignment.Assignment, p Patch, loc *time.Location, subjectExists SubjectExists) (skipped []Field, err error) {
	for _, change := range p {
		switch c := change.(type) {
		case TitleChange:
			a.Title = core.CleanString(c.Title)
		case DescriptionChange:
			a.Description = c.Description
		case DueDateChange:
			due, err := core.ParseDateTime(c.DueDate, loc)
			if err != nil {
				return nil, errors.Wrap(err, "applying due date")
			}
			a.DueDate = due
		case TypeChange:
			a.Type = c.Type
		case SubmissionTypeChange:
			a.SubmissionType = c.SubmissionType
		case SubmissionURLChange:
			a.SubmissionURL = c.URL
		case SubmissionOtherChange:
			a.SubmissionOther = c.Text
		case CourseLocationChange:
			a.CourseLocation = c.Location
		case SubjectChange:
			ok, err := subjectExists(c.SubjectID)
			if err != nil {
				return nil, errors.Wrap(err, "checking subject")
			}
			if !ok {
				skipped = append(skipped, FieldSubjectID)
				continue
			}
			a.SubjectID = c.SubjectID
		default:
			return nil, errors.Errorf("unhandled field change %T", change)
		}
	}
	return skipped, nil
}
