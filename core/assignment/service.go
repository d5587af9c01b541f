package assignment

import (
	"context"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/NoheilaRamdani/sae401/core"
	"github.com/NoheilaRamdani/sae401/core/access"
	"github.com/NoheilaRamdani/sae401/core/group"
	"github.com/NoheilaRamdani/sae401/core/subject"
)

var (
	// errors
	ErrNotFound = errors.New("assignment not found")
)

type (
	Repository interface {
		CreateAssignment(ctx context.Context, a Assignment) (Assignment, error)
		GetAssignment(ctx context.Context, id string) (Assignment, error)
		// UpdateAssignment saves every field but GroupIDs and CreatedAt.
		UpdateAssignment(ctx context.Context, a Assignment) (Assignment, error)
		DeleteAssignment(ctx context.Context, id string) error
		// QueryAssignments applies AND operation on the QueryFilter fields, sorted by ordering.
		// A nil page returns every match. The total ignores pagination.
		QueryAssignments(ctx context.Context, filter QueryFilter, ordering core.DBOrdering, page *core.Pagination) ([]Assignment, int, error)
	}

	// SuggestionRemover deletes the suggestions of an assignment.
	SuggestionRemover interface {
		DeleteSuggestionsByAssignment(ctx context.Context, assignmentID string) error
	}

	Deps struct {
		Repo        Repository
		Subjects    subject.Repository
		Groups      group.Repository
		Suggestions SuggestionRemover
		Tx          core.Transactor
		Notifier    *Notifier
		Events      core.EventPublisher
		Conf        *core.Config
		Logger      core.Logger
	}

	Service struct {
		repo        Repository
		subjects    subject.Repository
		groups      group.Repository
		suggestions SuggestionRemover
		tx          core.Transactor
		notifier    *Notifier
		events      core.EventPublisher
		conf        *core.Config
		logger      core.Logger
	}
)

var orderByDueDate = core.DBOrdering{Field: "due_date", Ascending: true}

func NewService(deps Deps) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(deps.Repo, "Repo"),
		vala.IsNotNil(deps.Subjects, "Subjects"),
		vala.IsNotNil(deps.Groups, "Groups"),
		vala.IsNotNil(deps.Suggestions, "Suggestions"),
		vala.IsNotNil(deps.Tx, "Tx"),
		vala.IsNotNil(deps.Notifier, "Notifier"),
		vala.IsNotNil(deps.Events, "Events"),
		vala.IsNotNil(deps.Conf, "Conf"),
		vala.IsNotNil(deps.Logger, "Logger"),
	).CheckAndPanic()

	return &Service{
		repo:        deps.Repo,
		subjects:    deps.Subjects,
		groups:      deps.Groups,
		suggestions: deps.Suggestions,
		tx:          deps.Tx,
		notifier:    deps.Notifier,
		events:      deps.Events,
		conf:        deps.Conf,
		logger:      deps.Logger,
	}
}

// Location is the timezone user facing dates are rendered in.
func (svc *Service) Location() *time.Location { return svc.conf.Location() }

// checkSubject turns an unknown subject into a field error.
func (svc *Service) checkSubject(ctx context.Context, id string) (subject.Subject, error) {
	if id == "" {
		return subject.Subject{}, core.FieldRequired("subject_id")
	}
	subj, err := svc.subjects.GetSubject(ctx, id)
	if err != nil {
		if errors.Cause(err) == subject.ErrNotFound {
			return subject.Subject{}, core.FieldInvalid("subject_id", err)
		}
		return subject.Subject{}, errors.Wrap(err, "getting subject")
	}
	return subj, nil
}

// applyForm copies every field of f onto a.
func (svc *Service) applyForm(a *Assignment, f Form) error {
	due, err := core.ParseDateTime(f.DueDate, svc.Location())
	if err != nil {
		return core.FieldInvalid("due_date", err)
	}
	a.Title = core.CleanString(f.Title)
	a.Description = f.Description
	a.DueDate = due
	a.SubjectID = f.SubjectID
	a.Type = f.Type
	a.SubmissionType = f.SubmissionType
	a.SubmissionURL = f.SubmissionURL
	a.SubmissionOther = f.SubmissionOther
	a.CourseLocation = f.CourseLocation
	return nil
}

// Create stores a new assignment for the given groups, then notifies their members.
// Only delegates and admins may create; a delegate may only target its own groups.
func (svc *Service) Create(ctx context.Context, p access.Principal, na NewAssignment) (Assignment, error) {
	if !p.IsDelegate() {
		return Assignment{}, access.ErrDenied
	}
	groupIDs := core.UniqueStrings(na.GroupIDs)
	if len(groupIDs) == 0 {
		return Assignment{}, core.FieldRequired("group_ids")
	}
	if !p.IsAdmin() {
		for _, id := range groupIDs {
			if !p.InGroup(id) {
				return Assignment{}, access.ErrDenied
			}
		}
	}

	subj, err := svc.checkSubject(ctx, na.SubjectID)
	if err != nil {
		return Assignment{}, err
	}
	for _, id := range groupIDs {
		if _, err = svc.groups.GetGroup(ctx, id); err != nil {
			if errors.Cause(err) == group.ErrNotFound {
				return Assignment{}, core.FieldInvalid("group_ids", err)
			}
			return Assignment{}, errors.Wrap(err, "getting group")
		}
	}

	now := core.NowFunc()
	a := Assignment{
		GroupIDs:  groupIDs,
		CreatedBy: core.StringPtr(p.UserID),
		CreatedAt: now,
	}
	if err = svc.applyForm(&a, na.Form); err != nil {
		return Assignment{}, err
	}

	err = svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		a, err = svc.repo.CreateAssignment(ctx, a)
		return errors.Wrap(err, "creating assignment")
	})
	if err != nil {
		return Assignment{}, err
	}

	svc.notifier.AssignmentCreated(ctx, a, subj)
	svc.publish(ctx, core.NewEvent(core.EventAssignmentCreated, eventPayload(a)))
	return a, nil
}

// load returns the assignment with id once check passes.
func (svc *Service) load(ctx context.Context, p access.Principal, id string, check func(access.Principal, access.Resource) bool) (Assignment, error) {
	a, err := svc.repo.GetAssignment(ctx, id)
	if err != nil {
		return Assignment{}, err
	}
	if !check(p, a) {
		return Assignment{}, access.ErrDenied
	}
	return a, nil
}

// Get returns the view of an assignment the principal can see.
func (svc *Service) Get(ctx context.Context, p access.Principal, id string) (View, error) {
	a, err := svc.load(ctx, p, id, access.CanView)
	if err != nil {
		return View{}, err
	}
	return svc.view(ctx, a, core.NowFunc()), nil
}

// Update is the direct edit: every field of f replaces the current value.
func (svc *Service) Update(ctx context.Context, p access.Principal, id string, f Form) (Assignment, error) {
	if !p.IsDelegate() {
		return Assignment{}, access.ErrDenied
	}
	if _, err := svc.checkSubject(ctx, f.SubjectID); err != nil {
		return Assignment{}, err
	}

	var a Assignment
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if a, err = svc.load(ctx, p, id, access.CanMutate); err != nil {
			return err
		}
		if err = svc.applyForm(&a, f); err != nil {
			return err
		}
		a.Touch(core.NowFunc())
		a, err = svc.repo.UpdateAssignment(ctx, a)
		return errors.Wrap(err, "updating assignment")
	})
	return a, err
}

// Delete removes an assignment and, first, every suggestion referencing it.
func (svc *Service) Delete(ctx context.Context, p access.Principal, id string) error {
	if !p.IsDelegate() {
		return access.ErrDenied
	}
	return svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := svc.load(ctx, p, id, access.CanMutate); err != nil {
			return err
		}
		if err := svc.suggestions.DeleteSuggestionsByAssignment(ctx, id); err != nil {
			return errors.Wrap(err, "deleting suggestions")
		}
		return errors.Wrap(svc.repo.DeleteAssignment(ctx, id), "deleting assignment")
	})
}

// ToggleComplete flips the completion flag and returns the new value.
func (svc *Service) ToggleComplete(ctx context.Context, p access.Principal, id string) (bool, error) {
	var completed bool
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		a, err := svc.load(ctx, p, id, access.CanMutate)
		if err != nil {
			return err
		}
		a.IsCompleted = !a.IsCompleted
		a.Touch(core.NowFunc())
		if _, err = svc.repo.UpdateAssignment(ctx, a); err != nil {
			return errors.Wrap(err, "updating assignment")
		}
		completed = a.IsCompleted
		return nil
	})
	return completed, err
}

func (svc *Service) publish(ctx context.Context, evt core.Event) {
	if err := svc.events.Publish(ctx, evt); err != nil {
		svc.logger.Warn("publishing event", errors.Wrap(err, evt.Type))
	}
}

func eventPayload(a Assignment) map[string]interface{} {
	return map[string]interface{}{
		"assignment_id": a.ID,
		"title":         a.Title,
		"due_date":      a.DueDate,
		"group_ids":     a.GroupIDs,
	}
}
