package suggestion

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/NoheilaRamdani/sae401/core"
	"github.com/NoheilaRamdani/sae401/core/access"
	"github.com/NoheilaRamdani/sae401/core/assignment"
	"github.com/NoheilaRamdani/sae401/core/subject"
	"github.com/NoheilaRamdani/sae401/core/user"
)

// PendingLimit caps the pending listing shown to reviewers.
const PendingLimit = 5

var (
	// errors
	ErrNotFound        = errors.New("suggestion not found")
	ErrAlreadyTerminal = errors.New("suggestion has already been reviewed")
)

type (
	Repository interface {
		CreateSuggestion(ctx context.Context, s Suggestion) (Suggestion, error)
		// GetSuggestion locks the suggestion until the end of the surrounding transaction, if any.
		GetSuggestion(ctx context.Context, id string) (Suggestion, error)
		// QuerySuggestions returns the matches sorted by CreatedAt DESC, and their total count.
		// A nil page returns every match.
		QuerySuggestions(ctx context.Context, filter QueryFilter, page *core.Pagination) ([]Suggestion, int, error)
		// TransitionSuggestion moves a PENDING suggestion to the terminal status to.
		// It fails with ErrAlreadyTerminal when the suggestion is no longer pending.
		TransitionSuggestion(ctx context.Context, id string, to Status, reviewerID string, at time.Time) (Suggestion, error)
		DeleteSuggestionsByAssignment(ctx context.Context, assignmentID string) error
	}

	Deps struct {
		Repo        Repository
		Assignments assignment.Repository
		Subjects    subject.Repository
		Users       user.Repository
		Tx          core.Transactor
		MailSvc     core.EmailService
		Events      core.EventPublisher
		Conf        *core.Config
		Logger      core.Logger
	}

	Service struct {
		repo        Repository
		assignments assignment.Repository
		subjects    subject.Repository
		users       user.Repository
		tx          core.Transactor
		mailSvc     core.EmailService
		events      core.EventPublisher
		conf        *core.Config
		logger      core.Logger
	}
)

func NewService(deps Deps) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(deps.Repo, "Repo"),
		vala.IsNotNil(deps.Assignments, "Assignments"),
		vala.IsNotNil(deps.Subjects, "Subjects"),
		vala.IsNotNil(deps.Users, "Users"),
		vala.IsNotNil(deps.Tx, "Tx"),
		vala.IsNotNil(deps.MailSvc, "MailSvc"),
		vala.IsNotNil(deps.Events, "Events"),
		vala.IsNotNil(deps.Conf, "Conf"),
		vala.IsNotNil(deps.Logger, "Logger"),
	).CheckAndPanic()

	return &Service{
		repo:        deps.Repo,
		assignments: deps.Assignments,
		subjects:    deps.Subjects,
		users:       deps.Users,
		tx:          deps.Tx,
		mailSvc:     deps.MailSvc,
		events:      deps.Events,
		conf:        deps.Conf,
		logger:      deps.Logger,
	}
}

func (svc *Service) subjectExists(ctx context.Context) SubjectExists {
	return func(id string) (bool, error) {
		_, err := svc.subjects.GetSubject(ctx, id)
		if err != nil {
			if errors.Cause(err) == subject.ErrNotFound {
				return false, nil
			}
			return false, err
		}
		return true, nil
	}
}

// Submit diffs the form against the assignment and stores the result as a pending suggestion.
// Any user who can see the assignment may suggest.
func (svc *Service) Submit(ctx context.Context, p access.Principal, assignmentID string, form SubmitForm) (Suggestion, error) {
	a, err := svc.assignments.GetAssignment(ctx, assignmentID)
	if err != nil {
		return Suggestion{}, err
	}
	if !access.CanView(p, a) {
		return Suggestion{}, access.ErrDenied
	}

	diff, err := ComputeDiff(a, form.Form, svc.conf.Location())
	if err != nil {
		return Suggestion{}, err
	}
	if c, ok := diff.Changes.Get(FieldSubjectID); ok {
		exists, err := svc.subjectExists(ctx)(core.StringValue(c.Raw()))
		if err != nil {
			return Suggestion{}, errors.Wrap(err, "checking subject")
		}
		if !exists {
			return Suggestion{}, core.FieldInvalid(string(FieldSubjectID), subject.ErrNotFound)
		}
	}

	var msg *string
	if form.Message != nil {
		msg = core.StringPtr(core.CleanString(*form.Message))
	}
	s, err := svc.repo.CreateSuggestion(ctx, Suggestion{
		AssignmentID:    a.ID,
		SuggestedBy:     p.UserID,
		Message:         msg,
		ProposedChanges: diff.Changes,
		OriginalValues:  diff.Originals,
		Status:          StatusPending,
		CreatedAt:       core.NowFunc(),
	})
	if err != nil {
		return Suggestion{}, errors.Wrap(err, "creating suggestion")
	}
	svc.logger.Info("suggestion submitted", map[string]interface{}{
		"suggestion_id": s.ID, "assignment_id": a.ID, "fields": s.ProposedChanges.Fields(),
	})
	return s, nil
}

// Approve applies the suggestion's patch onto its assignment and marks it ACCEPTED, atomically.
func (svc *Service) Approve(ctx context.Context, p access.Principal, id string) (Suggestion, error) {
	return svc.review(ctx, p, id, StatusAccepted)
}

// Reject marks the suggestion REJECTED. The assignment is left untouched.
func (svc *Service) Reject(ctx context.Context, p access.Principal, id string) (Suggestion, error) {
	return svc.review(ctx, p, id, StatusRejected)
}

func (svc *Service) review(ctx context.Context, p access.Principal, id string, to Status) (Suggestion, error) {
	var (
		s Suggestion
		a assignment.Assignment
	)
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if s, err = svc.repo.GetSuggestion(ctx, id); err != nil {
			return err
		}
		if a, err = svc.assignments.GetAssignment(ctx, s.AssignmentID); err != nil {
			return errors.Wrap(err, "getting assignment")
		}
		if !access.CanReview(p, a) {
			return access.ErrDenied
		}
		if s.Status.Terminal() {
			return ErrAlreadyTerminal
		}

		now := core.NowFunc()
		if to == StatusAccepted {
			skipped, err := Apply(&a, s.ProposedChanges, svc.conf.Location(), svc.subjectExists(ctx))
			if err != nil {
				return err
			}
			if len(skipped) > 0 {
				svc.logger.Warn("suggested changes skipped", map[string]interface{}{
					"suggestion_id": s.ID, "fields": skipped,
				})
			}
			a.Touch(now)
			if a, err = svc.assignments.UpdateAssignment(ctx, a); err != nil {
				return errors.Wrap(err, "updating assignment")
			}
		}

		s, err = svc.repo.TransitionSuggestion(ctx, s.ID, to, p.UserID, now)
		return err
	})
	if err != nil {
		return Suggestion{}, err
	}

	svc.publish(ctx, core.NewEvent(core.EventSuggestionReviewed, map[string]interface{}{
		"suggestion_id": s.ID,
		"assignment_id": a.ID,
		"status":        s.Status,
		"reviewed_by":   p.UserID,
	}))
	svc.notifyAuthor(ctx, s, a)
	return s, nil
}

func (svc *Service) publish(ctx context.Context, evt core.Event) {
	if err := svc.events.Publish(ctx, evt); err != nil {
		svc.logger.Warn("publishing event", errors.Wrap(err, evt.Type))
	}
}

// notifyAuthor emails the outcome to the author. Failures are logged.
func (svc *Service) notifyAuthor(ctx context.Context, s Suggestion, a assignment.Assignment) {
	author, err := svc.users.GetUserByID(ctx, s.SuggestedBy)
	if err != nil {
		svc.logger.Warn("getting suggestion author", errors.Wrap(err, s.SuggestedBy))
		return
	}
	if !author.IsActive {
		return
	}

	outcome := "acceptée"
	if s.Status == StatusRejected {
		outcome = "refusée"
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: author.FullName(), Address: author.Email}},
		Subject:      "Suggestion " + outcome + " : " + a.Title,
		TemplateName: "suggestion_reviewed",
		TemplateData: map[string]interface{}{
			"FirstName": author.FirstName,
			"Title":     a.Title,
			"Outcome":   outcome,
		},
	})
}

// Summary is a suggestion as listed to reviewers.
type Summary struct {
	ID          string          `json:"id"`
	SuggestedBy string          `json:"suggested_by"` // author email
	Assignment  AssignmentBrief `json:"assignment"`
	Message     *string         `json:"message"`
	Status      Status          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
}

type AssignmentBrief struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	SubjectCode string `json:"subject_code"`
}

type SummaryPage struct {
	Items []Summary `json:"items"`
	core.PageInfo
}

// Pending returns the latest pending suggestions the reviewer may act on, at most PendingLimit.
func (svc *Service) Pending(ctx context.Context, p access.Principal) ([]Summary, error) {
	if !p.IsDelegate() {
		return nil, access.ErrDenied
	}
	page := core.Pagination{Page: 1, PageSize: PendingLimit}
	filter := QueryFilter{GroupIDs: access.ScopeGroupIDs(p), Status: StatusPending}

	list, _, err := svc.repo.QuerySuggestions(ctx, filter, &page)
	if err != nil {
		return nil, errors.Wrap(err, "querying suggestions")
	}
	return svc.summaries(ctx, list)
}

// History returns a page of every suggestion in the reviewer's groups, latest first.
func (svc *Service) History(ctx context.Context, p access.Principal, page core.Pagination) (SummaryPage, error) {
	if !p.IsDelegate() {
		return SummaryPage{}, access.ErrDenied
	}
	page = core.Pagination{Page: page.Page, PageSize: core.DefaultPageSize}.Clean()
	filter := QueryFilter{GroupIDs: access.ScopeGroupIDs(p)}

	list, total, err := svc.repo.QuerySuggestions(ctx, filter, &page)
	if err != nil {
		return SummaryPage{}, errors.Wrap(err, "querying suggestions")
	}
	items, err := svc.summaries(ctx, list)
	if err != nil {
		return SummaryPage{}, err
	}
	return SummaryPage{Items: items, PageInfo: core.NewPageInfo(page, total)}, nil
}

func (svc *Service) summaries(ctx context.Context, list []Suggestion) ([]Summary, error) {
	emails := make(map[string]string)
	codes := make(map[string]string)
	items := make([]Summary, 0, len(list))

	for _, s := range list {
		email, ok := emails[s.SuggestedBy]
		if !ok {
			usr, err := svc.users.GetUserByID(ctx, s.SuggestedBy)
			if err != nil && errors.Cause(err) != user.ErrNotFound {
				return nil, errors.Wrap(err, "getting author")
			}
			email = usr.Email
			emails[s.SuggestedBy] = email
		}

		a, err := svc.assignments.GetAssignment(ctx, s.AssignmentID)
		if err != nil {
			return nil, errors.Wrap(err, "getting assignment")
		}
		code, ok := codes[a.SubjectID]
		if !ok && a.SubjectID != "" {
			subj, err := svc.subjects.GetSubject(ctx, a.SubjectID)
			if err != nil && errors.Cause(err) != subject.ErrNotFound {
				return nil, errors.Wrap(err, "getting subject")
			}
			code = subj.Code
			codes[a.SubjectID] = code
		}

		items = append(items, Summary{
			ID:          s.ID,
			SuggestedBy: email,
			Assignment:  AssignmentBrief{ID: a.ID, Title: a.Title, SubjectCode: code},
			Message:     s.Message,
			Status:      s.Status,
			CreatedAt:   s.CreatedAt,
		})
	}
	return items, nil
}

// ChangeView pairs the original and proposed value of one field.
type ChangeView struct {
	Field    Field   `json:"field"`
	Original string  `json:"original"`
	Proposed *string `json:"proposed"`
}

// Review is what a reviewer sees before deciding.
type Review struct {
	Suggestion
	Assignment      assignment.Assignment `json:"assignment"`
	Author          string                `json:"author"`
	Changes         []ChangeView          `json:"changes"`
	DescriptionDiff string                `json:"description_diff,omitempty"`
}

// Get returns the review view of a suggestion.
func (svc *Service) Get(ctx context.Context, p access.Principal, id string) (Review, error) {
	s, err := svc.repo.GetSuggestion(ctx, id)
	if err != nil {
		return Review{}, err
	}
	a, err := svc.assignments.GetAssignment(ctx, s.AssignmentID)
	if err != nil {
		return Review{}, errors.Wrap(err, "getting assignment")
	}
	if !access.CanReview(p, a) {
		return Review{}, access.ErrDenied
	}

	rv := Review{Suggestion: s, Assignment: a, Changes: make([]ChangeView, 0, len(s.ProposedChanges))}
	if usr, err := svc.users.GetUserByID(ctx, s.SuggestedBy); err == nil {
		rv.Author = usr.Email
	}
	for _, c := range s.ProposedChanges {
		rv.Changes = append(rv.Changes, ChangeView{Field: c.Field(), Original: s.OriginalValues[c.Field()], Proposed: c.Raw()})
	}
	if c, ok := s.ProposedChanges.Get(FieldDescription); ok {
		if rv.DescriptionDiff, err = DescriptionDiff(s.OriginalValues[FieldDescription], core.StringValue(c.Raw())); err != nil {
			return Review{}, errors.Wrap(err, "diffing description")
		}
	}
	return rv, nil
}

// DescriptionDiff renders a line based unified diff between two descriptions.
func DescriptionDiff(original, proposed string) (string, error) {
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(ensureNewline(original)),
		B:        difflib.SplitLines(ensureNewline(proposed)),
		FromFile: "original",
		ToFile:   "proposed",
		Context:  3,
	})
}

func ensureNewline(s string) string {
	if s == "" || strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}
