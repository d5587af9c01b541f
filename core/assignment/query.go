package assignment

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/NoheilaRamdani/sae401/core"
	"github.com/NoheilaRamdani/sae401/core/access"
	"github.com/NoheilaRamdani/sae401/core/subject"
)

// scopedFilter builds the repository filter: the principal's group scope AND the user filters.
func scopedFilter(p access.Principal, f Filters) QueryFilter {
	f.Clean()
	return QueryFilter{
		GroupIDs:  access.ScopeGroupIDs(p),
		GroupID:   f.GroupID,
		SubjectID: f.SubjectID,
		Type:      f.Type,
	}
}

// subjectCache resolves subjects once per listing.
type subjectCache struct {
	repo  subject.Repository
	items map[string]*subject.Subject
}

func (c *subjectCache) get(ctx context.Context, id string) (*subject.Subject, error) {
	if id == "" {
		return nil, nil
	}
	if subj, ok := c.items[id]; ok {
		return subj, nil
	}
	subj, err := c.repo.GetSubject(ctx, id)
	if err != nil {
		if errors.Cause(err) != subject.ErrNotFound {
			return nil, err
		}
		c.items[id] = nil
		return nil, nil
	}
	c.items[id] = &subj
	return &subj, nil
}

func (svc *Service) newSubjectCache() *subjectCache {
	return &subjectCache{repo: svc.subjects, items: make(map[string]*subject.Subject)}
}

func (svc *Service) view(ctx context.Context, a Assignment, now time.Time) View {
	subj, err := svc.newSubjectCache().get(ctx, a.SubjectID)
	if err != nil {
		svc.logger.Error("getting subject", errors.Wrap(err, a.SubjectID))
	}
	return NewView(a, subj, now)
}

func (svc *Service) views(ctx context.Context, list []Assignment, now time.Time) ([]View, error) {
	cache := svc.newSubjectCache()
	views := make([]View, 0, len(list))
	for _, a := range list {
		subj, err := cache.get(ctx, a.SubjectID)
		if err != nil {
			return nil, errors.Wrap(err, "getting subject")
		}
		views = append(views, NewView(a, subj, now))
	}
	return views, nil
}

// ListUpcoming returns the assignments not yet due that the principal can see, soonest first.
func (svc *Service) ListUpcoming(ctx context.Context, p access.Principal, f Filters) ([]View, error) {
	now := core.NowFunc()
	filter := scopedFilter(p, f)
	filter.DueFrom = &now

	list, _, err := svc.repo.QueryAssignments(ctx, filter, orderByDueDate, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	return svc.views(ctx, list, now)
}

// ListHistory returns every assignment the principal can see, past ones included, latest due first.
func (svc *Service) ListHistory(ctx context.Context, p access.Principal, f Filters, page core.Pagination) (Page, error) {
	now := core.NowFunc()
	page = page.Clean()
	ordering := core.DBOrdering{Field: orderByDueDate.Field, Ascending: false}

	list, total, err := svc.repo.QueryAssignments(ctx, scopedFilter(p, f), ordering, &page)
	if err != nil {
		return Page{}, errors.Wrap(err, "querying assignments")
	}
	views, err := svc.views(ctx, list, now)
	if err != nil {
		return Page{}, err
	}
	return Page{Items: views, PageInfo: core.NewPageInfo(page, total)}, nil
}

// DueSoon returns the assignments, of every group, for which a due-soon notice fires at now.
func (svc *Service) DueSoon(ctx context.Context, now time.Time) ([]View, error) {
	notCompleted := false
	until := now.Add(soonWithin + time.Hour)
	filter := QueryFilter{DueFrom: &now, DueBefore: &until, IsCompleted: &notCompleted}

	list, _, err := svc.repo.QueryAssignments(ctx, filter, orderByDueDate, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	due := make([]Assignment, 0, len(list))
	for _, a := range list {
		if NeedsReminder(a, now) {
			due = append(due, a)
		}
	}
	return svc.views(ctx, due, now)
}

// RemindDueSoon notifies the members of every assignment DueSoon returns. Failures are logged.
func (svc *Service) RemindDueSoon(ctx context.Context, now time.Time) ([]View, error) {
	views, err := svc.DueSoon(ctx, now)
	if err != nil {
		return nil, err
	}
	for _, v := range views {
		svc.notifier.DueSoon(ctx, v)
		payload := eventPayload(v.Assignment)
		payload["hours_until_due"] = v.HoursUntilDue
		svc.publish(ctx, core.NewEvent(core.EventAssignmentDueSoon, payload))
	}
	return views, nil
}
