package inmemdb

import (
	"context"
	"sort"

	"github.com/NoheilaRamdani/sae401/core/subject"
)

type subjectRepository struct {
	db *DB
}

var _ subject.Repository = (*subjectRepository)(nil) // interface compliance check

func NewSubjectRepository(db *DB) *subjectRepository {
	return &subjectRepository{db: db}
}

func (repo *subjectRepository) CreateSubject(ctx context.Context, sub subject.Subject) (subject.Subject, error) {
	defer repo.db.lock(ctx)()

	sub.ID = newID()
	repo.db.subject.rows[sub.ID] = sub
	return sub, nil
}

func (repo *subjectRepository) GetSubject(ctx context.Context, id string) (subject.Subject, error) {
	defer repo.db.rlock(ctx)()

	if sub, ok := repo.db.subject.rows[id]; ok {
		return sub, nil
	}
	return subject.Subject{}, subject.ErrNotFound
}

func (repo *subjectRepository) QuerySubjects(ctx context.Context) ([]subject.Subject, error) {
	defer repo.db.rlock(ctx)()

	subs := make([]subject.Subject, 0, len(repo.db.subject.rows))
	for _, sub := range repo.db.subject.rows {
		subs = append(subs, sub)
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].Code < subs[j].Code })
	return subs, nil
}

// DeleteSubject is only used by tests exercising changes to a removed subject.
func (repo *subjectRepository) DeleteSubject(ctx context.Context, id string) error {
	defer repo.db.lock(ctx)()
	delete(repo.db.subject.rows, id)
	return nil
}
