package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/NoheilaRamdani/sae401/core"
	"github.com/NoheilaRamdani/sae401/core/subject"
)

var subjectColumns = []string{"id", "code", "name", "color"}

type subjectRow struct {
	ID    string  `db:"id"`
	Code  string  `db:"code"`
	Name  string  `db:"name"`
	Color *string `db:"color"`
}

func (r subjectRow) subject() subject.Subject {
	return subject.Subject{ID: r.ID, Code: r.Code, Name: r.Name, Color: core.StringValue(r.Color)}
}

type subjectRepository struct {
	repository
}

var _ subject.Repository = (*subjectRepository)(nil) // interface compliance check

func NewSubjectRepository(db *sqlx.DB) *subjectRepository {
	return &subjectRepository{repository{db: db}}
}

func (repo subjectRepository) CreateSubject(ctx context.Context, sub subject.Subject) (subject.Subject, error) {
	sub.ID = uuid.New().String()
	_, err := repo.run(ctx, psql.Insert("subject").
		Columns(subjectColumns...).
		Values(sub.ID, sub.Code, sub.Name, core.StringPtr(sub.Color)))
	if err != nil {
		return subject.Subject{}, errors.Wrap(err, "inserting subject")
	}
	return sub, nil
}

func (repo subjectRepository) GetSubject(ctx context.Context, id string) (subject.Subject, error) {
	if !validID(id) {
		return subject.Subject{}, subject.ErrNotFound
	}
	var row subjectRow
	if err := repo.get(ctx, &row, psql.Select(subjectColumns...).From("subject").Where(sq.Eq{"id": id})); err != nil {
		return subject.Subject{}, trapNoRowsErr(err, subject.ErrNotFound, "getting subject")
	}
	return row.subject(), nil
}

func (repo subjectRepository) QuerySubjects(ctx context.Context) ([]subject.Subject, error) {
	var rows []subjectRow
	if err := repo.selectAll(ctx, &rows, psql.Select(subjectColumns...).From("subject").OrderBy("code")); err != nil {
		return nil, errors.Wrap(err, "querying subjects")
	}
	subs := make([]subject.Subject, 0, len(rows))
	for _, r := range rows {
		subs = append(subs, r.subject())
	}
	return subs, nil
}
