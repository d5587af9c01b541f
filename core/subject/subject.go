// Package subject holds the courses assignments are attached to.
package subject

import (
	"context"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/NoheilaRamdani/sae401/core"
)

// DefaultColor is used by calendar views for subjects without a color.
const DefaultColor = "#3788d8"

var ErrNotFound = errors.New("subject not found")

type Subject struct {
	ID    string `json:"id"`
	Code  string `json:"code"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// DisplayColor falls back to DefaultColor.
func (s Subject) DisplayColor() string {
	if s.Color == "" {
		return DefaultColor
	}
	return s.Color
}

type NewSubject struct {
	Code  string `json:"code" validate:"required,notblank,max=20"`
	Name  string `json:"name" validate:"required,notblank,max=255"`
	Color string `json:"color" validate:"omitempty,hexcolor"`
}

func (ns *NewSubject) Clean() {
	ns.Code = core.CleanString(ns.Code)
	ns.Name = core.CleanString(ns.Name)
	ns.Color = core.CleanString(ns.Color, true /* lower */)
}

type (
	Repository interface {
		CreateSubject(ctx context.Context, sub Subject) (Subject, error)
		GetSubject(ctx context.Context, id string) (Subject, error)
		// QuerySubjects returns every subject ordered by code.
		QuerySubjects(ctx context.Context) ([]Subject, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	vala.BeginValidation().Validate(vala.IsNotNil(repo, "repo")).CheckAndPanic()
	return &Service{repo: repo}
}

func (svc *Service) Create(ctx context.Context, ns NewSubject) (Subject, error) {
	ns.Clean()
	if ns.Color == "" {
		ns.Color = DefaultColor
	}
	sub, err := svc.repo.CreateSubject(ctx, Subject{Code: ns.Code, Name: ns.Name, Color: ns.Color})
	return sub, errors.Wrap(err, "creating subject")
}

func (svc *Service) Get(ctx context.Context, id string) (Subject, error) {
	return svc.repo.GetSubject(ctx, id)
}

func (svc *Service) Query(ctx context.Context) ([]Subject, error) {
	return svc.repo.QuerySubjects(ctx)
}
