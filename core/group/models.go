package group

import (
	"time"

	"github.com/NoheilaRamdani/sae401/core"
)

const (
	// MaxActiveDelegates is the number of delegates a group may have at once.
	MaxActiveDelegates = 2
	// DelegateTermMonths is the length of a delegate term.
	DelegateTermMonths = 6
)

type Group struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Type        string     `json:"type"` // TP, TD, CM...
	Description *string    `json:"description"`
	UpdatedAt   *time.Time `json:"updated_at"`
}

// Delegate is a user's term as delegate of a group.
type Delegate struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	GroupID   string    `json:"group_id"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	IsActive  bool      `json:"is_active"`
}

// ActiveAt reports whether the term is open and not yet expired at now.
func (d Delegate) ActiveAt(now time.Time) bool {
	return d.IsActive && !now.After(d.EndDate)
}

func newDelegate(userID, groupID string, now time.Time) Delegate {
	return Delegate{
		UserID:    userID,
		GroupID:   groupID,
		StartDate: now,
		EndDate:   now.AddDate(0, DelegateTermMonths, 0),
		IsActive:  true,
	}
}

type NewGroup struct {
	Name        string  `json:"name" validate:"required,notblank,max=255"`
	Type        string  `json:"type" validate:"required,notblank,max=50"`
	Description *string `json:"description"`
}

func (ng *NewGroup) Clean() {
	ng.Name = core.CleanString(ng.Name)
	ng.Type = core.CleanString(ng.Type, false)
	if ng.Description != nil {
		ng.Description = core.StringPtr(core.CleanString(*ng.Description))
	}
}

// Member is a group member as listed to admins and delegates.
type Member struct {
	UserID     string `json:"user_id"`
	Email      string `json:"email"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	IsDelegate bool   `json:"is_delegate"`
}
