package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type resource struct {
	groups  []string
	creator string
}

func (r resource) ScopeGroupIDs() []string { return r.groups }
func (r resource) CreatorID() string       { return r.creator }

func TestPolicy(t *testing.T) {
	res := resource{groups: []string{"g1", "g2"}, creator: "creator"}

	admin := Principal{UserID: "admin", Roles: []string{RoleUser, RoleAdmin}}
	member := Principal{UserID: "member", Roles: []string{RoleUser}, GroupIDs: []string{"g2"}}
	outsider := Principal{UserID: "outsider", Roles: []string{RoleUser}, GroupIDs: []string{"g3"}}
	creator := Principal{UserID: "creator", Roles: []string{RoleUser, RoleDelegate}, GroupIDs: []string{"g9"}}
	delegate := Principal{UserID: "delegate", Roles: []string{RoleUser, RoleDelegate}, GroupIDs: []string{"g1"}}
	foreignDelegate := Principal{UserID: "fd", Roles: []string{RoleDelegate}, GroupIDs: []string{"g3"}}

	tests := []struct {
		name       string
		p          Principal
		wantView   bool
		wantMutate bool
		wantReview bool
	}{
		{name: "admin", p: admin, wantView: true, wantMutate: true, wantReview: true},
		{name: "group member", p: member, wantView: true, wantMutate: true},
		{name: "outsider", p: outsider},
		{name: "creator outside groups", p: creator, wantMutate: true},
		{name: "delegate of group", p: delegate, wantView: true, wantMutate: true, wantReview: true},
		{name: "delegate of other group", p: foreignDelegate},
		{name: "zero principal", p: Principal{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantView, CanView(tt.p, res), "CanView")
			assert.Equal(t, tt.wantMutate, CanMutate(tt.p, res), "CanMutate")
			assert.Equal(t, tt.wantReview, CanReview(tt.p, res), "CanReview")
		})
	}
}

func TestPolicy_emptyCreatorNeverMatches(t *testing.T) {
	res := resource{groups: []string{"g1"}}
	assert.False(t, CanMutate(Principal{GroupIDs: []string{"g2"}}, res))
}

func TestScopeGroupIDs(t *testing.T) {
	assert.Nil(t, ScopeGroupIDs(Principal{Roles: []string{RoleAdmin}}))
	assert.Equal(t, []string{}, ScopeGroupIDs(Principal{}))
	assert.Equal(t, []string{"g1"}, ScopeGroupIDs(Principal{GroupIDs: []string{"g1"}}))
}

func TestPrincipal_roles(t *testing.T) {
	p := Principal{Roles: []string{RoleAdmin}}
	assert.True(t, p.HasRole(RoleUser), "base role is implicit")
	assert.True(t, p.IsDelegate(), "admins hold the delegate capability")
	assert.False(t, Principal{}.IsDelegate())
}
