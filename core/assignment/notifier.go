package assignment

import (
	"context"
	"net/mail"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/NoheilaRamdani/sae401/core"
	"github.com/NoheilaRamdani/sae401/core/group"
	"github.com/NoheilaRamdani/sae401/core/subject"
	"github.com/NoheilaRamdani/sae401/core/user"
)

// Notifier emails the members of an assignment's groups. Delivery is best-effort: errors are
// logged, never returned.
type Notifier struct {
	users   user.Repository
	groups  group.Repository
	mailSvc core.EmailService
	conf    *core.Config
	logger  core.Logger
}

func NewNotifier(users user.Repository, groups group.Repository, mailSvc core.EmailService, conf *core.Config, logger core.Logger) *Notifier {
	vala.BeginValidation().Validate(
		vala.IsNotNil(users, "users"),
		vala.IsNotNil(groups, "groups"),
		vala.IsNotNil(mailSvc, "mailSvc"),
		vala.IsNotNil(conf, "conf"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	return &Notifier{users: users, groups: groups, mailSvc: mailSvc, conf: conf, logger: logger}
}

// recipients returns the distinct active members of the groups holding the base role.
func (n *Notifier) recipients(ctx context.Context, groupIDs []string) ([]user.User, error) {
	ids, err := n.groups.MemberIDs(ctx, groupIDs...)
	if err != nil {
		return nil, errors.Wrap(err, "querying members")
	}

	usrs := make([]user.User, 0, len(ids))
	for _, id := range core.UniqueStrings(ids) {
		usr, err := n.users.GetUserByID(ctx, id)
		if err != nil {
			if errors.Cause(err) == user.ErrNotFound {
				continue
			}
			return nil, errors.Wrap(err, "getting member")
		}
		if usr.IsActive && usr.HasRole(user.RoleUser) {
			usrs = append(usrs, usr)
		}
	}
	return usrs, nil
}

func (n *Notifier) send(ctx context.Context, a Assignment, subjectLine, tmpl string, data func(usr user.User) interface{}) {
	usrs, err := n.recipients(ctx, a.GroupIDs)
	if err != nil {
		n.logger.Error("notifying assignment members", errors.Wrap(err, a.ID))
		return
	}

	messages := make([]*core.EmailMessage, 0, len(usrs))
	for _, usr := range usrs {
		messages = append(messages, &core.EmailMessage{
			To:           []mail.Address{{Name: usr.FullName(), Address: usr.Email}},
			Subject:      subjectLine,
			TemplateName: tmpl,
			TemplateData: data(usr),
		})
	}
	if len(messages) > 0 {
		n.mailSvc.SendMessages(messages...)
	}
	n.logger.Debug("assignment notification queued", map[string]interface{}{
		"assignment_id": a.ID, "template": tmpl, "recipients": len(messages),
	})
}

// AssignmentCreated sends one email per member announcing a.
func (n *Notifier) AssignmentCreated(ctx context.Context, a Assignment, subj subject.Subject) {
	loc := n.conf.Location()
	n.send(ctx, a, "Nouveau devoir ajouté : "+a.Title, "assignment_created", func(usr user.User) interface{} {
		return map[string]interface{}{
			"FirstName":   usr.FirstName,
			"Title":       a.Title,
			"Subject":     subj.Name,
			"DueDate":     a.DueDate.In(loc).Format(core.DisplayLayout),
			"Description": core.StringValue(a.Description),
		}
	})
}

// DueSoon reminds the members that v is due in v.HoursUntilDue hours.
func (n *Notifier) DueSoon(ctx context.Context, v View) {
	loc := n.conf.Location()
	n.send(ctx, v.Assignment, "Rappel : "+v.Title, "due_soon", func(usr user.User) interface{} {
		return map[string]interface{}{
			"FirstName":     usr.FirstName,
			"Title":         v.Title,
			"HoursUntilDue": v.HoursUntilDue,
			"DueDate":       v.DueDate.In(loc).Format(core.DisplayLayout),
		}
	})
}
