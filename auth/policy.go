package auth

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
)

// Wildcard matches any user or resource name in a Rule.
const Wildcard = "*"

// Rule grants permissions on resources of one kind.
type Rule struct {
	User     string     `json:"user"`
	Resource Resource   `json:"resource"`
	Name     string     `json:"name"`
	Allow    Permission `json:"allow"`
}

func (r Rule) matches(user string, res Resource, name string) bool {
	if r.User != Wildcard && r.User != user {
		return false
	}
	if r.Resource != res && r.Resource != Wildcard {
		return false
	}
	return r.Name == Wildcard || r.Name == "" || strings.EqualFold(r.Name, name)
}

// Policy is a Gate granting the union of the permissions of matching rules.
// Anything not granted is denied.
type Policy struct {
	Rules []Rule
}

func (p *Policy) Check(ctx context.Context, res Resource, perm Permission, name string) error {
	user := User(ctx)
	var granted Permission
	for _, r := range p.Rules {
		if r.matches(user, res, name) {
			granted |= r.Allow
		}
	}
	if granted&perm == perm {
		return nil
	}
	return errors.Wrapf(ErrAccessDenied, "user %q cannot %v %s %q", user, perm, res, name)
}
