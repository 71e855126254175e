package auth

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func TestAllowAll(t *testing.T) {
	require.NoError(t, AllowAll{}.Check(context.Background(), Class, All, "V"))
}

func TestPolicy(t *testing.T) {
	p := &Policy{Rules: []Rule{
		{User: Wildcard, Resource: Wildcard, Allow: Read},
		{User: "admin", Resource: Wildcard, Allow: All},
		{User: "bob", Resource: Class, Name: "Person", Allow: Update},
	}}
	anon := context.Background()
	bob := WithUser(anon, "bob")
	admin := WithUser(anon, "admin")

	require.NoError(t, p.Check(anon, Class, Read, "Person"))
	err := p.Check(anon, Class, Update, "Person")
	require.True(t, errors.Is(err, ErrAccessDenied), "%v", err)

	require.NoError(t, p.Check(bob, Class, Read|Update, "person"))
	require.Error(t, p.Check(bob, Class, Update, "Animal"))
	require.Error(t, p.Check(bob, Class, Delete, "Person"))

	require.NoError(t, p.Check(admin, Index, Create|Delete, "Person.name"))
}

func TestPermissionString(t *testing.T) {
	require.Equal(t, "read|update", (Read | Update).String())
	require.Equal(t, "none", Permission(0).String())
}
