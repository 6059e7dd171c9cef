package cmd

import (
	"testing"

	"contactsync/internal/domain/contact"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitFlags(t *testing.T) {
	t.Cleanup(func() {
		accountName, initDisplayName = "", ""
	})

	require.NoError(t, initCmd.Flags().Parse([]string{"--name", "alice", "--display-name", "Alice Doe"}))

	assert.Equal(t, "alice", accountName)
	assert.Equal(t, "Alice Doe", initDisplayName)
	assert.Equal(t, "John Doe", displayName(contact.Contact{Details: []contact.Change{
		contact.New(contact.KeyName, "Doe;John", contact.FlagNone),
	}}))
}
