package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChannelsForClient(t *testing.T) {
	channels := ChannelsFor(Principal{UserID: 12, Role: RoleClient})
	assert.Equal(t, []string{"user:12"}, channels, "clients never join role rooms")
}

func TestChannelsForStaff(t *testing.T) {
	assert.Equal(t, []string{"user:3", "role:agent"}, ChannelsFor(Principal{UserID: 3, Role: RoleAgent}))
	assert.Equal(t, []string{"user:4", "role:admin"}, ChannelsFor(Principal{UserID: 4, Role: RoleAdmin}))
}

func TestRoleHelpers(t *testing.T) {
	assert.True(t, RoleAgent.IsStaff())
	assert.True(t, RoleAdmin.IsStaff())
	assert.False(t, RoleClient.IsStaff())
	assert.False(t, Role("owner").Valid())
}
