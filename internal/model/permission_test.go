package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleDefaults(t *testing.T) {
	for _, c := range AllCapabilities {
		assert.True(t, RoleDefault(RoleDoctor, c), "doctor should default to %s", c)
		assert.False(t, RoleDefault(RoleAdmin, c), "admin should not default to %s", c)
	}

	assistant := DefaultCapabilities(RoleAssistant)
	assert.True(t, assistant[CanManageOPD])
	assert.True(t, assistant[CanViewCollections])
	assert.False(t, assistant[CanDeletePatients])
	assert.False(t, assistant[CanCreateVisits])
	assert.False(t, assistant[CanEditPrintSettings])
}

func TestUserPermissionSetAndAllows(t *testing.T) {
	p := NewUserPermission(uuid.New(), uuid.New(), RoleAssistant, time.Now())
	assert.False(t, p.Allows(CanDeletePatients))

	require.NoError(t, p.Set(CanDeletePatients, true))
	require.NoError(t, p.Set(CanViewOPD, false))
	assert.True(t, p.Allows(CanDeletePatients))
	assert.False(t, p.Allows(CanViewOPD))

	assert.Error(t, p.Set(Capability("can_fly"), true))
	assert.False(t, p.Allows(Capability("can_fly")))

	p.ApplyDefaults(RoleAssistant)
	assert.Equal(t, DefaultCapabilities(RoleAssistant), p.Capabilities())
}

func TestParseCapability(t *testing.T) {
	c, err := ParseCapability("can_manage_opd")
	require.NoError(t, err)
	assert.Equal(t, CanManageOPD, c)

	_, err = ParseCapability("can_manage_everything")
	assert.Error(t, err)
	assert.Len(t, AllCapabilities, 15)
}
