package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/adminpanel/apiserver/types"
)

func TestCheckSelfAction(t *testing.T) {
	actor := types.Identity{ID: 7, Role: types.RoleAdmin}

	tests := []struct {
		name    string
		action  AdminAction
		target  int
		wantErr bool
	}{
		{name: "block self", action: ActionBlock, target: 7},
		{name: "unblock self", action: ActionUnblock, target: 7, wantErr: true},
		{name: "delete self", action: ActionDelete, target: 7, wantErr: true},
		{name: "block other", action: ActionBlock, target: 8},
		{name: "unblock other", action: ActionUnblock, target: 8},
		{name: "delete other", action: ActionDelete, target: 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckSelfAction(actor, tt.action, tt.target)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrForbidden)
				return
			}
			assert.NoError(t, err)
		})
	}
}
