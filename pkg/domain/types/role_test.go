package types_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/ragguard/pkg/domain/types"
)

func TestRole_IsValid(t *testing.T) {
	tests := []struct {
		name string
		role types.Role
		want bool
	}{
		{"user", types.RoleUser, true},
		{"assistant", types.RoleAssistant, true},
		{"error", types.RoleError, true},
		{"system is not a turn role", types.Role("system"), false},
		{"empty", types.Role(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gt.Value(t, tt.role.IsValid()).Equal(tt.want)
		})
	}
}

func TestParseRole(t *testing.T) {
	t.Run("parses every known role", func(t *testing.T) {
		for _, r := range types.AllRoles() {
			parsed, err := types.ParseRole(r.String())
			gt.NoError(t, err).Required()
			gt.Value(t, parsed).Equal(r)
		}
	})

	t.Run("rejects unknown role", func(t *testing.T) {
		_, err := types.ParseRole("tool")
		gt.Value(t, err).NotNil()
	})
}
