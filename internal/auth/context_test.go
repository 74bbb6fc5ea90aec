package auth

import (
	"context"
	"testing"
)

func TestWithOperatorAndFromContext(t *testing.T) {
	ctx := WithOperator(context.Background(), Operator{Name: "Alice Johnson", Role: RoleHost})
	got, ok := FromContext(ctx)
	if !ok {
		t.Fatal("expected Operator in context")
	}
	if got.Name != "Alice Johnson" {
		t.Errorf("Name = %q, want %q", got.Name, "Alice Johnson")
	}
	if got.Role != RoleHost {
		t.Errorf("Role = %q, want %q", got.Role, RoleHost)
	}
}

func TestFromContextMissing(t *testing.T) {
	if _, ok := FromContext(context.Background()); ok {
		t.Error("expected false for missing Operator")
	}
	if OperatorName(context.Background()) != "" {
		t.Error("expected empty name for missing context")
	}
}

func TestRoleAllows(t *testing.T) {
	tests := []struct {
		have, want Role
		ok         bool
	}{
		{RoleAdmin, RoleHost, true},
		{RoleAdmin, RoleGift, true},
		{RoleHost, RoleHost, true},
		{RoleHost, RoleGift, false},
		{RoleGift, RoleAdmin, false},
	}
	for _, tt := range tests {
		if got := tt.have.Allows(tt.want); got != tt.ok {
			t.Errorf("%s.Allows(%s) = %v, want %v", tt.have, tt.want, got, tt.ok)
		}
	}
}
