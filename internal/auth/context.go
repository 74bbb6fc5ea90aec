package auth

import "context"

type Role string

const (
	RoleAdmin Role = "admin"
	RoleHost  Role = "host"
	RoleGift  Role = "gift"
)

// Allows reports whether r may act as want. Admin may act as any role.
func (r Role) Allows(want Role) bool {
	return r == want || r == RoleAdmin
}

type contextKey struct{}

// Operator is the authenticated staff member behind a request. Name is
// recorded as the host id on completions and as redeemed_by on gifts.
type Operator struct {
	Name string
	Role Role
}

func WithOperator(ctx context.Context, op Operator) context.Context {
	return context.WithValue(ctx, contextKey{}, op)
}

func FromContext(ctx context.Context) (Operator, bool) {
	op, ok := ctx.Value(contextKey{}).(Operator)
	return op, ok
}

func OperatorName(ctx context.Context) string {
	op, ok := FromContext(ctx)
	if !ok {
		return ""
	}
	return op.Name
}
