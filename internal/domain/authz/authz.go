// Package authz holds the authorization precondition the loan engine
// asserts on. Verifying who signed what happens outside the engine; the
// transport only records the resulting grants in the request context.
package authz

import "context"

type Op string

const (
	OpCreateLoan    Op = "create_loan"
	OpMakeRepayment Op = "make_repayment"
	OpLiquidate     Op = "liquidate_collateral"
	OpDeposit       Op = "deposit"
)

type Authorizer interface {
	Authorized(ctx context.Context, principal string, op Op) bool
}

// AuthorizerFunc adapts a plain function.
type AuthorizerFunc func(ctx context.Context, principal string, op Op) bool

func (f AuthorizerFunc) Authorized(ctx context.Context, principal string, op Op) bool {
	return f(ctx, principal, op)
}

// Grants maps a principal to the operations it authorized for this call.
type Grants map[string]map[Op]struct{}

func (g Grants) Add(principal string, ops ...Op) {
	set, ok := g[principal]
	if !ok {
		set = make(map[Op]struct{}, len(ops))
		g[principal] = set
	}
	for _, op := range ops {
		set[op] = struct{}{}
	}
}

func (g Grants) Has(principal string, op Op) bool {
	_, ok := g[principal][op]
	return ok
}

type grantsKey struct{}

func WithGrants(ctx context.Context, g Grants) context.Context {
	return context.WithValue(ctx, grantsKey{}, g)
}

func GrantsFrom(ctx context.Context) Grants {
	g, _ := ctx.Value(grantsKey{}).(Grants)
	return g
}

// ContextAuthorizer answers from the grants stored by WithGrants. A call
// without grants authorizes nobody.
type ContextAuthorizer struct{}

func (ContextAuthorizer) Authorized(ctx context.Context, principal string, op Op) bool {
	if principal == "" {
		return false
	}
	return GrantsFrom(ctx).Has(principal, op)
}
