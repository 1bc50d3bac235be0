// Package gate decides, for every inbound call to a protected operation,
// who the caller is, whether they may perform the operation, and whether
// they have remaining request capacity right now.
package gate

import (
	"context"
)

type DenyKind string

const (
	DenyUnauthenticated DenyKind = "unauthenticated"
	DenyForbidden       DenyKind = "forbidden"
	DenyThrottled       DenyKind = "throttled"
	DenyUnavailable     DenyKind = "unavailable"
)

// Verdict is the single admit/deny outcome handlers consume. Limit and
// Current are set on throttle denials.
type Verdict struct {
	Allowed   bool
	Principal *Principal
	Kind      DenyKind
	Detail    string
	Limit     int
	Current   int
}

func admit(p *Principal) Verdict {
	return Verdict{Allowed: true, Principal: p}
}

func deny(kind DenyKind, detail string) Verdict {
	return Verdict{Kind: kind, Detail: detail}
}

// Gate orchestrates resolution, scope check and rate limiting in that
// fixed order, short-circuiting on the first failing stage. Rejecting on
// identity first avoids a wasted distributed counter increment.
type Gate struct {
	resolver *Resolver
	policy   *Policy
	limiter  RateLimiter
}

func New(resolver *Resolver, policy *Policy, limiter RateLimiter) *Gate {
	return &Gate{resolver: resolver, policy: policy, limiter: limiter}
}

// Check is the sole entry point for protected operations. requiredScope
// may be empty for operations gated on identity alone (key management).
func (g *Gate) Check(ctx context.Context, cred Credential, requiredScope string) Verdict {
	principal, err := g.resolver.Resolve(cred)
	if err != nil {
		return deny(DenyUnauthenticated, err.Error())
	}

	if requiredScope != "" && !HasScope(principal.Scopes, requiredScope) {
		return deny(DenyForbidden, "missing required scope "+requiredScope)
	}

	limit := g.policy.RequestsPerSecond(principal.Tier)
	if limit <= 0 {
		// Unlimited tier bypasses the counter entirely; unlimited
		// traffic must not pollute the counter store.
		return admit(principal)
	}

	decision, err := g.limiter.Admit(ctx, principal.UserID, limit)
	if err != nil {
		return deny(DenyUnavailable, "rate limiter unavailable")
	}
	if !decision.Allowed {
		v := deny(DenyThrottled, "rate limit exceeded")
		v.Limit = decision.Limit
		v.Current = decision.Current
		return v
	}

	return admit(principal)
}
