package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/ragguard/pkg/domain/interfaces"
	"github.com/secmon-lab/ragguard/pkg/domain/model"
)

// DefaultCheckTimeout bounds a single policy decision
const DefaultCheckTimeout = 5 * time.Second

// Gate decides whether a principal may view a document. Every call asks
// the policy decision point again; nothing is cached.
type Gate struct {
	pdp     interfaces.PolicyDecisionPoint
	timeout time.Duration
}

// GateOption configures a Gate
type GateOption func(*Gate)

// WithCheckTimeout sets the timeout of one policy decision
func WithCheckTimeout(d time.Duration) GateOption {
	return func(g *Gate) {
		g.timeout = d
	}
}

func NewGate(pdp interfaces.PolicyDecisionPoint, opts ...GateOption) *Gate {
	g := &Gate{pdp: pdp, timeout: DefaultCheckTimeout}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Check returns true only when the policy decision point explicitly
// allows principal to view id. Any failure to decide is returned as
// (false, ErrPolicyUnavailable) so it can be told apart from a deny.
func (g *Gate) Check(ctx context.Context, principal model.Principal, id model.DocumentID) (bool, error) {
	if principal == "" || id == "" {
		return false, nil
	}

	query := model.NewDocumentViewQuery(principal, id)

	checkCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		checkCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	allowed, err := g.pdp.Check(checkCtx, query)
	if err != nil {
		if errors.Is(err, model.ErrPolicyUnavailable) {
			return false, err
		}
		return false, goerr.Wrap(model.ErrPolicyUnavailable, "policy check failed",
			goerr.V("cause", err.Error()),
			goerr.V("principal", query.Principal),
			goerr.V("resource", query.Resource),
		)
	}

	return allowed, nil
}
