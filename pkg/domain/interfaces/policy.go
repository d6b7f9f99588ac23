package interfaces

import (
	"context"

	"github.com/secmon-lab/ragguard/pkg/domain/model"
)

// PolicyDecisionPoint evaluates one authorization query. A non-nil error
// means no decision was made; callers must treat it as a deny.
type PolicyDecisionPoint interface {
	Check(ctx context.Context, query model.AuthorizationQuery) (bool, error)
}
