package usecase

import (
	"context"
	"errors"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/ragguard/pkg/domain/interfaces"
	"github.com/secmon-lab/ragguard/pkg/domain/model"
	"github.com/secmon-lab/ragguard/pkg/utils/logging"
)

// DefaultOverFetch is how many candidates per requested document are
// taken from the index before authorization filtering
const DefaultOverFetch = 2

// Retriever finds documents that are both relevant to a query and viewable
// by the asking principal.
type Retriever struct {
	index             interfaces.EmbeddingIndex
	gate              *Gate
	overFetch         int
	failOnPolicyError bool
}

// RetrieverOption configures a Retriever
type RetrieverOption func(*Retriever)

// WithOverFetch sets the candidate multiplier. Values below 1 are ignored.
func WithOverFetch(factor int) RetrieverOption {
	return func(r *Retriever) {
		if factor >= 1 {
			r.overFetch = factor
		}
	}
}

// WithFailOnPolicyError makes Retrieve return ErrPolicyUnavailable instead
// of dropping the candidates that could not be checked.
func WithFailOnPolicyError(fail bool) RetrieverOption {
	return func(r *Retriever) {
		r.failOnPolicyError = fail
	}
}

func NewRetriever(index interfaces.EmbeddingIndex, gate *Gate, opts ...RetrieverOption) *Retriever {
	r := &Retriever{
		index:     index,
		gate:      gate,
		overFetch: DefaultOverFetch,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve returns at most k authorized documents in relevance order.
// Candidates are checked in rank order and checking stops once k are
// allowed. An empty result with a nil error means nothing relevant was
// authorized.
//
// When the policy decision point fails, the failing candidate and every
// candidate after it are dropped and the documents allowed so far are
// returned, unless WithFailOnPolicyError is set.
func (r *Retriever) Retrieve(ctx context.Context, principal model.Principal, query string, k int) ([]*model.RetrievedDocument, error) {
	if k <= 0 {
		return nil, goerr.Wrap(model.ErrInvalidArgument, "k must be positive", goerr.V("k", k))
	}

	logger := logging.From(ctx)

	candidates, err := r.index.Search(ctx, query, k*r.overFetch)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to search embedding index")
	}

	authorized := make([]*model.RetrievedDocument, 0, k)
	denied := 0
	for i, c := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, goerr.Wrap(err, "retrieval canceled")
		}

		allowed, err := r.gate.Check(ctx, principal, c.Document.ID)
		if err != nil {
			if r.failOnPolicyError || !errors.Is(err, model.ErrPolicyUnavailable) {
				return nil, goerr.Wrap(err, "authorization failed during retrieval",
					goerr.V("principal", principal),
				)
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, goerr.Wrap(ctxErr, "retrieval canceled")
			}

			logger.Warn("policy decision point unavailable, dropping remaining candidates",
				"principal", principal.String(),
				"dropped", len(candidates)-i,
				"authorized", len(authorized),
				"error", err.Error(),
			)
			break
		}

		if !allowed {
			denied++
			continue
		}

		authorized = append(authorized, c)
		if len(authorized) == k {
			break
		}
	}

	logger.Debug("retrieval finished",
		"principal", principal.String(),
		"candidates", len(candidates),
		"denied", denied,
		"authorized", len(authorized),
	)

	return authorized, nil
}
