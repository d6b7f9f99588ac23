package embedding

import (
	"fmt"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/ragguard/pkg/domain/model"
)

// DefaultTimeout bounds a single embedding request
const DefaultTimeout = 30 * time.Second

// Option configures an embedder
type Option func(*options)

type options struct {
	timeout time.Duration
}

// WithTimeout sets the timeout applied to every embedding request
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

func newOptions(opts []Option) options {
	o := options{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func modelID(provider, modelName string, dimension int) string {
	return fmt.Sprintf("%s/%s@%d", provider, modelName, dimension)
}

// validate checks that the service returned exactly one vector of the
// expected dimension per input text
func validate(vectors [][]float32, inputs int, dimension int) error {
	if len(vectors) != inputs {
		return goerr.Wrap(model.ErrEmbeddingService, "unexpected number of embeddings",
			goerr.V("expected", inputs),
			goerr.V("actual", len(vectors)),
		)
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return goerr.Wrap(model.ErrEmbeddingService, "empty embedding", goerr.V("index", i))
		}
		if dimension > 0 && len(v) != dimension {
			return goerr.Wrap(model.ErrEmbeddingService, "embedding dimension mismatch",
				goerr.V("index", i),
				goerr.V("expected", dimension),
				goerr.V("actual", len(v)),
			)
		}
	}
	return nil
}
