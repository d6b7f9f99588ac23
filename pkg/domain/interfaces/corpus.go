package interfaces

import (
	"context"

	"github.com/secmon-lab/ragguard/pkg/domain/model"
)

// CorpusSource enumerates raw corpus files. Implementations must not
// modify the underlying source.
type CorpusSource interface {
	List(ctx context.Context) ([]model.CorpusFile, error)
	// Name describes the source for logs (e.g. a directory or bucket URL)
	Name() string
}
