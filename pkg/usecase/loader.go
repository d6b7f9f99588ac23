package usecase

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/ragguard/pkg/domain/interfaces"
	"github.com/secmon-lab/ragguard/pkg/domain/model"
	"github.com/secmon-lab/ragguard/pkg/utils/logging"
)

// Metadata keys set by LoadDocuments
const (
	MetadataSource = "source"
	MetadataSize   = "size"
)

// LoadDocuments reads every file of source and turns it into a Document
// whose id is the filename without its last extension. Two files deriving
// the same id are rejected with ErrDuplicateDocumentID.
func LoadDocuments(ctx context.Context, source interfaces.CorpusSource) ([]model.Document, error) {
	files, err := source.List(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list corpus files", goerr.V("source", source.Name()))
	}

	logger := logging.From(ctx)
	seen := make(map[model.DocumentID]string, len(files))
	docs := make([]model.Document, 0, len(files))

	for _, f := range files {
		id := model.DocumentIDFromFilename(f.Name)
		if id == "" {
			logger.Warn("skipping corpus file without usable name", "name", f.Name)
			continue
		}
		if prev, ok := seen[id]; ok {
			return nil, goerr.Wrap(model.ErrDuplicateDocumentID, "two corpus files derive the same document id",
				goerr.V("id", id),
				goerr.V("first", prev),
				goerr.V("second", f.Name),
			)
		}
		seen[id] = f.Name

		content := string(f.Content)
		if !utf8.ValidString(content) {
			logger.Warn("corpus file is not valid UTF-8, replacing invalid bytes", "name", f.Name)
			content = strings.ToValidUTF8(content, "\uFFFD")
		}

		docs = append(docs, model.Document{
			ID:      id,
			Content: content,
			Metadata: map[string]any{
				MetadataSource: f.Name,
				MetadataSize:   len(f.Content),
			},
		})
	}

	return docs, nil
}
