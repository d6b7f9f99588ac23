package model

import (
	"path"
	"strings"
)

// DefaultEmbeddingDimension is the vector size requested from the embedding
// service when none is configured. Gemini text-embedding-004 uses 768.
const DefaultEmbeddingDimension = 768

// DocumentID is derived from the corpus filename and is stable across loads
type DocumentID string

func (id DocumentID) String() string {
	return string(id)
}

// DocumentIDFromFilename strips the last extension from the base name of a
// corpus file. "budget-2023.txt" becomes "budget-2023", "archive.tar.gz"
// becomes "archive.tar", and names without an extension are kept as is.
func DocumentIDFromFilename(name string) DocumentID {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if idx := strings.LastIndex(base, "."); idx > 0 {
		base = base[:idx]
	}
	return DocumentID(base)
}

// Document is a normalized corpus entry. It is immutable once loaded.
type Document struct {
	ID       DocumentID
	Content  string
	Metadata map[string]any
}

// Clone returns a copy whose metadata map is not shared with d
func (d Document) Clone() Document {
	copied := Document{
		ID:      d.ID,
		Content: d.Content,
	}
	if d.Metadata != nil {
		copied.Metadata = make(map[string]any, len(d.Metadata))
		for k, v := range d.Metadata {
			copied.Metadata[k] = v
		}
	}
	return copied
}

// RetrievedDocument is a document paired with its similarity to a query.
// It lives only for the duration of one retrieval call.
type RetrievedDocument struct {
	Document Document
	Score    float64
}

// CorpusFile is one raw entry yielded by a corpus source
type CorpusFile struct {
	Name    string
	Content []byte
}
