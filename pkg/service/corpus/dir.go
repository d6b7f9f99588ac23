package corpus

import (
	"context"
	"io/fs"
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/ragguard/pkg/domain/interfaces"
	"github.com/secmon-lab/ragguard/pkg/domain/model"
)

// Dir reads corpus files from the top level of a directory. Hidden files
// and subdirectories are ignored.
type Dir struct {
	fsys fs.FS
	name string
}

var _ interfaces.CorpusSource = &Dir{}

// NewDir creates a source reading from the local directory path
func NewDir(path string) (*Dir, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to stat corpus directory", goerr.V("path", path))
	}
	if !info.IsDir() {
		return nil, goerr.New("corpus path is not a directory", goerr.V("path", path))
	}

	return &Dir{fsys: os.DirFS(path), name: path}, nil
}

// NewFS creates a source over an arbitrary file system, mainly for tests
func NewFS(fsys fs.FS, name string) *Dir {
	return &Dir{fsys: fsys, name: name}
}

func (x *Dir) Name() string {
	return x.name
}

// List returns files sorted by name
func (x *Dir) List(ctx context.Context) ([]model.CorpusFile, error) {
	entries, err := fs.ReadDir(x.fsys, ".")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read corpus directory", goerr.V("source", x.name))
	}

	files := make([]model.CorpusFile, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, goerr.Wrap(err, "corpus listing canceled")
		}
		if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		// #nosec G304 - entry names come from the corpus directory listing
		data, err := fs.ReadFile(x.fsys, entry.Name())
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read corpus file",
				goerr.V("source", x.name),
				goerr.V("file", entry.Name()),
			)
		}
		files = append(files, model.CorpusFile{Name: entry.Name(), Content: data})
	}

	return files, nil
}
