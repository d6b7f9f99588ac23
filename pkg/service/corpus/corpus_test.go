package corpus_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/ragguard/pkg/service/corpus"
)

func TestDir_List(t *testing.T) {
	t.Run("lists regular top-level files sorted by name", func(t *testing.T) {
		fsys := fstest.MapFS{
			"salary-2023.txt":     {Data: []byte("compensation details")},
			"budget-2023.txt":     {Data: []byte("Q4 spending summary")},
			".hidden":             {Data: []byte("ignored")},
			"nested/ignored.txt":  {Data: []byte("ignored")},
			"nested/another.text": {Data: []byte("ignored")},
		}

		files, err := corpus.NewFS(fsys, "test").List(context.Background())
		gt.NoError(t, err).Required()
		gt.Array(t, files).Length(2).Required()
		gt.Value(t, files[0].Name).Equal("budget-2023.txt")
		gt.Value(t, string(files[0].Content)).Equal("Q4 spending summary")
		gt.Value(t, files[1].Name).Equal("salary-2023.txt")
	})

	t.Run("empty directory yields no files", func(t *testing.T) {
		files, err := corpus.NewFS(fstest.MapFS{}, "empty").List(context.Background())
		gt.NoError(t, err).Required()
		gt.Array(t, files).Length(0)
	})

	t.Run("reads from a local directory", func(t *testing.T) {
		dir := t.TempDir()
		gt.NoError(t, os.WriteFile(filepath.Join(dir, "budget-2023.txt"), []byte("Q4 spending summary"), 0o600)).Required()

		src, err := corpus.NewDir(dir)
		gt.NoError(t, err).Required()
		gt.Value(t, src.Name()).Equal(dir)

		files, err := src.List(context.Background())
		gt.NoError(t, err).Required()
		gt.Array(t, files).Length(1)
	})

	t.Run("rejects a path that is not a directory", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "file.txt")
		gt.NoError(t, os.WriteFile(file, []byte("x"), 0o600)).Required()

		_, err := corpus.NewDir(file)
		gt.Value(t, err).NotNil()

		_, err = corpus.NewDir(filepath.Join(t.TempDir(), "missing"))
		gt.Value(t, err).NotNil()
	})

	t.Run("honors cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		fsys := fstest.MapFS{"a.txt": {Data: []byte("a")}}
		_, err := corpus.NewFS(fsys, "test").List(ctx)
		gt.Value(t, err).NotNil()
	})
}

func TestGCS_List(t *testing.T) {
	bucket := os.Getenv("TEST_GCS_BUCKET")
	if bucket == "" {
		t.Skip("TEST_GCS_BUCKET not set")
	}

	ctx := context.Background()
	src, err := corpus.NewGCS(ctx, bucket, os.Getenv("TEST_GCS_PREFIX"))
	gt.NoError(t, err).Required()
	defer func() { gt.NoError(t, src.Close()) }()

	files, err := src.List(ctx)
	gt.NoError(t, err).Required()
	for _, f := range files {
		gt.String(t, f.Name).NotEqual("")
	}
}
