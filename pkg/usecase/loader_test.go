package usecase_test

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/ragguard/pkg/domain/model"
	"github.com/secmon-lab/ragguard/pkg/service/corpus"
	"github.com/secmon-lab/ragguard/pkg/usecase"
)

func TestLoadDocuments(t *testing.T) {
	ctx := context.Background()

	t.Run("derives ids and metadata from filenames", func(t *testing.T) {
		src := corpus.NewFS(fstest.MapFS{
			"budget-2023.txt": {Data: []byte("Q4 spending summary")},
			"notes":           {Data: []byte("plain notes")},
			"archive.tar.gz":  {Data: []byte("packed")},
			".hidden.txt":     {Data: []byte("ignored")},
		}, "test")

		docs, err := usecase.LoadDocuments(ctx, src)
		gt.NoError(t, err).Required()
		gt.Array(t, docs).Length(3).Required()

		byID := map[model.DocumentID]model.Document{}
		for _, d := range docs {
			byID[d.ID] = d
		}
		gt.Value(t, byID["budget-2023"].Content).Equal("Q4 spending summary")
		gt.Value(t, byID["budget-2023"].Metadata[usecase.MetadataSource]).Equal("budget-2023.txt")
		gt.Value(t, byID["budget-2023"].Metadata[usecase.MetadataSize]).Equal(19)
		gt.Value(t, byID["notes"].Content).Equal("plain notes")
		gt.Value(t, byID["archive.tar"].Content).Equal("packed")
	})

	t.Run("ids colliding after extension stripping are rejected", func(t *testing.T) {
		src := corpus.NewFS(fstest.MapFS{
			"report.txt": {Data: []byte("text")},
			"report.csv": {Data: []byte("a,b")},
		}, "test")

		docs, err := usecase.LoadDocuments(ctx, src)
		gt.Error(t, err).Is(model.ErrDuplicateDocumentID)
		gt.Value(t, docs).Nil()
	})

	t.Run("empty source yields no documents", func(t *testing.T) {
		docs, err := usecase.LoadDocuments(ctx, corpus.NewFS(fstest.MapFS{}, "empty"))
		gt.NoError(t, err).Required()
		gt.Array(t, docs).Length(0)
	})

	t.Run("invalid UTF-8 is replaced", func(t *testing.T) {
		src := corpus.NewFS(fstest.MapFS{
			"bin.txt": {Data: []byte{'o', 'k', 0xff}},
		}, "test")

		docs, err := usecase.LoadDocuments(ctx, src)
		gt.NoError(t, err).Required()
		gt.Array(t, docs).Length(1).Required()
		gt.Value(t, docs[0].Content).Equal("ok\uFFFD")
	})
}
