package corpus

import (
	"context"
	"io"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/ragguard/pkg/domain/interfaces"
	"github.com/secmon-lab/ragguard/pkg/domain/model"
	"github.com/secmon-lab/ragguard/pkg/utils/safe"
	"google.golang.org/api/iterator"
)

// GCS reads corpus objects directly under a Cloud Storage prefix
type GCS struct {
	client *storage.Client
	bucket string
	prefix string
}

var _ interfaces.CorpusSource = &GCS{}

// NewGCS creates a source for gs://bucket/prefix using application default
// credentials. The caller must Close it.
func NewGCS(ctx context.Context, bucket, prefix string) (*GCS, error) {
	if bucket == "" {
		return nil, goerr.New("bucket is required")
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage client")
	}

	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	return &GCS{client: client, bucket: bucket, prefix: prefix}, nil
}

func (x *GCS) Name() string {
	return "gs://" + x.bucket + "/" + x.prefix
}

// Close releases the storage client
func (x *GCS) Close() error {
	return x.client.Close()
}

// List returns objects in lexical name order, which is the order Cloud
// Storage lists them in. Nested prefixes are not descended into.
func (x *GCS) List(ctx context.Context) ([]model.CorpusFile, error) {
	bkt := x.client.Bucket(x.bucket)
	it := bkt.Objects(ctx, &storage.Query{Prefix: x.prefix, Delimiter: "/"})

	var files []model.CorpusFile
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to list corpus objects", goerr.V("source", x.Name()))
		}
		// synthetic directory entries carry only a Prefix
		if attrs.Name == "" || strings.HasSuffix(attrs.Name, "/") {
			continue
		}
		name := path.Base(attrs.Name)
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := x.read(ctx, bkt, attrs.Name)
		if err != nil {
			return nil, err
		}
		files = append(files, model.CorpusFile{Name: name, Content: data})
	}

	return files, nil
}

func (x *GCS) read(ctx context.Context, bkt *storage.BucketHandle, object string) ([]byte, error) {
	r, err := bkt.Object(object).NewReader(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open corpus object", goerr.V("object", object))
	}
	defer safe.Close(ctx, r)

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read corpus object", goerr.V("object", object))
	}
	return data, nil
}
