package repository

import (
	"context"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/yarmol/bnd/pkg/capability"
	"github.com/yarmol/bnd/pkg/errors"
	"github.com/yarmol/bnd/pkg/observability"
	"github.com/yarmol/bnd/pkg/version"
)

// MongoRepository serves an index stored as IndexResource documents in a
// MongoDB collection. Documents are loaded once on first use. Content
// fetching is not supported; Mongo holds metadata only.
type MongoRepository struct {
	name string
	coll *mongo.Collection

	local *IndexRepository
}

// NewMongoRepository creates a repository over the given collection and
// loads its documents.
func NewMongoRepository(ctx context.Context, name string, coll *mongo.Collection) (*MongoRepository, error) {
	r := &MongoRepository{name: name, coll: coll}
	if err := r.load(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *MongoRepository) load(ctx context.Context) error {
	cur, err := r.coll.Find(ctx, bson.D{})
	if err != nil {
		return errors.Wrap(errors.ErrCodeNetwork, err, "query repository %q", r.name)
	}
	defer cur.Close(ctx)

	var docs []IndexResource
	if err := cur.All(ctx, &docs); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidIndex, err, "decode repository %q", r.name)
	}

	local, err := NewIndexRepository(&Index{Name: r.name, Resources: docs}, "")
	if err != nil {
		return err
	}
	r.local = local
	return nil
}

// Name returns the repository name.
func (r *MongoRepository) Name() string { return r.name }

// Find scans the loaded index for providers.
func (r *MongoRepository) Find(ctx context.Context, reqs []*capability.Requirement) (map[*capability.Requirement][]*capability.Capability, error) {
	return r.local.Find(ctx, reqs)
}

// Fetch is unsupported; the collection stores metadata only.
func (r *MongoRepository) Fetch(ctx context.Context, identity string, v version.Version) (io.ReadCloser, error) {
	start := time.Now()
	err := errors.New(errors.ErrCodeUnsupported, "repository %q does not store content", r.name)
	observability.Repository().OnFetch(ctx, r.name, identity, time.Since(start), err)
	return nil, err
}

// Ensure MongoRepository implements Repository.
var _ Repository = (*MongoRepository)(nil)
