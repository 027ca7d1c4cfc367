package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/matzehuels/depmap/pkg/deps"
	"github.com/matzehuels/depmap/pkg/errors"
)

// Collection holds snapshot documents.
const Collection = "snapshots"

// MongoConfig configures a MongoStore.
type MongoConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// MongoStore keeps one document per snapshot. A document embeds every
// package, so a snapshot must stay under MongoDB's 16 MiB document limit;
// a full aports tree is well below it.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoStore connects and pings the server.
func NewMongoStore(ctx context.Context, cfg MongoConfig) (*MongoStore, error) {
	if cfg.Database == "" {
		cfg.Database = "depmap"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	opts := options.Client().ApplyURI(cfg.URI).SetTimeout(cfg.Timeout)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	coll := client.Database(cfg.Database).Collection(Collection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "created_at", Value: -1}},
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("create index: %w", err)
	}
	return &MongoStore{client: client, coll: coll}, nil
}

// snapshotDoc is the stored form. Dependency lists are flattened into one
// field per kind because Kind-keyed maps do not map onto BSON keys.
type snapshotDoc struct {
	ID           string       `bson:"_id"`
	Name         string       `bson:"name,omitempty"`
	Root         string       `bson:"root,omitempty"`
	Repositories []string     `bson:"repositories,omitempty"`
	Fingerprint  string       `bson:"fingerprint,omitempty"`
	CreatedAt    time.Time    `bson:"created_at"`
	PackageCount int          `bson:"package_count"`
	Packages     []packageDoc `bson:"packages,omitempty"`
}

type packageDoc struct {
	deps.Package `bson:",inline"`
	Runtime      []string `bson:"depends,omitempty"`
	Build        []string `bson:"makedepends,omitempty"`
	Check        []string `bson:"checkdepends,omitempty"`
}

func toDoc(s *Snapshot) snapshotDoc {
	d := snapshotDoc{
		ID:           s.ID,
		Name:         s.Name,
		Root:         s.Root,
		Repositories: s.Repositories,
		Fingerprint:  s.Fingerprint,
		CreatedAt:    s.CreatedAt,
		PackageCount: s.PackageCount,
		Packages:     make([]packageDoc, len(s.Packages)),
	}
	for i := range s.Packages {
		p := &s.Packages[i]
		d.Packages[i] = packageDoc{
			Package: *p,
			Runtime: p.Deps(deps.KindRuntime),
			Build:   p.Deps(deps.KindBuild),
			Check:   p.Deps(deps.KindCheck),
		}
	}
	return d
}

func (d *snapshotDoc) summary() Summary {
	return Summary{
		ID:           d.ID,
		Name:         d.Name,
		Root:         d.Root,
		Repositories: d.Repositories,
		Fingerprint:  d.Fingerprint,
		CreatedAt:    d.CreatedAt,
		PackageCount: d.PackageCount,
	}
}

func (d *snapshotDoc) snapshot() *Snapshot {
	s := &Snapshot{Summary: d.summary(), Packages: make([]deps.Package, len(d.Packages))}
	for i := range d.Packages {
		pd := &d.Packages[i]
		p := pd.Package
		p.Dependencies = nil
		p.AddDeps(deps.KindRuntime, pd.Runtime...)
		p.AddDeps(deps.KindBuild, pd.Build...)
		p.AddDeps(deps.KindCheck, pd.Check...)
		s.Packages[i] = p
	}
	return s
}

// Save implements Store.
func (m *MongoStore) Save(ctx context.Context, snap *Snapshot) error {
	if err := errors.ValidateSnapshotID(snap.ID); err != nil {
		return err
	}
	doc := toDoc(snap)
	_, err := m.coll.ReplaceOne(ctx, bson.D{{Key: "_id", Value: snap.ID}}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Get implements Store.
func (m *MongoStore) Get(ctx context.Context, id string) (*Snapshot, error) {
	var doc snapshotDoc
	err := m.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	return doc.snapshot(), nil
}

// List implements Store.
func (m *MongoStore) List(ctx context.Context) ([]Summary, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}).
		SetProjection(bson.D{{Key: "packages", Value: 0}})
	cur, err := m.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer cur.Close(ctx)

	var out []Summary
	for cur.Next(ctx) {
		var doc snapshotDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode snapshot: %w", err)
		}
		out = append(out, doc.summary())
	}
	return out, cur.Err()
}

// Delete implements Store.
func (m *MongoStore) Delete(ctx context.Context, id string) error {
	res, err := m.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	if res.DeletedCount == 0 {
		return notFound(id)
	}
	return nil
}

// Close disconnects from the server.
func (m *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

var _ Store = (*MongoStore)(nil)
