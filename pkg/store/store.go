// Package store persists scan results as named snapshots.
//
// A [Snapshot] is a package set plus the provenance of the scan that
// produced it (tree root, repositories, fingerprint). Snapshots make it
// possible to query a graph without the aports tree, and to compare graphs
// across time. Two backends implement [Store]:
//   - [FileStore]: one JSON file per snapshot, for the CLI
//   - [MongoStore]: a MongoDB collection, for shared deployments
//
// Usage:
//
//	snap := store.NewSnapshot("edge-2024-03", res.Root, res.Repositories, res.Fingerprint, res.Packages)
//	if err := st.Save(ctx, snap); err != nil {
//	    return err
//	}
//	snap, err = st.Get(ctx, snap.ID)
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/depmap/pkg/deps"
	"github.com/matzehuels/depmap/pkg/errors"
)

// Snapshot is a stored package set.
type Snapshot struct {
	Summary
	Packages []deps.Package `json:"packages"`
}

// Summary describes a snapshot without its packages.
type Summary struct {
	ID           string    `json:"id"`
	Name         string    `json:"name,omitempty"`
	Root         string    `json:"root,omitempty"`
	Repositories []string  `json:"repositories,omitempty"`
	Fingerprint  string    `json:"fingerprint,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	PackageCount int       `json:"package_count"`
}

// NewSnapshot assigns a fresh ID and creation time.
func NewSnapshot(name, root string, repos []string, fingerprint string, pkgs []deps.Package) *Snapshot {
	return &Snapshot{
		Summary: Summary{
			ID:           uuid.NewString(),
			Name:         name,
			Root:         root,
			Repositories: repos,
			Fingerprint:  fingerprint,
			CreatedAt:    time.Now().UTC(),
			PackageCount: len(pkgs),
		},
		Packages: pkgs,
	}
}

// Store is a snapshot backend.
type Store interface {
	// Save writes snap, replacing any snapshot with the same ID.
	Save(ctx context.Context, snap *Snapshot) error
	// Get returns the snapshot with id, or SNAPSHOT_NOT_FOUND.
	Get(ctx context.Context, id string) (*Snapshot, error)
	// List returns all summaries, newest first.
	List(ctx context.Context) ([]Summary, error)
	// Delete removes a snapshot, or returns SNAPSHOT_NOT_FOUND.
	Delete(ctx context.Context, id string) error
	Close() error
}

// Resolve finds a snapshot by full ID, unique ID prefix, name, or the word
// "latest".
func Resolve(ctx context.Context, st Store, ref string) (*Snapshot, error) {
	if errors.ValidateSnapshotID(ref) == nil {
		return st.Get(ctx, ref)
	}
	list, err := st.List(ctx)
	if err != nil {
		return nil, err
	}
	if ref == "latest" {
		if len(list) == 0 {
			return nil, errors.New(errors.ErrCodeSnapshotNotFound, "no snapshots saved")
		}
		return st.Get(ctx, list[0].ID)
	}

	var match []Summary
	for _, s := range list {
		if s.Name == ref || (len(ref) >= 4 && len(s.ID) > len(ref) && s.ID[:len(ref)] == ref) {
			match = append(match, s)
		}
	}
	switch len(match) {
	case 0:
		return nil, errors.New(errors.ErrCodeSnapshotNotFound, "no snapshot matches %q", ref)
	case 1:
		return st.Get(ctx, match[0].ID)
	default:
		// Names may repeat; the newest wins. Ambiguous ID prefixes do not.
		if match[0].Name == ref {
			return st.Get(ctx, match[0].ID)
		}
		return nil, errors.New(errors.ErrCodeInvalidInput, "snapshot reference %q is ambiguous (%d matches)", ref, len(match))
	}
}

func notFound(id string) error {
	return errors.New(errors.ErrCodeSnapshotNotFound, "snapshot %s not found", id)
}
