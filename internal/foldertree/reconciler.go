// Package foldertree maps client-side folder hierarchies onto server
// folders and removes folder subtrees bottom-up.
package foldertree

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrSnakeDoc/linkloom/internal/domain"
	"github.com/MrSnakeDoc/linkloom/internal/eventlog"
	"github.com/MrSnakeDoc/linkloom/internal/store/sqlstore"
)

// Store is the persistence the reconciler needs. *sqlstore.Queries
// implements it; lookups that match nothing return sqlstore.ErrNotFound.
type Store interface {
	eventlog.Writer
	GetFolder(ctx context.Context, userID, id int64) (*domain.Folder, error)
	FindFolder(ctx context.Context, userID int64, name string, parentID *int64) (*domain.Folder, error)
	InsertFolder(ctx context.Context, f *domain.Folder) error
	DeleteFolder(ctx context.Context, userID, id int64) error
	ListFolders(ctx context.Context, userID int64) ([]domain.Folder, error)
	BookmarksInFolder(ctx context.Context, userID, folderID int64) ([]domain.Bookmark, error)
	UpdateBookmark(ctx context.Context, b *domain.Bookmark) error
}

// LocalFolder is a folder as described by a client. IDs are opaque
// client strings.
type LocalFolder struct {
	ID       string
	Title    string
	ParentID string
}

type cacheKey struct {
	parent int64
	name   string
}

// Reconciler resolves and creates folders for one user during one
// reconciliation pass. It is not safe for concurrent use.
type Reconciler struct {
	store   Store
	userID  int64
	cache   map[cacheKey]int64
	mapping map[string]int64
}

// NewReconciler creates a reconciler for userID's folders.
func NewReconciler(store Store, userID int64) *Reconciler {
	return &Reconciler{
		store:   store,
		userID:  userID,
		cache:   make(map[cacheKey]int64),
		mapping: make(map[string]int64),
	}
}

// WithStore returns a reconciler bound to another store (typically a new
// transaction) that keeps the folder cache and local-id mapping.
func (r *Reconciler) WithStore(store Store) *Reconciler {
	return &Reconciler{store: store, userID: r.userID, cache: r.cache, mapping: r.mapping}
}

// Reset forgets cached folder ids, e.g. after the transaction that created
// them rolled back.
func (r *Reconciler) Reset() {
	r.cache = make(map[cacheKey]int64)
	r.mapping = make(map[string]int64)
}

// Mapping returns the local-id → server-id mapping built so far.
func (r *Reconciler) Mapping() map[string]int64 {
	out := make(map[string]int64, len(r.mapping))
	for k, v := range r.mapping {
		out[k] = v
	}
	return out
}

// EnsurePath walks segments from the root, reusing or creating one folder
// per non-blank segment, and returns the id of the last one. A path with
// no usable segment yields nil (root).
func (r *Reconciler) EnsurePath(ctx context.Context, segments []string) (*int64, error) {
	var parent *int64
	for _, seg := range segments {
		name := strings.TrimSpace(seg)
		if name == "" {
			continue
		}
		id, err := r.ensure(ctx, name, parent)
		if err != nil {
			return nil, err
		}
		parent = &id
	}
	return parent, nil
}

func (r *Reconciler) ensure(ctx context.Context, name string, parent *int64) (int64, error) {
	key := cacheKey{parent: domain.Deref(parent), name: name}
	if id, ok := r.cache[key]; ok {
		return id, nil
	}

	f, err := r.store.FindFolder(ctx, r.userID, name, parent)
	switch {
	case err == nil:
	case errors.Is(err, sqlstore.ErrNotFound):
		now := domain.Now()
		f = &domain.Folder{UserID: r.userID, Name: name, ParentID: parent, CreatedAt: now, UpdatedAt: now}
		if err := r.store.InsertFolder(ctx, f); err != nil {
			return 0, err
		}
		if err := eventlog.RecordFolder(ctx, r.store, f, domain.ActionCreate); err != nil {
			return 0, err
		}
	default:
		return 0, fmt.Errorf("find folder %q: %w", name, err)
	}

	r.cache[key] = f.ID
	return f.ID, nil
}

// Materialize maps every local folder to a server folder. Passes repeat
// while at least one folder whose parent is already mapped (or not part of
// the input) can be placed; when a pass stalls, the remaining folders are
// attached at the root. Existing (name, parent) folders are reused.
func (r *Reconciler) Materialize(ctx context.Context, folders []LocalFolder) (map[string]int64, error) {
	known := make(map[string]bool, len(folders))
	pending := make([]LocalFolder, 0, len(folders))
	for _, f := range folders {
		if f.ID == "" || known[f.ID] {
			continue
		}
		known[f.ID] = true
		pending = append(pending, f)
	}

	for len(pending) > 0 {
		rest := pending[:0:0]
		for _, f := range pending {
			var parent *int64
			if f.ParentID != "" && f.ParentID != f.ID && known[f.ParentID] {
				id, ok := r.mapping[f.ParentID]
				if !ok {
					rest = append(rest, f)
					continue
				}
				parent = &id
			}
			if err := r.place(ctx, f, parent); err != nil {
				return nil, err
			}
		}
		if len(rest) == len(pending) {
			for _, f := range rest {
				if err := r.place(ctx, f, nil); err != nil {
					return nil, err
				}
			}
			break
		}
		pending = rest
	}
	return r.Mapping(), nil
}

func (r *Reconciler) place(ctx context.Context, f LocalFolder, parent *int64) error {
	name := strings.TrimSpace(f.Title)
	if name == "" {
		name = domain.DefaultFolderName
	}
	id, err := r.ensure(ctx, name, parent)
	if err != nil {
		return err
	}
	r.mapping[f.ID] = id
	return nil
}

// ResolveBookmarkFolder returns the server folder for a local bookmark: the
// mapped local folder if any, else the ensured folder path (recorded under
// the local id when one was given), else nil.
func (r *Reconciler) ResolveBookmarkFolder(ctx context.Context, localFolderID string, path []string) (*int64, error) {
	if localFolderID != "" {
		if id, ok := r.mapping[localFolderID]; ok {
			return &id, nil
		}
	}
	if len(path) == 0 {
		return nil, nil
	}
	id, err := r.EnsurePath(ctx, path)
	if err != nil {
		return nil, err
	}
	if id != nil && localFolderID != "" {
		r.mapping[localFolderID] = *id
	}
	return id, nil
}
