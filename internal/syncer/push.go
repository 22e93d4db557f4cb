package syncer

import (
	"context"
	"errors"
	"time"

	"github.com/MrSnakeDoc/linkloom/internal/domain"
	"github.com/MrSnakeDoc/linkloom/internal/eventlog"
	"github.com/MrSnakeDoc/linkloom/internal/foldertree"
	"github.com/MrSnakeDoc/linkloom/internal/store/sqlstore"
)

// Result statuses and skip reasons of a push operation.
const (
	StatusCreated  = "created"
	StatusExists   = "exists"
	StatusRestored = "restored"
	StatusUpdated  = "updated"
	StatusDeleted  = "deleted"
	StatusSkipped  = "skipped"

	ReasonUnsupportedEntity    = "unsupported_entity_type"
	ReasonUnsupportedOperation = "unsupported_operation"
	ReasonInvalidURL           = "invalid_url"
	ReasonBookmarkNotFound     = "bookmark_not_found"
	ReasonFolderNotFound       = "folder_not_found"
	ReasonServerNewer          = "server_newer_or_equal"
	ReasonNoChanges            = "no_changes"
	ReasonWouldCreateCycle     = "would_create_cycle"
	ReasonNameConflict         = "name_conflict"
)

// OpResult is the outcome of one push operation.
type OpResult struct {
	EntityType string `json:"entity_type"`
	EntityID   *int64 `json:"entity_id,omitempty"`
	Status     string `json:"status"`
	Reason     string `json:"reason,omitempty"`
}

// PushResult is the response of a push.
type PushResult struct {
	Status  string     `json:"status"`
	Results []OpResult `json:"results"`
	Cursor  int64      `json:"cursor"`
}

// Push applies the operations in order inside one transaction and moves
// the client's cursor forward to the latest event.
func (s *Service) Push(ctx context.Context, userID int64, clientID string, ops []Operation) (*PushResult, error) {
	clientID, err := requireClientID(clientID)
	if err != nil {
		return nil, err
	}

	res := &PushResult{Status: "ok", Results: make([]OpResult, 0, len(ops))}
	err = s.store.InTx(ctx, func(q *sqlstore.Queries) error {
		now := s.now()
		client, err := q.EnsureClient(ctx, userID, clientID, nil, now)
		if err != nil {
			return err
		}
		m := &merger{q: q, userID: userID, now: now}
		for i := range ops {
			r, err := m.apply(ctx, &ops[i])
			if err != nil {
				return err
			}
			res.Results = append(res.Results, r)
		}
		res.Cursor, err = eventlog.AdvanceCursor(ctx, q, userID, client, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	for _, r := range res.Results {
		s.metrics.PushOperation(r.EntityType, r.Status)
	}
	return res, nil
}

// merger applies push operations for one user inside one transaction.
type merger struct {
	q      *sqlstore.Queries
	userID int64
	now    time.Time
}

func (m *merger) apply(ctx context.Context, op *Operation) (OpResult, error) {
	et, err := domain.ParseEntityType(op.EntityType)
	if err != nil {
		return OpResult{EntityType: op.EntityType, Status: StatusSkipped, Reason: ReasonUnsupportedEntity}, nil
	}

	kind := parseOpKind(op.Op)
	switch et {
	case domain.EntityBookmark:
		r, err := m.applyBookmark(ctx, kind, op)
		r.EntityType = string(et)
		return r, err
	case domain.EntityFolder:
		r, err := m.applyFolder(ctx, kind, op)
		r.EntityType = string(et)
		return r, err
	}
	return OpResult{EntityType: op.EntityType, Status: StatusSkipped, Reason: ReasonUnsupportedEntity}, nil
}

func skipped(reason string) OpResult {
	return OpResult{Status: StatusSkipped, Reason: reason}
}

func done(status string, id int64) OpResult {
	return OpResult{Status: status, EntityID: &id}
}

// serverWins reports whether the stored entity is at least as new as the
// client's copy. Without a client timestamp the client wins.
func serverWins(server time.Time, client ClientTime) bool {
	return client.Valid && !server.Before(client.Time)
}

// ─────────────────────────────
// Bookmarks
// ─────────────────────────────

func (m *merger) applyBookmark(ctx context.Context, kind opKind, op *Operation) (OpResult, error) {
	fields := op.Bookmark
	if fields == nil {
		fields = &BookmarkFields{}
	}

	switch kind {
	case opCreate:
		return m.createBookmark(ctx, fields)
	case opUpdate, opDelete, opRestore:
	case opMove, opUnknown:
		return skipped(ReasonUnsupportedOperation), nil
	}

	id, ts := target(fields.ID, fields.UpdatedAt, op)
	b, err := m.loadBookmark(ctx, id)
	if err != nil || b == nil {
		return skipped(ReasonBookmarkNotFound), err
	}
	if serverWins(b.UpdatedAt, ts) {
		return skipped(ReasonServerNewer), nil
	}

	var (
		action domain.Action
		status string
	)
	switch kind {
	case opUpdate:
		if err := m.updateBookmarkFields(ctx, b, fields); err != nil {
			return OpResult{}, err
		}
		b.DeletedAt, b.DeletedBy = nil, nil
		action, status = domain.ActionUpdate, StatusUpdated
	case opDelete:
		b.DeletedAt, b.DeletedBy = domain.Ptr(m.now), domain.Ptr(m.userID)
		action, status = domain.ActionDelete, StatusDeleted
	case opRestore:
		b.DeletedAt, b.DeletedBy = nil, nil
		action, status = domain.ActionRestore, StatusRestored
	}

	b.UpdatedAt = m.now
	if err := m.q.UpdateBookmark(ctx, b); err != nil {
		return OpResult{}, err
	}
	if err := eventlog.RecordBookmark(ctx, m.q, b, action); err != nil {
		return OpResult{}, err
	}
	return done(status, b.ID), nil
}

func (m *merger) loadBookmark(ctx context.Context, id int64) (*domain.Bookmark, error) {
	if id <= 0 {
		return nil, nil
	}
	b, err := m.q.GetBookmark(ctx, m.userID, id)
	if errors.Is(err, sqlstore.ErrNotFound) {
		return nil, nil
	}
	return b, err
}

func (m *merger) createBookmark(ctx context.Context, fields *BookmarkFields) (OpResult, error) {
	url := string(fields.URL.Value)
	normalized := domain.NormalizeURL(url)
	if normalized == "" {
		return skipped(ReasonInvalidURL), nil
	}

	active, err := m.q.FindActiveByNormalized(ctx, m.userID, normalized)
	switch {
	case err == nil:
		return done(StatusExists, active.ID), nil
	case !errors.Is(err, sqlstore.ErrNotFound):
		return OpResult{}, err
	}

	folderID, err := m.folderRef(ctx, fields.FolderID)
	if err != nil {
		return OpResult{}, err
	}
	notes := string(fields.Notes.Value)

	deleted, err := m.q.FindDeletedByNormalized(ctx, m.userID, normalized)
	switch {
	case err == nil:
		b := deleted
		b.DeletedAt, b.DeletedBy = nil, nil
		b.URL, b.NormalizedURL = url, normalized
		if title := domain.CleanTitle(string(fields.Title.Value)); title != nil {
			b.Title = title
		}
		if n := domain.NormalizeNotes(&notes); n != nil {
			b.Notes = n
		}
		if fields.FolderID.Set {
			b.FolderID = folderID
		}
		if fields.Tags.Set {
			if err := m.setTags(ctx, b, fields.Tags.Value); err != nil {
				return OpResult{}, err
			}
		}
		b.UpdatedAt = m.now
		if err := m.q.UpdateBookmark(ctx, b); err != nil {
			return OpResult{}, err
		}
		if err := eventlog.RecordBookmark(ctx, m.q, b, domain.ActionRestore); err != nil {
			return OpResult{}, err
		}
		return done(StatusRestored, b.ID), nil
	case !errors.Is(err, sqlstore.ErrNotFound):
		return OpResult{}, err
	}

	b := &domain.Bookmark{
		UserID:        m.userID,
		URL:           url,
		NormalizedURL: normalized,
		Title:         domain.CleanTitle(string(fields.Title.Value)),
		Notes:         domain.NormalizeNotes(&notes),
		FolderID:      folderID,
		CreatedAt:     m.now,
		UpdatedAt:     m.now,
	}
	if err := m.q.InsertBookmark(ctx, b); err != nil {
		return OpResult{}, err
	}
	if err := m.setTags(ctx, b, fields.Tags.Value); err != nil {
		return OpResult{}, err
	}
	if err := eventlog.RecordBookmark(ctx, m.q, b, domain.ActionCreate); err != nil {
		return OpResult{}, err
	}
	return done(StatusCreated, b.ID), nil
}

func (m *merger) updateBookmarkFields(ctx context.Context, b *domain.Bookmark, fields *BookmarkFields) error {
	if fields.URL.Set {
		url := string(fields.URL.Value)
		if normalized := domain.NormalizeURL(url); normalized != "" {
			b.URL, b.NormalizedURL = url, normalized
		}
	}
	if fields.Title.Set {
		b.Title = domain.CleanTitle(string(fields.Title.Value))
	}
	if fields.FolderID.Set {
		folderID, err := m.folderRef(ctx, fields.FolderID)
		if err != nil {
			return err
		}
		b.FolderID = folderID
	}
	if fields.Notes.Set {
		notes := string(fields.Notes.Value)
		if n := domain.NormalizeNotes(&notes); n != nil {
			b.Notes = n
		}
	}
	if fields.Tags.Set {
		return m.setTags(ctx, b, fields.Tags.Value)
	}
	return nil
}

func (m *merger) setTags(ctx context.Context, b *domain.Bookmark, tags TagList) error {
	names := []string(tags)
	if names == nil {
		names = []string{}
	}
	if err := m.q.SetBookmarkTags(ctx, m.userID, b.ID, names); err != nil {
		return err
	}
	b.Tags = names
	return nil
}

// folderRef resolves a client folder reference. Unknown folders map to nil.
func (m *merger) folderRef(ctx context.Context, ref Field[FlexID]) (*int64, error) {
	id := ref.Value.Ptr()
	if !ref.Set || id == nil {
		return nil, nil
	}
	f, err := m.q.GetFolder(ctx, m.userID, *id)
	if errors.Is(err, sqlstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &f.ID, nil
}

// ─────────────────────────────
// Folders
// ─────────────────────────────

func (m *merger) applyFolder(ctx context.Context, kind opKind, op *Operation) (OpResult, error) {
	fields := op.Folder
	if fields == nil {
		fields = &FolderFields{}
	}

	switch kind {
	case opCreate:
		return m.createFolder(ctx, fields)
	case opUpdate, opMove, opDelete:
	case opRestore, opUnknown:
		return skipped(ReasonUnsupportedOperation), nil
	}

	id, ts := target(fields.ID, fields.UpdatedAt, op)
	f, err := m.loadFolder(ctx, id)
	if err != nil || f == nil {
		return skipped(ReasonFolderNotFound), err
	}
	if serverWins(f.UpdatedAt, ts) {
		return skipped(ReasonServerNewer), nil
	}

	if kind == opDelete {
		if _, err := foldertree.DeleteSubtree(ctx, m.q, m.userID, f.ID); err != nil {
			return OpResult{}, err
		}
		return done(StatusDeleted, f.ID), nil
	}
	return m.moveFolder(ctx, f, fields)
}

func (m *merger) loadFolder(ctx context.Context, id int64) (*domain.Folder, error) {
	if id <= 0 {
		return nil, nil
	}
	f, err := m.q.GetFolder(ctx, m.userID, id)
	if errors.Is(err, sqlstore.ErrNotFound) {
		return nil, nil
	}
	return f, err
}

func folderName(raw FlexString) string {
	if raw == "" {
		return domain.DefaultFolderName
	}
	return string(raw)
}

func (m *merger) createFolder(ctx context.Context, fields *FolderFields) (OpResult, error) {
	name := folderName(fields.Name.Value)
	parent, err := m.loadFolder(ctx, int64(fields.ParentID.Value))
	if err != nil {
		return OpResult{}, err
	}
	var parentID *int64
	if parent != nil {
		parentID = &parent.ID
	}

	existing, err := m.q.FindFolder(ctx, m.userID, name, parentID)
	switch {
	case err == nil:
		return done(StatusExists, existing.ID), nil
	case !errors.Is(err, sqlstore.ErrNotFound):
		return OpResult{}, err
	}

	f := &domain.Folder{UserID: m.userID, Name: name, ParentID: parentID, CreatedAt: m.now, UpdatedAt: m.now}
	if err := m.q.InsertFolder(ctx, f); err != nil {
		return OpResult{}, err
	}
	if err := eventlog.RecordFolder(ctx, m.q, f, domain.ActionCreate); err != nil {
		return OpResult{}, err
	}
	return done(StatusCreated, f.ID), nil
}

func (m *merger) moveFolder(ctx context.Context, f *domain.Folder, fields *FolderFields) (OpResult, error) {
	name := f.Name
	if fields.Name.Set {
		name = folderName(fields.Name.Value)
	}

	parentID := f.ParentID
	if fields.ParentID.Set {
		parentID = nil
		if want := int64(fields.ParentID.Value); want > 0 && want != f.ID {
			parent, err := m.loadFolder(ctx, want)
			if err != nil {
				return OpResult{}, err
			}
			if parent != nil {
				parentID = &parent.ID
			}
		}
	}

	if name == f.Name && domain.SameID(parentID, f.ParentID) {
		return skipped(ReasonNoChanges), nil
	}

	if parentID != nil && !domain.SameID(parentID, f.ParentID) {
		all, err := m.q.ListFolders(ctx, m.userID)
		if err != nil {
			return OpResult{}, err
		}
		if foldertree.NewTree(all).IsWithin(*parentID, f.ID) {
			return skipped(ReasonWouldCreateCycle), nil
		}
	}

	sibling, err := m.q.FindFolder(ctx, m.userID, name, parentID)
	switch {
	case err == nil && sibling.ID != f.ID:
		return skipped(ReasonNameConflict), nil
	case err != nil && !errors.Is(err, sqlstore.ErrNotFound):
		return OpResult{}, err
	}

	f.Name, f.ParentID, f.UpdatedAt = name, parentID, m.now
	if err := m.q.UpdateFolder(ctx, f); err != nil {
		return OpResult{}, err
	}
	if err := eventlog.RecordFolder(ctx, m.q, f, domain.ActionUpdate); err != nil {
		return OpResult{}, err
	}
	return done(StatusUpdated, f.ID), nil
}
