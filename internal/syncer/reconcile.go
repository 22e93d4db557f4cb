package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrSnakeDoc/linkloom/internal/confirm"
	"github.com/MrSnakeDoc/linkloom/internal/content"
	"github.com/MrSnakeDoc/linkloom/internal/domain"
	"github.com/MrSnakeDoc/linkloom/internal/eventlog"
	"github.com/MrSnakeDoc/linkloom/internal/foldertree"
	"github.com/MrSnakeDoc/linkloom/internal/jobs"
	"github.com/MrSnakeDoc/linkloom/internal/logger"
	"github.com/MrSnakeDoc/linkloom/internal/store/sqlstore"
)

const (
	sampleRemovals = 10
	untitled       = "(untitled)"

	ReasonServerEmpty = "server_empty"
	ReasonLocalEmpty  = "local_empty"
)

// PreflightRequest describes the browser tree before a first sync.
type PreflightRequest struct {
	ClientID       string            `json:"client_id"`
	Platform       string            `json:"platform"`
	Mode           string            `json:"mode"`
	LocalBookmarks []json.RawMessage `json:"local_bookmarks"`
	LocalFolders   []json.RawMessage `json:"local_folders"`
}

// Impact counts what a mode would change on each side.
type Impact struct {
	LocalDeletions  int  `json:"local_deletions"`
	LocalAdditions  int  `json:"local_additions"`
	ServerDeletions int  `json:"server_deletions"`
	ServerAdditions int  `json:"server_additions"`
	Matched         *int `json:"matched,omitempty"`
}

// SampleBookmark is one entry of the removal preview.
type SampleBookmark struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// PreflightResult is the impact preview plus the confirmation token.
type PreflightResult struct {
	Mode                    domain.SyncMode  `json:"mode"`
	Warning                 string           `json:"warning"`
	RequiredPhrase          string           `json:"required_phrase"`
	LocalBookmarkCount      int              `json:"local_bookmark_count"`
	ServerBookmarkCount     int              `json:"server_bookmark_count"`
	Impact                  Impact           `json:"impact"`
	WouldNoop               bool             `json:"would_noop"`
	NoOpReason              *string          `json:"no_op_reason"`
	EstimatedLocalDeletions int              `json:"estimated_local_deletions"`
	SampleLocalRemovals     []SampleBookmark `json:"sample_local_removals"`
	ConfirmationToken       string           `json:"confirmation_token"`
	ConfirmationTTLSeconds  int              `json:"confirmation_ttl_seconds"`
}

func parseMode(raw string) (domain.SyncMode, error) {
	mode, err := domain.ParseSyncMode(strings.ToLower(strings.TrimSpace(raw)))
	if err != nil {
		return "", validation("invalid mode")
	}
	return mode, nil
}

// Preflight computes the impact of a first-sync mode and issues the token
// that Apply requires.
func (s *Service) Preflight(ctx context.Context, userID int64, req PreflightRequest) (*PreflightResult, error) {
	clientID, err := requireClientID(req.ClientID)
	if err != nil {
		return nil, err
	}
	mode, err := parseMode(req.Mode)
	if err != nil {
		return nil, err
	}
	locals := ParseLocalBookmarks(req.LocalBookmarks)

	q := s.store.Q()
	if _, err := q.EnsureClient(ctx, userID, clientID, domain.CleanTitle(req.Platform), s.now()); err != nil {
		return nil, err
	}
	serverURLs, err := q.ActiveNormalizedURLs(ctx, userID)
	if err != nil {
		return nil, err
	}

	impact, reason := estimateImpact(mode, locals, serverURLs)
	token, err := s.gate.Issue(userID, clientID, mode, len(locals), len(serverURLs))
	if err != nil {
		return nil, err
	}

	samples := make([]SampleBookmark, 0, sampleRemovals)
	for i, lb := range locals {
		if i == sampleRemovals {
			break
		}
		samples = append(samples, SampleBookmark{Title: domain.Deref(lb.Title), URL: lb.URL})
		if samples[i].Title == "" {
			samples[i].Title = untitled
		}
	}

	res := &PreflightResult{
		Mode:                    mode,
		Warning:                 mode.Warning(),
		RequiredPhrase:          mode.ConfirmPhrase(),
		LocalBookmarkCount:      len(locals),
		ServerBookmarkCount:     len(serverURLs),
		Impact:                  impact,
		WouldNoop:               reason != "",
		EstimatedLocalDeletions: impact.LocalDeletions,
		SampleLocalRemovals:     samples,
		ConfirmationToken:       token,
		ConfirmationTTLSeconds:  int(s.gate.TTL() / time.Second),
	}
	if reason != "" {
		res.NoOpReason = &reason
	}
	return res, nil
}

// estimateImpact returns the per-side counts of a mode and, when the mode
// would change nothing, the no-op reason.
func estimateImpact(mode domain.SyncMode, locals []LocalBookmark, serverURLs []string) (Impact, string) {
	l, srv := len(locals), len(serverURLs)
	switch mode {
	case domain.ModeReplaceLocalWithServer:
		if srv == 0 {
			return Impact{}, ReasonServerEmpty
		}
		return Impact{LocalDeletions: l, LocalAdditions: srv}, ""
	case domain.ModeReplaceServerWithLocal:
		if l == 0 {
			return Impact{}, ReasonLocalEmpty
		}
		return Impact{ServerDeletions: srv, ServerAdditions: l}, ""
	case domain.ModeTwoWayMerge:
		localCounts := make(map[string]int, l)
		for _, lb := range locals {
			localCounts[lb.NormalizedURL]++
		}
		serverCounts := make(map[string]int, srv)
		for _, u := range serverURLs {
			if u != "" {
				serverCounts[u]++
			}
		}
		matched := 0
		for u, n := range localCounts {
			matched += min(n, serverCounts[u])
		}
		serverTotal := 0
		for _, n := range serverCounts {
			serverTotal += n
		}
		return Impact{
			LocalAdditions:  serverTotal - matched,
			ServerAdditions: l - matched,
			Matched:         &matched,
		}, ""
	}
	return Impact{}, ""
}

// ApplyRequest confirms and runs a first-sync mode.
type ApplyRequest struct {
	ClientID          string            `json:"client_id"`
	Mode              string            `json:"mode"`
	ConfirmationToken string            `json:"confirmation_token"`
	TypedPhrase       string            `json:"typed_phrase"`
	ConfirmChecked    FlexBool          `json:"confirm_checked"`
	LocalBookmarks    []json.RawMessage `json:"local_bookmarks"`
	LocalFolders      []json.RawMessage `json:"local_folders"`
}

// Mapping links client ids to the server ids they were matched or created as.
type Mapping struct {
	LocalFolderIDToServerID   map[string]int64 `json:"local_folder_id_to_server_id"`
	LocalBookmarkIDToServerID map[string]int64 `json:"local_bookmark_id_to_server_id"`
}

// Audit records who confirmed an apply and when.
type Audit struct {
	ConfirmedAt time.Time `json:"confirmed_at"`
	ClientID    string    `json:"client_id"`
	UserID      int64     `json:"user_id"`
}

// ApplyResult is the response of Apply. A no-op carries only the status,
// mode, reason and the two counts; its snapshot fields are null.
type ApplyResult struct {
	Status              string                   `json:"status"`
	Mode                domain.SyncMode          `json:"mode"`
	Reason              *string                  `json:"reason"`
	LocalBookmarkCount  *int                     `json:"local_bookmark_count,omitempty"`
	ServerBookmarkCount *int                     `json:"server_bookmark_count,omitempty"`
	Bookmarks           []domain.BookmarkPayload `json:"bookmarks"`
	Folders             []domain.FolderPayload   `json:"folders"`
	Cursor              *int64                   `json:"cursor,omitempty"`
	Mapping             *Mapping                 `json:"mapping,omitempty"`
	Counts              map[string]int           `json:"counts,omitempty"`
	TokenLocalCount     *int                     `json:"token_local_count,omitempty"`
	TokenServerCount    *int                     `json:"token_server_count,omitempty"`
	EnrichmentJobID     *int64                   `json:"enrichment_job_id,omitempty"`
	Audit               *Audit                   `json:"audit,omitempty"`
}

// Apply checks the confirmation gates and runs the mode in one
// transaction. Phrase, checkbox and token failures all return
// ErrConfirmationFailed.
func (s *Service) Apply(ctx context.Context, userID int64, req ApplyRequest) (*ApplyResult, error) {
	clientID := strings.TrimSpace(req.ClientID)
	mode, modeErr := parseMode(req.Mode)
	token := strings.TrimSpace(req.ConfirmationToken)
	if clientID == "" || token == "" || modeErr != nil {
		return nil, validation("client_id, mode, and confirmation_token are required")
	}

	if strings.TrimSpace(req.TypedPhrase) != mode.ConfirmPhrase() || !bool(req.ConfirmChecked) {
		return nil, ErrConfirmationFailed
	}
	claims, err := s.gate.Verify(token, userID, clientID, mode)
	if err != nil {
		if errors.Is(err, confirm.ErrInvalidToken) {
			return nil, ErrConfirmationFailed
		}
		return nil, err
	}

	locals := ParseLocalBookmarks(req.LocalBookmarks)
	folders := ParseLocalFolders(req.LocalFolders)

	q := s.store.Q()
	if _, err := q.EnsureClient(ctx, userID, clientID, nil, s.now()); err != nil {
		return nil, err
	}
	serverCount, err := q.CountActiveBookmarks(ctx, userID)
	if err != nil {
		return nil, err
	}
	if res := noOp(mode, len(locals), serverCount); res != nil {
		s.metrics.Reconciliation(string(mode), res.Status)
		return res, nil
	}

	var prefetched map[int]content.Extracted
	if mode == domain.ModeTwoWayMerge {
		prefetched, err = s.prefetchMergeContent(ctx, userID, locals)
		if err != nil {
			return nil, err
		}
	}

	res := &ApplyResult{
		Mode:             mode,
		TokenLocalCount:  &claims.LocalCount,
		TokenServerCount: &claims.ServerCount,
	}
	var created []int64
	err = s.store.InTx(ctx, func(q *sqlstore.Queries) error {
		now := s.now()
		client, err := q.EnsureClient(ctx, userID, clientID, nil, now)
		if err != nil {
			return err
		}

		r := &reconciliation{q: q, userID: userID, now: now, locals: locals, folders: folders}
		switch mode {
		case domain.ModeReplaceServerWithLocal:
			res.Status = "snapshot"
			if err := r.replaceServer(ctx); err != nil {
				return err
			}
			created = r.created
		case domain.ModeTwoWayMerge:
			res.Status = "merged"
			if err := r.twoWay(ctx, prefetched); err != nil {
				return err
			}
		case domain.ModeReplaceLocalWithServer:
			res.Status = "snapshot"
			reason := string(domain.ModeReplaceLocalWithServer)
			res.Reason = &reason
		}
		res.Counts = r.counts
		res.Mapping = r.mapping()

		if err := s.snapshot(ctx, q, userID, res); err != nil {
			return err
		}
		cursor, err := eventlog.ResetCursor(ctx, q, userID, client, now)
		if err != nil {
			return err
		}
		res.Cursor = &cursor
		res.Audit = &Audit{ConfirmedAt: now, ClientID: clientID, UserID: userID}
		return nil
	})
	if err != nil {
		s.metrics.Reconciliation(string(mode), "error")
		return nil, err
	}
	s.metrics.Reconciliation(string(mode), res.Status)

	if len(created) > 0 && s.enrichment != nil {
		job, err := s.enrichment.StartEnrichment(ctx, userID, created)
		if err != nil {
			s.log.Warn("failed to start replace-server enrichment",
				logger.UserID(userID),
				logger.Int("bookmarks", len(created)),
				logger.Error(err))
		} else {
			res.EnrichmentJobID = &job.ID
		}
	}
	return res, nil
}

func noOp(mode domain.SyncMode, localCount, serverCount int) *ApplyResult {
	var reason string
	switch mode {
	case domain.ModeReplaceLocalWithServer:
		if serverCount == 0 {
			reason = ReasonServerEmpty
		}
	case domain.ModeReplaceServerWithLocal:
		if localCount == 0 {
			reason = ReasonLocalEmpty
		}
	case domain.ModeTwoWayMerge:
	}
	if reason == "" {
		return nil
	}
	return &ApplyResult{
		Status:              "no_op",
		Mode:                mode,
		Reason:              &reason,
		LocalBookmarkCount:  &localCount,
		ServerBookmarkCount: &serverCount,
	}
}

func (s *Service) snapshot(ctx context.Context, q *sqlstore.Queries, userID int64, res *ApplyResult) error {
	bookmarks, err := q.SnapshotBookmarks(ctx, userID)
	if err != nil {
		return err
	}
	folders, err := q.ListFolders(ctx, userID)
	if err != nil {
		return err
	}
	res.Bookmarks = make([]domain.BookmarkPayload, 0, len(bookmarks))
	for i := range bookmarks {
		res.Bookmarks = append(res.Bookmarks, domain.SerializeBookmark(&bookmarks[i]))
	}
	res.Folders = make([]domain.FolderPayload, 0, len(folders))
	for i := range folders {
		res.Folders = append(res.Folders, domain.SerializeFolder(&folders[i]))
	}
	return nil
}

// prefetchMergeContent fetches the content of every local bookmark that a
// two-way merge is expected to create, keyed by its index in locals. It
// runs before the transaction opens so that no lock is held across
// network I/O.
func (s *Service) prefetchMergeContent(ctx context.Context, userID int64, locals []LocalBookmark) (map[int]content.Extracted, error) {
	out := make(map[int]content.Extracted)
	if s.fetcher == nil {
		return out, nil
	}
	server, err := s.store.Q().ActiveNormalizedURLs(ctx, userID)
	if err != nil {
		return nil, err
	}
	available := make(map[string]int, len(server))
	for _, u := range server {
		available[u]++
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.fetchWorkers)
	for i, lb := range locals {
		if available[lb.NormalizedURL] > 0 {
			available[lb.NormalizedURL]--
			continue
		}
		if domain.HasInternalTag(lb.Tags) {
			continue
		}
		g.Go(func() error {
			ex := s.fetcher.FetchAndExtract(ctx, lb.URL)
			mu.Lock()
			out[i] = ex
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("prefetch content: %w", err)
	}
	return out, nil
}

// reconciliation holds the state of one apply transaction.
type reconciliation struct {
	q       *sqlstore.Queries
	userID  int64
	now     time.Time
	locals  []LocalBookmark
	folders []foldertree.LocalFolder

	rec       *foldertree.Reconciler
	bookmarks map[string]int64
	created   []int64
	counts    map[string]int
}

func (r *reconciliation) mapping() *Mapping {
	m := &Mapping{
		LocalFolderIDToServerID:   map[string]int64{},
		LocalBookmarkIDToServerID: map[string]int64{},
	}
	if r.rec != nil {
		m.LocalFolderIDToServerID = r.rec.Mapping()
	}
	for k, v := range r.bookmarks {
		m.LocalBookmarkIDToServerID[k] = v
	}
	return m
}

func (r *reconciliation) materialize(ctx context.Context) error {
	r.rec = foldertree.NewReconciler(r.q, r.userID)
	r.bookmarks = make(map[string]int64)
	_, err := r.rec.Materialize(ctx, r.folders)
	return err
}

// replaceServer soft-deletes every active bookmark, drops the folder tree
// and rebuilds both from the local payload. Content is left to a
// background enrichment job.
func (r *reconciliation) replaceServer(ctx context.Context) error {
	active, err := r.q.ActiveBookmarksByRecency(ctx, r.userID)
	if err != nil {
		return err
	}
	if err := r.q.LoadTags(ctx, active); err != nil {
		return err
	}
	for i := range active {
		b := &active[i]
		b.DeletedAt, b.DeletedBy = domain.Ptr(r.now), domain.Ptr(r.userID)
		b.UpdatedAt = r.now
		if err := r.q.UpdateBookmark(ctx, b); err != nil {
			return err
		}
		if err := eventlog.RecordBookmark(ctx, r.q, b, domain.ActionDelete); err != nil {
			return err
		}
	}

	if _, err := r.q.ClearAllFolderRefs(ctx, r.userID); err != nil {
		return err
	}
	foldersDeleted, err := foldertree.DeleteAll(ctx, r.q, r.userID)
	if err != nil {
		return err
	}
	if err := r.materialize(ctx); err != nil {
		return err
	}

	for _, lb := range r.locals {
		b, err := r.insert(ctx, lb, nil)
		if err != nil {
			return err
		}
		r.created = append(r.created, b.ID)
	}

	r.counts = map[string]int{
		"server_deleted":  len(active),
		"folders_deleted": foldersDeleted,
		"server_created":  len(r.created),
	}
	return nil
}

// twoWay pairs each local bookmark with at most one unused active server
// bookmark of the same normalized URL, most recently updated first.
// Matched pairs are left untouched; the rest are created.
func (r *reconciliation) twoWay(ctx context.Context, prefetched map[int]content.Extracted) error {
	if err := r.materialize(ctx); err != nil {
		return err
	}
	server, err := r.q.ActiveBookmarksByRecency(ctx, r.userID)
	if err != nil {
		return err
	}
	byURL := make(map[string][]int64, len(server))
	for _, b := range server {
		byURL[b.NormalizedURL] = append(byURL[b.NormalizedURL], b.ID)
	}

	createdCount := 0
	for i, lb := range r.locals {
		if ids := byURL[lb.NormalizedURL]; len(ids) > 0 {
			byURL[lb.NormalizedURL] = ids[1:]
			if lb.ID != "" {
				r.bookmarks[lb.ID] = ids[0]
			}
			continue
		}
		var ex *content.Extracted
		if e, ok := prefetched[i]; ok {
			ex = &e
		} else if domain.HasInternalTag(lb.Tags) {
			ex = &content.Extracted{}
		}
		if _, err := r.insert(ctx, lb, ex); err != nil {
			return err
		}
		createdCount++
	}

	r.counts = map[string]int{
		"server_created": createdCount,
		"server_updated": 0,
	}
	return nil
}

// insert creates a server bookmark from a local one, applying fetched
// content when given, and logs its create event.
func (r *reconciliation) insert(ctx context.Context, lb LocalBookmark, ex *content.Extracted) (*domain.Bookmark, error) {
	folderID, err := r.rec.ResolveBookmarkFolder(ctx, lb.FolderLocalID, lb.FolderPath)
	if err != nil {
		return nil, err
	}
	b := &domain.Bookmark{
		UserID:        r.userID,
		URL:           lb.URL,
		NormalizedURL: lb.NormalizedURL,
		Title:         lb.Title,
		Notes:         lb.Notes,
		FolderID:      folderID,
		CreatedAt:     r.now,
		UpdatedAt:     r.now,
	}
	if err := r.q.InsertBookmark(ctx, b); err != nil {
		return nil, err
	}
	if err := r.q.SetBookmarkTags(ctx, r.userID, b.ID, lb.Tags); err != nil {
		return nil, err
	}
	b.Tags = lb.Tags

	if ex != nil {
		if _, err := jobs.ApplyContent(ctx, r.q, b, *ex, jobs.NotesReplace, r.now); err != nil {
			return nil, err
		}
		b.UpdatedAt = r.now
		if err := r.q.UpdateBookmark(ctx, b); err != nil {
			return nil, err
		}
	}
	if err := eventlog.RecordBookmark(ctx, r.q, b, domain.ActionCreate); err != nil {
		return nil, err
	}
	if lb.ID != "" {
		r.bookmarks[lb.ID] = b.ID
	}
	return b, nil
}
