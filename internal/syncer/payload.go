package syncer

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/MrSnakeDoc/linkloom/internal/domain"
	"github.com/MrSnakeDoc/linkloom/internal/foldertree"
)

// Field is an optional JSON member. Set is true whenever the key was
// present, including an explicit null.
type Field[T any] struct {
	Set   bool
	Value T
}

func (f *Field[T]) UnmarshalJSON(b []byte) error {
	f.Set = true
	var zero T
	f.Value = zero
	if isNull(b) {
		return nil
	}
	return json.Unmarshal(b, &f.Value)
}

// FlexID is an entity id sent as a number or a numeric string. Anything
// else decodes to 0, which never names an entity.
type FlexID int64

func (id *FlexID) UnmarshalJSON(b []byte) error {
	*id = 0
	s := FlexString("")
	if err := s.UnmarshalJSON(b); err != nil {
		return nil
	}
	n, err := strconv.ParseInt(string(s), 10, 64)
	if err == nil && n > 0 {
		*id = FlexID(n)
	}
	return nil
}

// Ptr returns the id as an optional reference, nil for 0.
func (id FlexID) Ptr() *int64 {
	if id <= 0 {
		return nil
	}
	v := int64(id)
	return &v
}

// FlexString accepts strings and numbers; numbers keep their JSON text.
// Other JSON types decode to "".
type FlexString string

func (s *FlexString) UnmarshalJSON(b []byte) error {
	*s = ""
	b = bytes.TrimSpace(b)
	if len(b) == 0 || isNull(b) {
		return nil
	}
	switch b[0] {
	case '"':
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return nil
		}
		*s = FlexString(strings.TrimSpace(v))
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		*s = FlexString(string(b))
	}
	return nil
}

// FlexBool accepts true/false, 1/0 and the usual truthy strings.
type FlexBool bool

func (v *FlexBool) UnmarshalJSON(b []byte) error {
	*v = false
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil
	}
	switch x := raw.(type) {
	case bool:
		*v = FlexBool(x)
	case float64:
		*v = x != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "1", "true", "yes", "on":
			*v = true
		}
	}
	return nil
}

// TagList is a tag set sent as a list or as one delimited string. It is
// normalized on decode.
type TagList []string

func (t *TagList) UnmarshalJSON(b []byte) error {
	*t = TagList{}
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil
	}
	switch x := raw.(type) {
	case string:
		*t = domain.ParseTags(x)
	case []any:
		items := make([]string, 0, len(x))
		for _, item := range x {
			switch v := item.(type) {
			case string:
				items = append(items, v)
			case float64:
				items = append(items, strconv.FormatFloat(v, 'f', -1, 64))
			case bool:
				items = append(items, strconv.FormatBool(v))
			}
		}
		*t = domain.ParseTagList(items)
	}
	return nil
}

// ClientTime is a client-supplied timestamp. Unparseable values are kept
// as invalid so that they disable the last-write-wins check.
type ClientTime struct {
	Time  time.Time
	Valid bool
}

var clientTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

func (c *ClientTime) UnmarshalJSON(b []byte) error {
	*c = ClientTime{}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return nil
	}
	c.Time, c.Valid = ParseClientTime(s)
	return nil
}

// ParseClientTime parses RFC 3339 timestamps with or without fraction.
// Values without a zone are taken as UTC.
func ParseClientTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range clientTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func isNull(b []byte) bool {
	return string(bytes.TrimSpace(b)) == "null"
}

// ─────────────────────────────
// Push operations
// ─────────────────────────────

// Operation is one entry of a push request.
type Operation struct {
	EntityType string          `json:"entity_type"`
	Op         string          `json:"op"`
	ID         FlexID          `json:"id"`
	UpdatedAt  ClientTime      `json:"updated_at"`
	Bookmark   *BookmarkFields `json:"bookmark"`
	Folder     *FolderFields   `json:"folder"`
}

// BookmarkFields carries the bookmark members of an operation. Only
// members with Set are applied by update.
type BookmarkFields struct {
	ID        FlexID            `json:"id"`
	URL       Field[FlexString] `json:"url"`
	Title     Field[FlexString] `json:"title"`
	Notes     Field[FlexString] `json:"notes"`
	FolderID  Field[FlexID]     `json:"folder_id"`
	Tags      Field[TagList]    `json:"tags"`
	UpdatedAt ClientTime        `json:"updated_at"`
}

// FolderFields carries the folder members of an operation.
type FolderFields struct {
	ID        FlexID            `json:"id"`
	Name      Field[FlexString] `json:"name"`
	ParentID  Field[FlexID]     `json:"parent_id"`
	UpdatedAt ClientTime        `json:"updated_at"`
}

// opKind is the closed set of push verbs.
type opKind int

const (
	opUnknown opKind = iota
	opCreate
	opUpdate
	opMove
	opDelete
	opRestore
)

func parseOpKind(s string) opKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "create":
		return opCreate
	case "update":
		return opUpdate
	case "move":
		return opMove
	case "delete":
		return opDelete
	case "restore":
		return opRestore
	}
	return opUnknown
}

// target resolves the entity id and client timestamp: the entity object
// wins over the operation envelope.
func target(entityID FlexID, entityTime ClientTime, op *Operation) (int64, ClientTime) {
	id := int64(entityID)
	if id <= 0 {
		id = int64(op.ID)
	}
	ts := entityTime
	if !ts.Valid {
		ts = op.UpdatedAt
	}
	return id, ts
}

// ─────────────────────────────
// First-sync local payloads
// ─────────────────────────────

// LocalBookmark is a browser bookmark sent with a first-sync request.
type LocalBookmark struct {
	ID            string
	URL           string
	NormalizedURL string
	Title         *string
	Notes         *string
	Tags          []string
	FolderLocalID string
	FolderPath    []string
}

type localBookmarkJSON struct {
	ID            FlexString      `json:"id"`
	URL           FlexString      `json:"url"`
	Title         FlexString      `json:"title"`
	Notes         FlexString      `json:"notes"`
	Tags          TagList         `json:"tags"`
	FolderLocalID FlexString      `json:"folder_local_id"`
	ParentID      FlexString      `json:"parent_id"`
	FolderPath    json.RawMessage `json:"folder_path"`
}

type localFolderJSON struct {
	ID       FlexString `json:"id"`
	ParentID FlexString `json:"parent_id"`
	Title    FlexString `json:"title"`
	Name     FlexString `json:"name"`
}

// ParseLocalBookmarks decodes the bookmarks of a first-sync request.
// Entries that are not objects, or whose URL does not normalize, are
// dropped.
func ParseLocalBookmarks(items []json.RawMessage) []LocalBookmark {
	out := make([]LocalBookmark, 0, len(items))
	for _, raw := range items {
		var in localBookmarkJSON
		if !isObject(raw) || json.Unmarshal(raw, &in) != nil {
			continue
		}
		url := string(in.URL)
		normalized := domain.NormalizeURL(url)
		if url == "" || normalized == "" {
			continue
		}
		folderRef := string(in.FolderLocalID)
		if folderRef == "" {
			folderRef = string(in.ParentID)
		}
		notes := string(in.Notes)
		tags := []string(in.Tags)
		if tags == nil {
			tags = []string{}
		}
		out = append(out, LocalBookmark{
			ID:            string(in.ID),
			URL:           url,
			NormalizedURL: normalized,
			Title:         domain.CleanTitle(string(in.Title)),
			Notes:         domain.NormalizeNotes(&notes),
			Tags:          tags,
			FolderLocalID: folderRef,
			FolderPath:    parsePath(in.FolderPath),
		})
	}
	return out
}

// ParseLocalFolders decodes the folders of a first-sync request. Folders
// without an id, or repeating an id already seen, are dropped.
func ParseLocalFolders(items []json.RawMessage) []foldertree.LocalFolder {
	out := make([]foldertree.LocalFolder, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, raw := range items {
		var in localFolderJSON
		if !isObject(raw) || json.Unmarshal(raw, &in) != nil {
			continue
		}
		id := string(in.ID)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true

		parent := string(in.ParentID)
		if parent == id {
			parent = ""
		}
		title := string(in.Title)
		if title == "" {
			title = string(in.Name)
		}
		if title == "" {
			title = domain.DefaultFolderName
		}
		out = append(out, foldertree.LocalFolder{ID: id, Title: title, ParentID: parent})
	}
	return out
}

func parsePath(raw json.RawMessage) []string {
	var parts []FlexString
	if len(raw) == 0 || json.Unmarshal(raw, &parts) != nil {
		return nil
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(string(p)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func isObject(raw json.RawMessage) bool {
	b := bytes.TrimSpace(raw)
	return len(b) > 0 && b[0] == '{'
}
