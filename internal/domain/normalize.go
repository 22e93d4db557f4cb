package domain

import (
	"net/url"
	"sort"
	"strings"
)

// InternalTag marks bookmarks that must never be fetched.
const InternalTag = "internal"

// DefaultFolderName is used when a folder arrives without a usable name.
const DefaultFolderName = "Untitled Folder"

// NormalizeURL returns the dedupe key of a URL, or "" when the URL is
// unusable. Scheme defaults to https; scheme, userinfo and host are
// lowercased; an empty path becomes "/"; query pairs are sorted by key then
// value with blank values kept; the fragment is dropped.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme == "" {
		scheme = "https"
	}
	host := strings.ToLower(u.Host)
	if u.User != nil {
		host = strings.ToLower(u.User.String()) + "@" + host
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}

	var b strings.Builder
	b.WriteString(scheme)
	b.WriteString("://")
	b.WriteString(host)
	b.WriteString(path)
	if q := normalizeQuery(u.RawQuery); q != "" {
		b.WriteByte('?')
		b.WriteString(q)
	}
	return b.String()
}

func normalizeQuery(raw string) string {
	if raw == "" {
		return ""
	}
	type pair struct{ k, v string }
	pairs := make([]pair, 0, 4)
	for _, part := range strings.Split(raw, "&") {
		if part == "" {
			continue
		}
		k, v, _ := strings.Cut(part, "=")
		if uk, err := url.QueryUnescape(k); err == nil {
			k = uk
		}
		if uv, err := url.QueryUnescape(v); err == nil {
			v = uv
		}
		pairs = append(pairs, pair{k, v})
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		if pairs[i].k != pairs[j].k {
			return pairs[i].k < pairs[j].k
		}
		return pairs[i].v < pairs[j].v
	})
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = url.QueryEscape(p.k) + "=" + url.QueryEscape(p.v)
	}
	return strings.Join(parts, "&")
}

// ParseTags splits a delimited tag string (comma or semicolon), trims and
// lowercases each entry, and returns the sorted unique set.
func ParseTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	seen := make(map[string]struct{})
	for _, t := range strings.Split(strings.ReplaceAll(raw, ";", ","), ",") {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			seen[t] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// ParseTagList is ParseTags over a list of raw entries.
func ParseTagList(items []string) []string {
	return ParseTags(strings.Join(items, ","))
}

// NormalizeNotes trims notes and maps empty or "none" to nil.
func NormalizeNotes(s *string) *string {
	if s == nil {
		return nil
	}
	text := strings.TrimSpace(*s)
	if text == "" || strings.EqualFold(text, "none") {
		return nil
	}
	return &text
}

// NotesBlank reports whether notes are absent, empty or the literal "none".
func NotesBlank(s *string) bool {
	return NormalizeNotes(s) == nil
}

// HasInternalTag reports whether the tag set contains the internal marker.
func HasInternalTag(tags []string) bool {
	for _, t := range tags {
		if strings.EqualFold(strings.TrimSpace(t), InternalTag) {
			return true
		}
	}
	return false
}

// CleanTitle trims a title and maps empty to nil.
func CleanTitle(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
