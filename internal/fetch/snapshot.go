package fetch

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/cargoos/supplier-scout/internal/model"
)

// SnapshotStore is a keyed lookup of pre-captured listing pages.
type SnapshotStore interface {
	Lookup(query string, page int) ([]byte, string, error)
}

// DirSnapshotStore reads snapshots from a directory. Per-query captures live
// at <slug>-p<page>.html; a generic snapshot.html serves as the shared
// demo page when no per-query capture exists.
type DirSnapshotStore struct {
	Dir string
}

func NewDirSnapshotStore(dir string) *DirSnapshotStore {
	return &DirSnapshotStore{Dir: dir}
}

// Lookup returns the snapshot body and the path it was read from.
func (s *DirSnapshotStore) Lookup(query string, page int) ([]byte, string, error) {
	keyed := filepath.Join(s.Dir, snapshotSlug(query)+"-p"+strconv.Itoa(page)+".html")
	if body, err := os.ReadFile(keyed); err == nil {
		return body, keyed, nil
	}

	shared := filepath.Join(s.Dir, "snapshot.html")
	body, err := os.ReadFile(shared)
	if err != nil {
		return nil, "", err
	}
	return body, shared, nil
}

// snapshotSlug derives a filesystem-safe key from free-form query text.
// CJK characters pass through untouched; separators collapse to dashes.
func snapshotSlug(query string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.TrimSpace(query) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
			dash = false
		default:
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// SnapshotFetcher serves offline mode: no network, no retries. A missing or
// unreadable snapshot fails just the requested page.
type SnapshotFetcher struct {
	store SnapshotStore
}

func NewSnapshotFetcher(store SnapshotStore) *SnapshotFetcher {
	return &SnapshotFetcher{store: store}
}

func (f *SnapshotFetcher) Name() string { return "offline-snapshot" }

func (f *SnapshotFetcher) Fetch(_ context.Context, q model.SearchQuery, page int) (*model.ListingDocument, error) {
	body, path, err := f.store.Lookup(q.Query, page)
	if err != nil {
		return nil, &Error{Kind: KindNotFound, URL: path, Err: err}
	}
	return &model.ListingDocument{
		URL:       path,
		Mode:      model.FetchModeOffline,
		Body:      body,
		FetchedAt: time.Now().UTC(),
	}, nil
}
