package web

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/JonMunkholm/taxonomy-import/internal/importer"
)

// reportStore keeps finished import reports in memory until they expire.
// Reports are not persisted; the catalog keeps only the run summary.
type reportStore struct {
	cache *gocache.Cache
}

func newReportStore(ttl time.Duration) *reportStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &reportStore{cache: gocache.New(ttl, ttl/4)}
}

func (s *reportStore) put(rep *importer.Report) {
	s.cache.SetDefault(rep.RunID, rep)
}

func (s *reportStore) get(runID string) (*importer.Report, bool) {
	v, ok := s.cache.Get(runID)
	if !ok {
		return nil, false
	}
	return v.(*importer.Report), true
}
