package search

import (
	"strings"

	"github.com/paperbase/paperbase/config"
	"github.com/paperbase/paperbase/db/searchdb"
	"github.com/paperbase/paperbase/logger"
)

// Service executes ranked queries against the search index. Reads are
// coordination-free: they may run concurrently with ingestion and observe
// either the pre- or post-upsert entry for a document, never a partial one.
type Service struct {
	logger    logger.Logger
	db        searchdb.DB
	resultCap int
}

func New(logger logger.Logger, cfg *config.Config, db searchdb.DB) *Service {
	return &Service{
		logger:    logger,
		db:        db,
		resultCap: cfg.GetSearchLimit(),
	}
}

// Search returns at most limit ranked results. An empty or whitespace
// query yields an empty result set, never an error; limits outside
// (0, resultCap] are clamped to the configured cap.
func (s *Service) Search(query string, limit int, offset int) (*searchdb.Response, error) {
	if strings.TrimSpace(query) == "" {
		return &searchdb.Response{Results: []searchdb.Result{}}, nil
	}

	if limit <= 0 || limit > s.resultCap {
		limit = s.resultCap
	}
	if offset < 0 {
		offset = 0
	}

	return s.db.Search(query, limit, offset)
}
