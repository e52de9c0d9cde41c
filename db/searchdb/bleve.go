package searchdb

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/paperbase/paperbase/config"
	"github.com/paperbase/paperbase/logger"
)

const indexingBatchSize = 100
const rebuildPageSize = 1000

const (
	indexFieldFilename   = "filename"
	indexFieldKeywords   = "keywords"
	indexFieldFullText   = "full_text"
	indexFieldUploadedAt = "uploaded_at"
)

type BleveDB struct {
	indexPath string
	logger    logger.Logger
	index     bleve.Index

	fullTextBoost float64
	keywordBoost  float64
	filenameBoost float64
}

func New(logger logger.Logger, cfg *config.Config) (*BleveDB, error) {
	mapping := createIndexMapping()
	indexPath := cfg.GetIndexPath()
	index, err := bleve.New(indexPath, mapping)
	if err != nil {
		index, err = bleve.Open(indexPath)
		if err != nil {
			logger.Error("could not open index", "err", err.Error())
			return nil, &IndexError{Op: "open", Err: err}
		}
	}
	return &BleveDB{
		indexPath:     indexPath,
		logger:        logger,
		index:         index,
		fullTextBoost: cfg.GetFullTextBoost(),
		keywordBoost:  cfg.GetKeywordBoost(),
		filenameBoost: cfg.GetFilenameBoost(),
	}, nil
}

func createIndexMapping() mapping.IndexMapping {

	indexMapping := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()

	// Filename field - analyzed for partial matching
	filenameFieldMapping := bleve.NewTextFieldMapping()
	filenameFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt(indexFieldFilename, filenameFieldMapping)

	// Keywords field - not analyzed (exact match)
	keywordsFieldMapping := bleve.NewTextFieldMapping()
	keywordsFieldMapping.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt(indexFieldKeywords, keywordsFieldMapping)

	// Full text field - analyzed for full-text search
	fullTextFieldMapping := bleve.NewTextFieldMapping()
	fullTextFieldMapping.Analyzer = standard.Name
	fullTextFieldMapping.Store = false // Don't store full text in index
	fullTextFieldMapping.Index = true  // But do index it for searching
	docMapping.AddFieldMappingsAt(indexFieldFullText, fullTextFieldMapping)

	uploadedAtFieldMapping := bleve.NewDateTimeFieldMapping()
	docMapping.AddFieldMappingsAt(indexFieldUploadedAt, uploadedAtFieldMapping)

	indexMapping.AddDocumentMapping("_default", docMapping)

	return indexMapping
}

// Upsert writes or replaces the index entry for a ready document. Bleve
// replaces the entry atomically, so concurrent searches observe either the
// old or the new entry, never a partial one.
func (b *BleveDB) Upsert(entry Entry) error {
	if err := b.index.Index(entry.ID, entry); err != nil {
		b.logger.Error("could not index document", "id", entry.ID, "err", err.Error())
		return &IndexError{Op: "upsert", Err: err}
	}
	return nil
}

func (b *BleveDB) Remove(id string) error {
	if err := b.index.Delete(id); err != nil {
		b.logger.Error("could not remove document from index", "id", id, "err", err.Error())
		return &IndexError{Op: "remove", Err: err}
	}
	return nil
}

// RebuildAll replaces the whole index with entries derived from the store.
// Running it twice on the same store state yields the same index content.
func (b *BleveDB) RebuildAll(entries []Entry) error {
	staleIDs, err := b.allDocumentIDs()
	if err != nil {
		return err
	}

	batch := b.index.NewBatch()
	flushed := 0

	for _, id := range staleIDs {
		batch.Delete(id)
		flushed++
		if flushed%indexingBatchSize == 0 {
			if err := b.index.Batch(batch); err != nil {
				return &IndexError{Op: "rebuild", Err: err}
			}
			batch = b.index.NewBatch()
		}
	}

	for _, entry := range entries {
		if err := batch.Index(entry.ID, entry); err != nil {
			b.logger.Error("could not index document", "id", entry.ID, "err", err.Error())
			return &IndexError{Op: "rebuild", Err: err}
		}
		flushed++
		if flushed%indexingBatchSize == 0 {
			if err := b.index.Batch(batch); err != nil {
				return &IndexError{Op: "rebuild", Err: err}
			}
			batch = b.index.NewBatch()
		}
	}

	if batch.Size() > 0 {
		if err := b.index.Batch(batch); err != nil {
			b.logger.Error("could not rebuild index", "err", err.Error())
			return &IndexError{Op: "rebuild", Err: err}
		}
	}

	return nil
}

func (b *BleveDB) allDocumentIDs() ([]string, error) {
	var ids []string

	for offset := 0; ; offset += rebuildPageSize {
		request := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), rebuildPageSize, offset, false)
		result, err := b.index.Search(request)
		if err != nil {
			return nil, &IndexError{Op: "rebuild", Err: err}
		}
		for _, hit := range result.Hits {
			ids = append(ids, hit.ID)
		}
		if uint64(offset+rebuildPageSize) >= result.Total {
			break
		}
	}

	return ids, nil
}

func (b *BleveDB) Search(queryString string, limit int, offset int) (*Response, error) {
	start := time.Now()

	queryString = strings.ToLower(strings.TrimSpace(queryString))
	if queryString == "" {
		return &Response{Results: []Result{}}, nil
	}

	searchQuery := b.buildSearchQuery(queryString)

	searchRequest := bleve.NewSearchRequestOptions(searchQuery, limit, offset, false)
	searchRequest.Fields = []string{indexFieldFilename, indexFieldUploadedAt}
	searchRequest.IncludeLocations = true

	// Ties on score are broken by most recent upload.
	searchRequest.SortBy([]string{"-_score", "-" + indexFieldUploadedAt})

	searchResult, err := b.index.Search(searchRequest)
	if err != nil {
		b.logger.Error("search failed", "err", err.Error())
		return nil, &IndexError{Op: "search", Err: err}
	}

	results := make([]Result, len(searchResult.Hits))
	for i, hit := range searchResult.Hits {
		result := Result{
			ID:    hit.ID,
			Score: hit.Score,
		}

		if filename, ok := hit.Fields[indexFieldFilename].(string); ok {
			result.Filename = filename
		}
		if uploadedAt, ok := hit.Fields[indexFieldUploadedAt].(string); ok {
			result.UploadedAt = uploadedAt
		}

		for field := range hit.Locations {
			result.MatchedFields = append(result.MatchedFields, field)
		}
		sort.Strings(result.MatchedFields)

		results[i] = result
	}

	searchTime := time.Since(start)

	response := &Response{
		Results:    results,
		Total:      searchResult.Total,
		MaxScore:   searchResult.MaxScore,
		SearchTime: searchTime.String(),
	}

	return response, nil
}

func (b *BleveDB) buildSearchQuery(queryString string) query.Query {

	disjunctQuery := bleve.NewDisjunctionQuery()

	// Term-frequency scoring over the document body.
	fullTextQuery := bleve.NewMatchQuery(queryString)
	fullTextQuery.SetField(indexFieldFullText)
	fullTextQuery.SetBoost(b.fullTextBoost)
	disjunctQuery.AddQuery(fullTextQuery)

	// Exact keyword hits get the strongest boost.
	keywordQuery := bleve.NewTermQuery(queryString)
	keywordQuery.SetField(indexFieldKeywords)
	keywordQuery.SetBoost(b.keywordBoost)
	disjunctQuery.AddQuery(keywordQuery)

	filenameQuery := bleve.NewMatchQuery(queryString)
	filenameQuery.SetField(indexFieldFilename)
	filenameQuery.SetBoost(b.filenameBoost)
	disjunctQuery.AddQuery(filenameQuery)

	if len(queryString) > 2 {
		filenamePrefixQuery := bleve.NewPrefixQuery(queryString)
		filenamePrefixQuery.SetField(indexFieldFilename)
		filenamePrefixQuery.SetBoost(b.filenameBoost / 2)
		disjunctQuery.AddQuery(filenamePrefixQuery)

		keywordPrefixQuery := bleve.NewPrefixQuery(queryString)
		keywordPrefixQuery.SetField(indexFieldKeywords)
		keywordPrefixQuery.SetBoost(b.keywordBoost / 2)
		disjunctQuery.AddQuery(keywordPrefixQuery)
	}

	return disjunctQuery
}

func (b *BleveDB) GetDocCount() (uint64, error) {
	count, err := b.index.DocCount()
	if err != nil {
		return 0, &IndexError{Op: "doc count", Err: err}
	}
	return count, nil
}

func (b *BleveDB) Close() error {

	if b.index != nil {
		if err := b.index.Close(); err != nil {
			b.logger.Error("could not close search index", "err", err.Error())
			return fmt.Errorf("could not close search index: %w", err)
		}
	}
	return nil
}
