package ingest

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/paperbase/paperbase/config"
	"github.com/paperbase/paperbase/db/docstore"
	"github.com/paperbase/paperbase/db/searchdb"
	"github.com/paperbase/paperbase/logger"
	"github.com/paperbase/paperbase/services/keywords"
	"github.com/paperbase/paperbase/services/normalize"
	"github.com/paperbase/paperbase/services/ocr"
)

const (
	ingestQueueSize     = 64
	maxParallelOCR      = 4
	storageAttempts     = 3
	indexAttempts       = 3
	retryBackoffBase    = 200 * time.Millisecond
	removeIndexAttempts = 3
)

var ErrQueueFull = errors.New("ingestion queue full")

// Service is the ingestion orchestrator: it drives an upload through
// normalize, per-page recognition, assembly, keyword extraction, storage
// and indexing, and owns the partial-failure policy across those stages.
// It is also the document facade the transport layer calls for reads,
// listing and deletion.
type Service struct {
	logger     logger.Logger
	normalizer *normalize.Normalizer
	recognizer *ocr.Adapter
	extractor  *keywords.Extractor
	store      docstore.DB
	index      searchdb.DB

	jobs chan job

	mu       sync.Mutex
	inflight map[string]context.CancelFunc
}

type job struct {
	id     string
	data   []byte
	format string
}

func New(ctx context.Context, logger logger.Logger, cfg *config.Config, normalizer *normalize.Normalizer, recognizer *ocr.Adapter, extractor *keywords.Extractor, store docstore.DB, index searchdb.DB) *Service {
	service := &Service{
		logger:     logger,
		normalizer: normalizer,
		recognizer: recognizer,
		extractor:  extractor,
		store:      store,
		index:      index,
		jobs:       make(chan job, ingestQueueSize),
		inflight:   make(map[string]context.CancelFunc),
	}

	for i := 0; i < cfg.GetWorkerCount(); i++ {
		go service.work(ctx, i)
	}

	return service
}

// Ingest creates the document record and queues the pipeline run.
// Processing is asynchronous; callers observe progress through the
// document's status.
func (s *Service) Ingest(data []byte, filename string, format string) (string, error) {
	id, err := s.store.Create(docstore.Metadata{
		Filename:  filename,
		Format:    format,
		SizeBytes: int64(len(data)),
	})
	if err != nil {
		return "", err
	}

	select {
	case s.jobs <- job{id: id, data: data, format: format}:
		return id, nil
	default:
		s.logger.Warn("ingestion queue full, rejecting upload", "id", id)
		if err := s.store.MarkFailed(id, "ingestion queue full"); err != nil {
			s.logger.Error("could not mark overflowed document failed", "id", id, "err", err.Error())
		}
		return "", ErrQueueFull
	}
}

func (s *Service) Get(id string) (*docstore.Document, error) {
	return s.store.Get(id)
}

func (s *Service) List(offset int, limit int) ([]docstore.Summary, int, error) {
	return s.store.List(offset, limit)
}

// Delete removes the document and its index entry. Any in-flight ingestion
// for the id is cancelled first so deletion always wins over ingestion
// started before it.
func (s *Service) Delete(id string) error {
	s.cancelInflight(id)

	if err := s.store.Delete(id); err != nil {
		return err
	}

	if err := s.removeFromIndex(id); err != nil {
		s.logger.Error("could not remove deleted document from index", "id", id, "err", err.Error())
		return err
	}

	return nil
}

// RebuildIndex reconstructs the whole search index from ready documents in
// the store. It is the recovery path for index corruption or loss.
func (s *Service) RebuildIndex() (int, error) {
	docs, err := s.store.AllReady()
	if err != nil {
		return 0, err
	}

	entries := make([]searchdb.Entry, len(docs))
	for i, doc := range docs {
		entries[i] = searchdb.NewEntry(doc)
	}

	if err := s.index.RebuildAll(entries); err != nil {
		return 0, err
	}

	return len(entries), nil
}

func (s *Service) work(ctx context.Context, workerID int) {
	for {
		select {
		case j := <-s.jobs:
			s.process(ctx, j)
		case <-ctx.Done():
			s.logger.Info("ingest worker stopped", "worker_id", workerID, "reason", ctx.Err())
			return
		}
	}
}

func (s *Service) process(ctx context.Context, j job) {
	docCtx := s.registerInflight(j.id, ctx)
	defer s.unregisterInflight(j.id)

	normalized, err := s.normalizer.Normalize(docCtx, j.data, j.format)
	if err != nil {
		s.abort(docCtx, j.id, fmt.Sprintf("normalization failed: %s", err))
		return
	}

	pages := s.recognizePages(docCtx, normalized)
	if docCtx.Err() != nil {
		s.handleCancelled(j.id)
		return
	}

	fullText := assemble(pages)
	terms := s.extractor.Extract(fullText)

	if err := s.persist(j.id, pages, fullText, terms); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			// Deleted while processing; make sure no index entry survives.
			s.handleCancelled(j.id)
			return
		}
		s.abort(docCtx, j.id, fmt.Sprintf("storage failed: %s", err))
		return
	}

	if docCtx.Err() != nil {
		s.handleCancelled(j.id)
		return
	}

	s.reindex(j.id)
}

// recognizePages runs OCR across pages in parallel; pages are independent
// until assembly. Results land in their page's slot so document order is
// by page index, not completion order.
func (s *Service) recognizePages(ctx context.Context, normalized []normalize.Page) []docstore.Page {
	pages := make([]docstore.Page, len(normalized))

	var wg sync.WaitGroup
	sem := make(chan struct{}, maxParallelOCR)

	for _, page := range normalized {
		wg.Add(1)
		go func(page normalize.Page) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			result := s.recognizePage(ctx, page.Image)
			pages[page.Index] = docstore.Page{
				Index:      page.Index,
				Text:       result.Text,
				Confidence: result.Confidence,
			}
		}(page)
	}

	wg.Wait()
	return pages
}

// recognizePage applies the per-page fault policy: one retry after a
// RecognitionError, then the page degrades to empty text with zero
// confidence. A single bad page never fails the document.
func (s *Service) recognizePage(ctx context.Context, img image.Image) ocr.Result {
	result, err := s.recognizer.Recognize(ctx, img)
	if err == nil {
		return result
	}

	if ctx.Err() == nil {
		s.logger.Warn("page recognition failed, retrying once", "err", err.Error())
		result, err = s.recognizer.Recognize(ctx, img)
		if err == nil {
			return result
		}
	}

	s.logger.Warn("page recognition failed after retry, storing empty page", "err", err.Error())
	return ocr.Result{}
}

func (s *Service) persist(id string, pages []docstore.Page, fullText string, terms []string) error {
	if err := s.withStorageRetry("append pages", func() error {
		return s.store.AppendPages(id, pages)
	}); err != nil {
		return err
	}

	return s.withStorageRetry("finalize", func() error {
		return s.store.Finalize(id, fullText, terms)
	})
}

// reindex upserts the ready document's index entry. Failures are retried
// but never roll back the document: the store remains authoritative and a
// rebuild can always repair the index.
func (s *Service) reindex(id string) {
	doc, err := s.store.Get(id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			s.handleCancelled(id)
			return
		}
		s.logger.Error("could not load document for indexing", "id", id, "err", err.Error())
		return
	}

	entry := searchdb.NewEntry(doc)

	var upsertErr error
	for attempt := 0; attempt < indexAttempts; attempt++ {
		if upsertErr = s.index.Upsert(entry); upsertErr == nil {
			// A deletion may have completed between the load above and the
			// upsert, in which case the upsert just resurrected the entry.
			// The store is authoritative: re-check it and undo the entry if
			// the document is gone.
			if _, err := s.store.Get(id); errors.Is(err, docstore.ErrNotFound) {
				s.handleCancelled(id)
			}
			return
		}
		time.Sleep(retryBackoffBase << attempt)
	}

	s.logger.Error("index upsert failed, document stays ready pending rebuild", "id", id, "err", upsertErr.Error())
}

func (s *Service) abort(ctx context.Context, id string, reason string) {
	if ctx.Err() != nil {
		s.handleCancelled(id)
		return
	}

	s.logger.Error("ingestion failed", "id", id, "reason", reason)
	if err := s.store.MarkFailed(id, reason); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			s.handleCancelled(id)
			return
		}
		s.logger.Error("could not mark document failed", "id", id, "err", err.Error())
	}
}

// handleCancelled cleans up after a document that was deleted while its
// ingestion was still running: whatever the interleaving, no index entry
// may outlive the deletion.
func (s *Service) handleCancelled(id string) {
	s.logger.Info("ingestion cancelled", "id", id)
	if err := s.removeFromIndex(id); err != nil {
		s.logger.Error("could not remove cancelled document from index", "id", id, "err", err.Error())
	}
}

func (s *Service) removeFromIndex(id string) error {
	var err error
	for attempt := 0; attempt < removeIndexAttempts; attempt++ {
		if err = s.index.Remove(id); err == nil {
			return nil
		}
		time.Sleep(retryBackoffBase << attempt)
	}
	return err
}

func (s *Service) withStorageRetry(op string, fn func() error) error {
	var err error
	for attempt := 0; attempt < storageAttempts; attempt++ {
		err = fn()
		if err == nil || errors.Is(err, docstore.ErrNotFound) {
			return err
		}
		s.logger.Warn("storage operation failed, backing off", "op", op, "attempt", attempt+1, "err", err.Error())
		time.Sleep(retryBackoffBase << attempt)
	}
	return err
}

func (s *Service) registerInflight(id string, parent context.Context) context.Context {
	docCtx, cancel := context.WithCancel(parent)
	s.mu.Lock()
	s.inflight[id] = cancel
	s.mu.Unlock()
	return docCtx
}

func (s *Service) unregisterInflight(id string) {
	s.mu.Lock()
	if cancel, ok := s.inflight[id]; ok {
		cancel()
		delete(s.inflight, id)
	}
	s.mu.Unlock()
}

func (s *Service) cancelInflight(id string) {
	s.mu.Lock()
	if cancel, ok := s.inflight[id]; ok {
		cancel()
	}
	s.mu.Unlock()
}
