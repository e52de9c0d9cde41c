package docstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/paperbase/paperbase/config"
	"github.com/paperbase/paperbase/logger"
	bolt "go.etcd.io/bbolt"
)

const documentsBucket = "documents"

// BoltDB persists document records in bbolt. Update transactions are
// serialized by bbolt, which gives per-id operations the linearizability
// the ingestion pipeline relies on.
type BoltDB struct {
	store  *bolt.DB
	logger logger.Logger
}

func New(logger logger.Logger, cfg *config.Config) (*BoltDB, error) {
	docStorePath := cfg.GetDocStorePath()
	if err := os.MkdirAll(filepath.Dir(docStorePath), 0755); err != nil {
		logger.Error("failed to create document store directory", "err", err.Error(), "path", docStorePath)
		return nil, fmt.Errorf("failed to create document store directory: %w", err)
	}

	store, err := bolt.Open(docStorePath, 0600, &bolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		logger.Error("failed to open document store", "err", err.Error(), "path", docStorePath)
		return nil, fmt.Errorf("failed to open document store: %w", err)
	}

	boltDB := &BoltDB{
		store:  store,
		logger: logger,
	}

	if err := boltDB.initBucket(); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to initialize bucket: %w", err)
	}

	return boltDB, nil
}

func (b *BoltDB) initBucket() error {
	return b.store.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(documentsBucket))
		if err != nil {
			b.logger.Error("failed to create bucket", "err", err.Error())
			return fmt.Errorf("failed to create bucket: %w", err)
		}
		return nil
	})
}

// Create allocates a fresh id and writes the initial processing record.
// Ids are UUIDs and are never reused, including after deletion.
func (b *BoltDB) Create(metadata Metadata) (string, error) {
	doc := &Document{
		ID:         uuid.New().String(),
		Filename:   metadata.Filename,
		Format:     metadata.Format,
		SizeBytes:  metadata.SizeBytes,
		UploadedAt: time.Now().UTC(),
		Pages:      []Page{},
		Status:     StatusProcessing,
	}

	err := b.store.Update(func(tx *bolt.Tx) error {
		return putDocument(tx, doc)
	})
	if err != nil {
		b.logger.Error("failed to create document record", "err", err.Error())
		return "", &StorageError{Op: "create", Err: err}
	}

	return doc.ID, nil
}

// AppendPages adds recognized pages to a processing document. Page order is
// append-only during ingestion and immutable afterwards.
func (b *BoltDB) AppendPages(id string, pages []Page) error {
	return b.update("append pages", id, func(doc *Document) error {
		doc.Pages = append(doc.Pages, pages...)
		doc.PageCount = len(doc.Pages)
		return nil
	})
}

// Finalize records the assembled text and keywords and moves the document
// to ready. Aggregate confidence is the mean of page confidences, so a
// degraded document is visible from its metadata alone.
func (b *BoltDB) Finalize(id string, fullText string, keywords []string) error {
	return b.update("finalize", id, func(doc *Document) error {
		doc.FullText = fullText
		doc.Keywords = keywords
		doc.Confidence = meanConfidence(doc.Pages)
		doc.Status = StatusReady
		doc.FailureReason = ""
		return nil
	})
}

// MarkFailed moves the document to failed, keeping whatever partial pages
// were appended for diagnostics.
func (b *BoltDB) MarkFailed(id string, reason string) error {
	return b.update("mark failed", id, func(doc *Document) error {
		doc.Status = StatusFailed
		doc.FailureReason = reason
		return nil
	})
}

func (b *BoltDB) Get(id string) (*Document, error) {
	var doc *Document
	err := b.store.View(func(tx *bolt.Tx) error {
		var err error
		doc, err = getDocument(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	return doc, nil
}

func (b *BoltDB) Delete(id string) error {
	return b.store.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(documentsBucket))
		if bucket == nil {
			return &StorageError{Op: "delete", Err: fmt.Errorf("bucket not found")}
		}

		if bucket.Get([]byte(id)) == nil {
			return &NotFoundError{ID: id}
		}

		if err := bucket.Delete([]byte(id)); err != nil {
			b.logger.Error("failed to delete document", "id", id, "err", err.Error())
			return &StorageError{Op: "delete", Err: err}
		}

		return nil
	})
}

// List returns document summaries ordered by id. Pagination is a plain
// offset/limit over the bbolt cursor, so callers can restart it at will.
func (b *BoltDB) List(offset int, limit int) ([]Summary, int, error) {
	summaries := make([]Summary, 0, limit)
	total := 0

	err := b.store.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(documentsBucket))
		if bucket == nil {
			return &StorageError{Op: "list", Err: fmt.Errorf("bucket not found")}
		}

		cursor := bucket.Cursor()
		for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
			if total >= offset && (limit <= 0 || len(summaries) < limit) {
				var doc Document
				if err := json.Unmarshal(v, &doc); err != nil {
					b.logger.Error("failed to unmarshal document", "id", string(k), "err", err.Error())
					return &StorageError{Op: "list", Err: err}
				}
				summaries = append(summaries, doc.Summary())
			}
			total++
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	return summaries, total, nil
}

// AllReady returns every ready document, for full index rebuilds.
func (b *BoltDB) AllReady() ([]*Document, error) {
	var docs []*Document

	err := b.store.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(documentsBucket))
		if bucket == nil {
			return &StorageError{Op: "all ready", Err: fmt.Errorf("bucket not found")}
		}

		return bucket.ForEach(func(k, v []byte) error {
			var doc Document
			if err := json.Unmarshal(v, &doc); err != nil {
				b.logger.Error("failed to unmarshal document", "id", string(k), "err", err.Error())
				return &StorageError{Op: "all ready", Err: err}
			}
			if doc.Status == StatusReady {
				docs = append(docs, &doc)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return docs, nil
}

func (b *BoltDB) Close() error {
	if b.store != nil {
		return b.store.Close()
	}
	return nil
}

func (b *BoltDB) update(op string, id string, mutate func(*Document) error) error {
	return b.store.Update(func(tx *bolt.Tx) error {
		doc, err := getDocument(tx, id)
		if err != nil {
			return err
		}

		if err := mutate(doc); err != nil {
			return err
		}

		if err := putDocument(tx, doc); err != nil {
			b.logger.Error("failed to write document", "op", op, "id", id, "err", err.Error())
			return &StorageError{Op: op, Err: err}
		}

		return nil
	})
}

func getDocument(tx *bolt.Tx, id string) (*Document, error) {
	bucket := tx.Bucket([]byte(documentsBucket))
	if bucket == nil {
		return nil, &StorageError{Op: "get", Err: fmt.Errorf("bucket not found")}
	}

	v := bucket.Get([]byte(id))
	if v == nil {
		return nil, &NotFoundError{ID: id}
	}

	var doc Document
	if err := json.Unmarshal(v, &doc); err != nil {
		return nil, &StorageError{Op: "get", Err: err}
	}

	return &doc, nil
}

func putDocument(tx *bolt.Tx, doc *Document) error {
	bucket := tx.Bucket([]byte(documentsBucket))
	if bucket == nil {
		return fmt.Errorf("bucket not found")
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document %s: %w", doc.ID, err)
	}

	return bucket.Put([]byte(doc.ID), data)
}

func meanConfidence(pages []Page) float64 {
	if len(pages) == 0 {
		return 0
	}

	var sum float64
	for _, page := range pages {
		sum += page.Confidence
	}
	return sum / float64(len(pages))
}
