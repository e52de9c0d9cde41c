package searchdb

type DB interface {
	Upsert(entry Entry) error
	Remove(id string) error
	RebuildAll(entries []Entry) error
	Search(queryString string, limit int, offset int) (*Response, error)
	GetDocCount() (uint64, error)
	Close() error
}
