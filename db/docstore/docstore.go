package docstore

type DB interface {
	Create(metadata Metadata) (string, error)
	AppendPages(id string, pages []Page) error
	Finalize(id string, fullText string, keywords []string) error
	MarkFailed(id string, reason string) error
	Get(id string) (*Document, error)
	Delete(id string) error
	List(offset int, limit int) ([]Summary, int, error)
	AllReady() ([]*Document, error)
	Close() error
}
