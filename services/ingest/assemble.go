package ingest

import (
	"strings"

	"github.com/paperbase/paperbase/db/docstore"
)

// pageBoundary separates pages within the assembled text. A form feed never
// survives tokenization, so it stays an internal traceability marker and
// never leaks into keywords or search terms.
const pageBoundary = "\f"

// assemble joins recognized pages into the canonical searchable body, in
// page-index order. It is a pure function: identical inputs always produce
// identical output.
func assemble(pages []docstore.Page) string {
	texts := make([]string, len(pages))
	for i, page := range pages {
		texts[i] = page.Text
	}
	return strings.Join(texts, "\n"+pageBoundary+"\n")
}
