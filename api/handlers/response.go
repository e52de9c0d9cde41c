package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// HeaderPaginationTotalCount carries the total result count of paginated
// endpoints so clients can size their pagination without parsing the body.
const HeaderPaginationTotalCount = "X-Pagination-Total-Count"

type response struct {
	Data   any      `json:"data"`
	Errors []string `json:"errors"`
}

func writeResponse(c *gin.Context, data any, statusCode int, errors []string) {

	if statusCode == http.StatusNoContent {
		c.JSON(statusCode, nil)
		return

	}

	c.JSON(statusCode, response{
		Data:   data,
		Errors: errors,
	})
}

func writePaginated(c *gin.Context, data any, total int) {
	c.Header(HeaderPaginationTotalCount, strconv.Itoa(total))
	writeResponse(c, data, http.StatusOK, nil)
}

// Pagination describes which slice of a document listing or result set a
// response covers. Pages are 1-based.
type Pagination struct {
	CurrentPage  int  `json:"current_page"`
	PageSize     int  `json:"page_size"`
	TotalPages   int  `json:"total_pages"`
	HasNextPage  bool `json:"has_next_page"`
	HasPrevPage  bool `json:"has_prev_page"`
	TotalResults int  `json:"total_results"`
}

// newPagination builds the page details from the request's page/per_page
// and the total the store or index reported. An empty set still reports
// one page so clients always have a valid current page.
func newPagination(total, perPage, page int) Pagination {
	totalPages := (total + perPage - 1) / perPage
	if totalPages == 0 {
		totalPages = 1
	}

	return Pagination{
		CurrentPage:  page,
		PageSize:     perPage,
		TotalPages:   totalPages,
		HasNextPage:  page < totalPages,
		HasPrevPage:  page > 1,
		TotalResults: total,
	}
}
