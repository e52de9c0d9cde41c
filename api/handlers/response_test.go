package handlers

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewPagination(t *testing.T) {
	testCases := []struct {
		name     string
		total    int
		perPage  int
		page     int
		expected Pagination
	}{
		{
			name:    "EmptySet",
			total:   0,
			perPage: 20,
			page:    1,
			expected: Pagination{
				CurrentPage: 1, PageSize: 20, TotalPages: 1,
				HasNextPage: false, HasPrevPage: false, TotalResults: 0,
			},
		},
		{
			name:    "SinglePartialPage",
			total:   5,
			perPage: 20,
			page:    1,
			expected: Pagination{
				CurrentPage: 1, PageSize: 20, TotalPages: 1,
				HasNextPage: false, HasPrevPage: false, TotalResults: 5,
			},
		},
		{
			name:    "MiddlePage",
			total:   45,
			perPage: 20,
			page:    2,
			expected: Pagination{
				CurrentPage: 2, PageSize: 20, TotalPages: 3,
				HasNextPage: true, HasPrevPage: true, TotalResults: 45,
			},
		},
		{
			name:    "LastPageExactFit",
			total:   40,
			perPage: 20,
			page:    2,
			expected: Pagination{
				CurrentPage: 2, PageSize: 20, TotalPages: 2,
				HasNextPage: false, HasPrevPage: true, TotalResults: 40,
			},
		},
		{
			name:    "PageBeyondEnd",
			total:   10,
			perPage: 20,
			page:    3,
			expected: Pagination{
				CurrentPage: 3, PageSize: 20, TotalPages: 1,
				HasNextPage: false, HasPrevPage: true, TotalResults: 10,
			},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			assert := require.New(t)
			assert.Equal(testCase.expected, newPagination(testCase.total, testCase.perPage, testCase.page))
		})
	}
}
