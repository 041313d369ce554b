package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/testsabirweb/chatsim/pkg/chat"
)

// Search errors
var (
	ErrEmptyQuery = errors.New("search query cannot be empty")
)

// SearchRequest is a message search within one conversation
type SearchRequest struct {
	// Query is matched case-insensitively against message content
	Query string `json:"query"`

	// Limit is the maximum number of results to return (default: 50, max: 200)
	Limit int `json:"limit,omitempty"`

	// Offset for pagination (default: 0)
	Offset int `json:"offset,omitempty"`
}

// SearchResponse is a page of matching messages, oldest first
type SearchResponse struct {
	Results []chat.Message `json:"results"`

	// Total number of matching messages
	Total int `json:"total"`

	// Number of results returned in this response
	Count int `json:"count"`

	Offset int `json:"offset"`
}

// Validate validates the search request and applies defaults
func (r *SearchRequest) Validate() error {
	if r.Query == "" {
		return ErrEmptyQuery
	}

	if r.Limit <= 0 {
		r.Limit = 50
	} else if r.Limit > 200 {
		r.Limit = 200
	}

	if r.Offset < 0 {
		r.Offset = 0
	}

	return nil
}

// searchRequestFrom reads q, limit and offset from the query string
func searchRequestFrom(r *http.Request) SearchRequest {
	q := r.URL.Query()
	req := SearchRequest{Query: q.Get("q")}
	req.Limit, _ = strconv.Atoi(q.Get("limit"))
	req.Offset, _ = strconv.Atoi(q.Get("offset"))
	return req
}

// page cuts one page out of the full result list
func (r SearchRequest) page(all []chat.Message) SearchResponse {
	resp := SearchResponse{Total: len(all), Offset: r.Offset, Results: []chat.Message{}}
	if r.Offset >= len(all) {
		return resp
	}
	end := r.Offset + r.Limit
	if end > len(all) {
		end = len(all)
	}
	resp.Results = all[r.Offset:end]
	resp.Count = len(resp.Results)
	return resp
}
