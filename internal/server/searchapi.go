package server

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/dev-harsh1998/irondrop/internal/errors"
	"github.com/dev-harsh1998/irondrop/internal/httpcore"
	"github.com/dev-harsh1998/irondrop/internal/pathutil"
	"github.com/dev-harsh1998/irondrop/internal/search"
)

// searchResponse is the wire format of GET /_irondrop/search.
type searchResponse struct {
	Status     string          `json:"status"`
	Query      string          `json:"query"`
	Results    []search.Result `json:"results"`
	Pagination struct {
		Total   int  `json:"total"`
		Limit   int  `json:"limit"`
		Offset  int  `json:"offset"`
		HasMore bool `json:"has_more"`
	} `json:"pagination"`
	SearchStats struct {
		SearchTimeMs int64  `json:"search_time_ms"`
		IndexedFiles int    `json:"indexed_files"`
		CacheHit     bool   `json:"cache_hit"`
		EngineMode   string `json:"engine_mode"`
	} `json:"search_stats"`
}

// handleSearch answers a name query against the published index.
func (s *Server) handleSearch(rw *httpcore.ResponseWriter, req *httpcore.Request) error {
	q := queryParam(req.RawQuery, "q")
	if q == "" {
		return errors.BadRequest("query parameter q is required")
	}

	query := search.Query{
		Q:             q,
		PathPrefix:    queryParam(req.RawQuery, "path"),
		CaseSensitive: queryParam(req.RawQuery, "case_sensitive") == "true",
	}
	if v := queryParam(req.RawQuery, "limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return errors.BadRequest("limit must be a positive integer")
		}
		query.Limit = n
	}
	if v := queryParam(req.RawQuery, "offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return errors.BadRequest("offset must be a non-negative integer")
		}
		query.Offset = n
	}

	resp, err := s.engine.Search(query)
	if err != nil {
		return err
	}

	out := searchResponse{Status: "success", Query: q}
	out.Results = resp.Results
	if out.Results == nil {
		out.Results = []search.Result{}
	}
	out.Pagination.Total = resp.Total
	out.Pagination.Limit = resp.Limit
	out.Pagination.Offset = resp.Offset
	out.Pagination.HasMore = resp.HasMore
	out.SearchStats.SearchTimeMs = resp.SearchTimeMs
	out.SearchStats.IndexedFiles = resp.IndexedFiles
	out.SearchStats.CacheHit = resp.CacheHit
	out.SearchStats.EngineMode = resp.Mode

	body, err := json.Marshal(out)
	if err != nil {
		return errors.Internal("search encode failed", err)
	}
	rw.SetHeader("Cache-Control", "no-store")
	return rw.WriteFull(200, "application/json; charset=utf-8", body)
}

// queryParam extracts one decoded value from a raw query string.
func queryParam(rawQuery, key string) string {
	for _, pair := range strings.Split(rawQuery, "&") {
		k, v, _ := strings.Cut(pair, "=")
		if k != key {
			continue
		}
		decoded, err := pathutil.PercentDecode(strings.ReplaceAll(v, "+", " "))
		if err != nil {
			return ""
		}
		return decoded
	}
	return ""
}
