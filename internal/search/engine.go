package search

import (
	"context"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/dev-harsh1998/irondrop/internal/errors"
	"github.com/dev-harsh1998/irondrop/internal/logging"
	"github.com/dev-harsh1998/irondrop/internal/metrics"
)

// Engine defaults.
const (
	DefaultStandardModeThreshold = 100_000
	DefaultRebuildInterval       = 60 * time.Second

	DefaultLimit = 50
	MaxLimit     = 100
)

// index is the mode-independent view the engine queries. Builders produce a
// new one per generation; readers hold whichever they loaded.
type index interface {
	Mode() string
	Len() int
	scan(q scanQuery) []Result
	reconstruct(id uint32) string
}

// scanQuery is the normalized form handed to an index scan.
type scanQuery struct {
	q             string
	tokens        []string
	caseSensitive bool
	pathPrefix    string
}

// Options tune index construction and the result cache.
type Options struct {
	StandardModeThreshold int
	MaxIndexedEntries     int
	MaxDepth              int
	RebuildInterval       time.Duration
	CacheMaxEntries       int
	CacheTTL              time.Duration
}

// Engine owns the published index handle and the result cache.
type Engine struct {
	root string
	opts Options

	idx   atomic.Pointer[generation]
	cache *queryCache
}

type generation struct {
	index   index
	builtAt time.Time
}

// NewEngine creates an engine for the served root. No index exists until
// the first Rebuild; queries before that fail with ServiceUnavailable.
func NewEngine(root string, opts Options) *Engine {
	if opts.StandardModeThreshold <= 0 {
		opts.StandardModeThreshold = DefaultStandardModeThreshold
	}
	if opts.RebuildInterval <= 0 {
		opts.RebuildInterval = DefaultRebuildInterval
	}
	return &Engine{
		root:  root,
		opts:  opts,
		cache: newQueryCache(opts.CacheMaxEntries, opts.CacheTTL),
	}
}

// Rebuild walks the tree, builds a fresh index in the mode selected by the
// entry count, and publishes it atomically. The prior generation stays
// valid for in-flight readers.
func (e *Engine) Rebuild(ctx context.Context) error {
	start := time.Now()

	walk, err := walkTree(ctx, e.root, e.opts.MaxIndexedEntries, e.opts.MaxDepth)
	if err != nil {
		return errors.Internal("index walk failed", err)
	}

	var ix index
	if len(walk)-1 <= e.opts.StandardModeThreshold {
		ix = buildStandard(walk)
	} else {
		ix = buildCompact(walk)
	}

	e.idx.Store(&generation{index: ix, builtAt: time.Now()})

	elapsed := time.Since(start)
	metrics.IndexedEntries.Set(float64(ix.Len()))
	metrics.IndexRebuildDuration.WithLabelValues(ix.Mode()).Observe(elapsed.Seconds())
	logging.Debug("search index rebuilt",
		zap.Int("entries", ix.Len()),
		zap.String("mode", ix.Mode()),
		zap.Duration("elapsed", elapsed))
	return nil
}

// RunRebuilder rebuilds on the configured interval until ctx is done. The
// initial build happens immediately.
func (e *Engine) RunRebuilder(ctx context.Context) error {
	if err := e.Rebuild(ctx); err != nil {
		logging.Error("initial index build failed", zap.Error(err))
	}

	ticker := time.NewTicker(e.opts.RebuildInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := e.Rebuild(ctx); err != nil {
				logging.Error("index rebuild failed", zap.Error(err))
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Query is one search request.
type Query struct {
	Q             string
	Limit         int
	Offset        int
	PathPrefix    string
	CaseSensitive bool
}

// Response carries paginated hits plus the stats block of the wire format.
type Response struct {
	Results      []Result
	Total        int
	Limit        int
	Offset       int
	HasMore      bool
	SearchTimeMs int64
	IndexedFiles int
	CacheHit     bool
	Mode         string
}

// cacheKey folds the non-pagination parameters; pagination slices the
// cached full result set.
func (q *Query) cacheKey(normalized string) string {
	var b strings.Builder
	b.WriteString(normalized)
	b.WriteByte('|')
	b.WriteString(q.PathPrefix)
	b.WriteByte('|')
	b.WriteString(strconv.FormatBool(q.CaseSensitive))
	return b.String()
}

// Search answers a query against the published index.
func (e *Engine) Search(q Query) (*Response, error) {
	if q.Q == "" {
		return nil, errors.BadRequest("query must not be empty")
	}
	gen := e.idx.Load()
	if gen == nil {
		return nil, errors.ServiceUnavailable("search index is building")
	}
	ix := gen.index

	start := time.Now()

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	normalized := q.Q
	if !q.CaseSensitive {
		normalized = strings.ToLower(q.Q)
	}
	pathPrefix := normalizePathPrefix(q.PathPrefix)

	key := q.cacheKey(normalized)
	full, hit := e.cache.get(key)
	if !hit {
		full = ix.scan(scanQuery{
			q:             normalized,
			tokens:        strings.Fields(normalized),
			caseSensitive: q.CaseSensitive,
			pathPrefix:    pathPrefix,
		})
		sortResults(full)
		e.cache.put(key, full)
	}

	end := offset + limit
	if offset > len(full) {
		offset = len(full)
	}
	if end > len(full) {
		end = len(full)
	}
	page := full[offset:end]

	elapsed := time.Since(start)
	cacheLabel := "miss"
	if hit {
		cacheLabel = "hit"
	}
	metrics.SearchQueriesTotal.WithLabelValues(ix.Mode(), cacheLabel).Inc()
	metrics.SearchDuration.WithLabelValues(ix.Mode(), cacheLabel).Observe(elapsed.Seconds())

	return &Response{
		Results:      page,
		Total:        len(full),
		Limit:        limit,
		Offset:       q.Offset,
		HasMore:      end < len(full),
		SearchTimeMs: elapsed.Milliseconds(),
		IndexedFiles: ix.Len(),
		CacheHit:     hit,
		Mode:         ix.Mode(),
	}, nil
}

// normalizePathPrefix gives the filter a leading slash and no trailing one.
func normalizePathPrefix(p string) string {
	if p == "" {
		return ""
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return strings.TrimRight(p, "/")
}

// Stats reports the published index size and mode for the status endpoint.
func (e *Engine) Stats() (indexed int, mode string) {
	gen := e.idx.Load()
	if gen == nil {
		return 0, "building"
	}
	return gen.index.Len(), gen.index.Mode()
}

// Ready reports whether a generation has been published.
func (e *Engine) Ready() bool {
	return e.idx.Load() != nil
}
