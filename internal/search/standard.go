package search

import (
	"sort"
	"strings"
)

// ModeStandard labels the fully materialized index used below the entry
// threshold.
const ModeStandard = "standard"

// stdEntry is the materialized record: both name casings plus the parent
// link.
type stdEntry struct {
	name     string
	lower    string
	parent   uint32
	size     int64
	modEpoch int64
	isDir    bool
}

// tokenPosting maps one lower-cased token to the ids carrying it, kept
// sorted by token for prefix-range lookups.
type tokenPosting struct {
	token string
	ids   []uint32
}

// standardIndex stores materialized entries keyed by dense id plus an
// inverted token index. Entry 0 is the root.
type standardIndex struct {
	entries []stdEntry
	tokens  []tokenPosting
}

func buildStandard(walk []walkEntry) *standardIndex {
	ix := &standardIndex{entries: make([]stdEntry, 0, len(walk))}

	byToken := make(map[string][]uint32)
	for i, we := range walk {
		lower := strings.ToLower(we.name)
		ix.entries = append(ix.entries, stdEntry{
			name:     we.name,
			lower:    lower,
			parent:   we.parent,
			size:     we.size,
			modEpoch: we.modTime.Unix(),
			isDir:    we.isDir,
		})
		if i == 0 {
			continue
		}
		for _, tok := range splitTokens(lower) {
			byToken[tok] = append(byToken[tok], uint32(i))
		}
	}

	ix.tokens = make([]tokenPosting, 0, len(byToken))
	for tok, ids := range byToken {
		ix.tokens = append(ix.tokens, tokenPosting{token: tok, ids: ids})
	}
	sort.Slice(ix.tokens, func(i, j int) bool {
		return ix.tokens[i].token < ix.tokens[j].token
	})

	return ix
}

func (ix *standardIndex) Mode() string { return ModeStandard }

// Len reports indexed entries, excluding the synthetic root.
func (ix *standardIndex) Len() int { return len(ix.entries) - 1 }

// prefixIDs collects the ids of entries owning a token with the given
// prefix.
func (ix *standardIndex) prefixIDs(prefix string) map[uint32]struct{} {
	out := make(map[uint32]struct{})
	start := sort.Search(len(ix.tokens), func(i int) bool {
		return ix.tokens[i].token >= prefix
	})
	for i := start; i < len(ix.tokens) && strings.HasPrefix(ix.tokens[i].token, prefix); i++ {
		for _, id := range ix.tokens[i].ids {
			out[id] = struct{}{}
		}
	}
	return out
}

// tokenPrefixSet intersects the per-subtoken id sets; membership means
// every query sub-token prefixes some token of the entry.
func (ix *standardIndex) tokenPrefixSet(queryTokens []string) map[uint32]struct{} {
	if len(queryTokens) == 0 {
		return nil
	}
	acc := ix.prefixIDs(queryTokens[0])
	for _, qt := range queryTokens[1:] {
		if len(acc) == 0 {
			return acc
		}
		next := ix.prefixIDs(qt)
		for id := range acc {
			if _, ok := next[id]; !ok {
				delete(acc, id)
			}
		}
	}
	return acc
}

func (ix *standardIndex) reconstruct(id uint32) string {
	if id == 0 {
		return "/"
	}
	var segs []string
	for cur := id; cur != 0; cur = ix.entries[cur].parent {
		segs = append(segs, ix.entries[cur].name)
	}
	var b strings.Builder
	for i := len(segs) - 1; i >= 0; i-- {
		b.WriteByte('/')
		b.WriteString(segs[i])
	}
	return b.String()
}

func (ix *standardIndex) scan(q scanQuery) []Result {
	tokenSet := ix.tokenPrefixSet(q.tokens)

	var results []Result
	for i := 1; i < len(ix.entries); i++ {
		e := &ix.entries[i]
		name := e.lower
		display := e.name
		if q.caseSensitive {
			name = e.name
		}

		_, tokenOK := tokenSet[uint32(i)]
		if q.caseSensitive {
			// The inverted index is lower-cased; recheck exactly.
			tokenOK = tokenPrefixMatch(q.tokens, splitTokens(name))
		}

		score := scoreWith(q.q, name, tokenOK, e.isDir)
		if score == 0 {
			continue
		}

		path := ix.reconstruct(uint32(i))
		if q.pathPrefix != "" && !strings.HasPrefix(path, q.pathPrefix) {
			continue
		}

		results = append(results, Result{
			Name:         display,
			Path:         path,
			Size:         e.size,
			FileType:     fileType(e.isDir),
			Score:        score,
			LastModified: e.modEpoch,
		})
	}
	return results
}

func fileType(isDir bool) string {
	if isDir {
		return "directory"
	}
	return "file"
}
