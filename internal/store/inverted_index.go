package store

import (
	"encoding/json"
	"os"
	"regexp"
	"strings"
	"sync"
)

// InvertedIndex maps a lowercased token to the set of keys whose value
// contains that token. It backs search_text's AND/OR queries.
//
// Tokenization is deliberately simple: lowercase, then every maximal run of
// word characters is one token. No stemming, no stopword removal — matches
// the original Python implementation's regex-based tokenizer exactly.
var tokenPattern = regexp.MustCompile(`\w+`)

func tokenize(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}

// InvertedIndex is safe for concurrent use. Callers mutating it (the
// KVStore write path) are expected to already hold the store's lock, so
// this internal mutex exists mainly to protect search() against save().
type InvertedIndex struct {
	mu   sync.RWMutex
	path string
	// word -> set of keys, where the set is a map used as a set
	postings map[string]map[string]struct{}
}

// NewInvertedIndex creates an index persisted at path. A missing or
// corrupt file starts empty — it is fully re-derivable from the table via
// WAL replay.
func NewInvertedIndex(path string) *InvertedIndex {
	idx := &InvertedIndex{path: path, postings: make(map[string]map[string]struct{})}
	idx.load()
	return idx
}

// Add indexes every token of value under key.
func (idx *InvertedIndex) Add(key, value string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, tok := range tokenize(value) {
		set, ok := idx.postings[tok]
		if !ok {
			set = make(map[string]struct{})
			idx.postings[tok] = set
		}
		set[key] = struct{}{}
	}
}

// Remove deletes key from every posting, pruning any posting left empty.
// oldValue is unused here (a full scan is what makes this correct
// regardless of whether the caller tells us which tokens to look at) but
// is kept in the signature so callers can pass it as a documented
// optimization hint for future implementations.
func (idx *InvertedIndex) Remove(key string, _ string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for tok, set := range idx.postings {
		if _, ok := set[key]; ok {
			delete(set, key)
			if len(set) == 0 {
				delete(idx.postings, tok)
			}
		}
	}
}

// Update replaces key's postings: remove everything under the old value,
// then add everything under the new one.
func (idx *InvertedIndex) Update(key, oldValue, newValue string) {
	idx.Remove(key, oldValue)
	idx.Add(key, newValue)
}

// Mode selects how multiple query tokens combine.
type Mode string

const (
	ModeAND Mode = "AND"
	ModeOR  Mode = "OR"
)

// Search tokenizes query and returns the matching keys. AND intersects
// every token's posting; OR unions them. An empty query returns no keys.
func (idx *InvertedIndex) Search(query string, mode Mode) []string {
	tokens := tokenize(query)
	if len(tokens) == 0 {
		return []string{}
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var result map[string]struct{}
	for i, tok := range tokens {
		posting := idx.postings[tok] // nil (empty) if absent
		if i == 0 {
			result = cloneSet(posting)
			continue
		}
		if mode == ModeAND {
			result = intersect(result, posting)
		} else {
			result = union(result, posting)
		}
	}

	keys := make([]string, 0, len(result))
	for k := range result {
		keys = append(keys, k)
	}
	return keys
}

func cloneSet(s map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(s))
	for k := range s {
		out[k] = struct{}{}
	}
	return out
}

func intersect(a, b map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{})
	for k := range a {
		if _, ok := b[k]; ok {
			out[k] = struct{}{}
		}
	}
	return out
}

func union(a, b map[string]struct{}) map[string]struct{} {
	out := cloneSet(a)
	for k := range b {
		out[k] = struct{}{}
	}
	return out
}

// Save persists the index as word -> []key, rewritten in full.
func (idx *InvertedIndex) Save() error {
	idx.mu.RLock()
	serializable := make(map[string][]string, len(idx.postings))
	for tok, set := range idx.postings {
		keys := make([]string, 0, len(set))
		for k := range set {
			keys = append(keys, k)
		}
		serializable[tok] = keys
	}
	idx.mu.RUnlock()

	data, err := json.Marshal(serializable)
	if err != nil {
		return err
	}
	return os.WriteFile(idx.path, data, 0644)
}

func (idx *InvertedIndex) load() {
	data, err := os.ReadFile(idx.path)
	if err != nil {
		return // missing file — start empty, WAL replay rebuilds it
	}

	var serializable map[string][]string
	if err := json.Unmarshal(data, &serializable); err != nil {
		return // corrupt file — start empty
	}

	postings := make(map[string]map[string]struct{}, len(serializable))
	for tok, keys := range serializable {
		set := make(map[string]struct{}, len(keys))
		for _, k := range keys {
			set[k] = struct{}{}
		}
		postings[tok] = set
	}
	idx.postings = postings
}
