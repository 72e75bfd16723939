package store

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// embedder lazily initializes the (stand-in) embedding model and shares it
// across every EmbeddingIndex in the process, mirroring the spec's "lazy
// model load, shared immutable resource" lifecycle policy. There is no
// expensive model weight load in this implementation, but the guard shape
// is kept so the policy is honored rather than assumed away.
type embedder struct {
	once sync.Once
}

var sharedEmbedder embedder

func (e *embedder) vector(text string) []float64 {
	e.once.Do(func() {
		// Model warm-up would happen here; the hashing embedder needs none.
	})
	return embed(text)
}

// EmbeddingIndex maps key -> dense vector for semantic (cosine) search.
type EmbeddingIndex struct {
	mu       sync.RWMutex
	dir      string
	vectors  map[string][]float64
	embedder *embedder
}

// NewEmbeddingIndex creates an index persisted under dir (as
// vectors.bin + keys.json). A missing or corrupt pair starts empty.
func NewEmbeddingIndex(dir string) *EmbeddingIndex {
	idx := &EmbeddingIndex{dir: dir, vectors: make(map[string][]float64), embedder: &sharedEmbedder}
	idx.load()
	return idx
}

// Add computes and stores the embedding for value under key. Empty or
// all-whitespace values are skipped — no embedding is stored for them.
func (idx *EmbeddingIndex) Add(key, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	v := idx.embedder.vector(value)

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.vectors[key] = v
}

// Remove drops key's embedding, if any.
func (idx *EmbeddingIndex) Remove(key string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.vectors, key)
}

// Update overwrites key's embedding — equivalent to Add.
func (idx *EmbeddingIndex) Update(key, value string) {
	idx.Add(key, value)
}

// Result is one ranked hit from Search.
type Result struct {
	Key   string
	Score float64
}

// Search embeds query and returns the top_k stored vectors by descending
// cosine similarity. Ties break arbitrarily (map iteration order).
func (idx *EmbeddingIndex) Search(query string, topK int) []Result {
	if strings.TrimSpace(query) == "" || topK <= 0 {
		return []Result{}
	}
	q := idx.embedder.vector(query)

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(idx.vectors) == 0 {
		return []Result{}
	}

	results := make([]Result, 0, len(idx.vectors))
	for key, v := range idx.vectors {
		results = append(results, Result{Key: key, Score: cosineSimilarity(q, v)})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if topK < len(results) {
		results = results[:topK]
	}
	return results
}

func (idx *EmbeddingIndex) vectorsPath() string { return filepath.Join(idx.dir, "vectors.bin") }
func (idx *EmbeddingIndex) keysPath() string     { return filepath.Join(idx.dir, "keys.json") }

// Save persists the embeddings as a parallel (keys.json, vectors.bin) pair.
// vectors.bin is a flat little-endian float64 array, len(keys)*embeddingDim
// entries long, one vector per key in keys.json order.
func (idx *EmbeddingIndex) Save() error {
	idx.mu.RLock()
	keys := make([]string, 0, len(idx.vectors))
	for k := range idx.vectors {
		keys = append(keys, k)
	}
	sort.Strings(keys) // deterministic file contents

	buf := make([]byte, 0, len(keys)*embeddingDim*8)
	for _, k := range keys {
		for _, f := range idx.vectors[k] {
			var b [8]byte
			binary.LittleEndian.PutUint64(b[:], math.Float64bits(f))
			buf = append(buf, b[:]...)
		}
	}
	idx.mu.RUnlock()

	if err := os.MkdirAll(idx.dir, 0755); err != nil {
		return err
	}

	keysData, err := json.Marshal(keys)
	if err != nil {
		return err
	}
	if err := os.WriteFile(idx.keysPath(), keysData, 0644); err != nil {
		return err
	}
	return os.WriteFile(idx.vectorsPath(), buf, 0644)
}

func (idx *EmbeddingIndex) load() {
	keysData, err := os.ReadFile(idx.keysPath())
	if err != nil {
		return
	}
	var keys []string
	if err := json.Unmarshal(keysData, &keys); err != nil {
		return
	}

	vecData, err := os.ReadFile(idx.vectorsPath())
	if err != nil {
		return
	}

	floatsPerKey := embeddingDim
	bytesPerKey := floatsPerKey * 8
	if len(vecData) != len(keys)*bytesPerKey {
		return // corrupt/mismatched pair — start empty
	}

	vectors := make(map[string][]float64, len(keys))
	for i, k := range keys {
		vec := make([]float64, floatsPerKey)
		base := i * bytesPerKey
		for j := 0; j < floatsPerKey; j++ {
			bits := binary.LittleEndian.Uint64(vecData[base+j*8 : base+j*8+8])
			vec[j] = math.Float64frombits(bits)
		}
		vectors[k] = vec
	}
	idx.vectors = vectors
}
