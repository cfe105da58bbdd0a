package scoring

import (
	"context"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/spigell/cv-matcher/internal/document"
)

const BackendTfidf = "tfidf"

// LocalTfidfScorer scores candidates offline with TF-IDF vectors and cosine similarity.
// The vocabulary is rebuilt on every call from the query and all candidates.
type LocalTfidfScorer struct {
	logger *zap.Logger
}

// term is one non-zero component of a sparse vector.
type term struct {
	idx    int
	weight float64
}

type sparseVector []term

func NewLocalTfidf(logger *zap.Logger) *LocalTfidfScorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalTfidfScorer{logger: logger}
}

func (s *LocalTfidfScorer) Name() string { return BackendTfidf }

func (s *LocalTfidfScorer) Score(ctx context.Context, query string, candidates []document.Document) (*Result, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no candidates to score", ErrInput)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	texts := make([]string, 0, len(candidates)+1)
	texts = append(texts, query)
	for _, c := range candidates {
		texts = append(texts, c.Text)
	}

	vectors, vocabulary := vectorize(texts)

	s.logger.Debug("tfidf corpus vectorized",
		zap.Int("documents", len(texts)),
		zap.Int("vocabulary", vocabulary),
	)

	queryVec := vectors[0]
	scores := make([]CandidateScore, len(candidates))
	for i, c := range candidates {
		sim, err := cosine(queryVec, vectors[i+1])
		if err != nil {
			return nil, fmt.Errorf("candidate %s: %w", c.ID, err)
		}
		scores[i] = CandidateScore{Index: i, ID: c.ID, Score: sim}
	}

	return newResult(scores), nil
}

// vectorize builds smoothed TF-IDF vectors over the shared vocabulary of texts:
// tf is the raw term count and idf = ln((1+n)/(1+df)) + 1.
// Components are ordered by the alphabetical index of the term.
func vectorize(texts []string) ([]sparseVector, int) {
	counts := make([]map[string]int, len(texts))
	df := make(map[string]int)

	for i, text := range texts {
		tf := make(map[string]int)
		for _, token := range Tokenize(text) {
			tf[token]++
		}
		for token := range tf {
			df[token]++
		}
		counts[i] = tf
	}

	vocabulary := make([]string, 0, len(df))
	for token := range df {
		vocabulary = append(vocabulary, token)
	}
	sort.Strings(vocabulary)

	n := float64(len(texts))
	idf := make(map[string]float64, len(vocabulary))
	index := make(map[string]int, len(vocabulary))
	for i, token := range vocabulary {
		index[token] = i
		idf[token] = math.Log((1+n)/(1+float64(df[token]))) + 1
	}

	vectors := make([]sparseVector, len(texts))
	for i, tf := range counts {
		vec := make(sparseVector, 0, len(tf))
		for token, count := range tf {
			vec = append(vec, term{idx: index[token], weight: float64(count) * idf[token]})
		}
		sort.Slice(vec, func(a, b int) bool { return vec[a].idx < vec[b].idx })
		vectors[i] = vec
	}

	return vectors, len(vocabulary)
}

// cosine returns the cosine similarity of a and b, 0 when either has zero norm.
func cosine(a, b sparseVector) (float64, error) {
	normA := squaredNorm(a)
	normB := squaredNorm(b)
	if normA == 0 || normB == 0 {
		return 0, nil
	}

	var dot float64
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i].idx == b[j].idx:
			dot += a[i].weight * b[j].weight
			i++
			j++
		case a[i].idx < b[j].idx:
			i++
		default:
			j++
		}
	}

	return clampSimilarity(dot / math.Sqrt(normA*normB))
}

func squaredNorm(v sparseVector) float64 {
	var sum float64
	for _, t := range v {
		sum += t.weight * t.weight
	}
	return sum
}

// Cosine32 returns the cosine similarity of two dense embeddings clamped to [0,1].
func Cosine32(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: vector dimensions differ (%d != %d)", ErrComputation, len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}

	return clampSimilarity(dot / math.Sqrt(normA*normB))
}

func clampSimilarity(sim float64) (float64, error) {
	if math.IsNaN(sim) || math.IsInf(sim, 0) {
		return 0, fmt.Errorf("%w: similarity is not a number", ErrComputation)
	}
	return math.Max(0, math.Min(1, sim)), nil
}
