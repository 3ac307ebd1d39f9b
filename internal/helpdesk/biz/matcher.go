package biz

import (
	"context"
	stderrors "errors"
	"sort"
	"strings"
	"time"

	"github.com/kart-io/helpdesk-x/internal/helpdesk/store"
	"github.com/kart-io/helpdesk-x/pkg/errors"
	"github.com/kart-io/helpdesk-x/pkg/llm"
)

const (
	// DefaultMatchThreshold 语义匹配的最低相似度，低于该值视为无匹配。
	DefaultMatchThreshold = 0.35

	// DefaultTopK 每次检索返回的候选数量。
	DefaultTopK = 3

	// defaultEmbedTimeout bounds a single embedding call so a slow upstream
	// cannot stall a chat turn.
	defaultEmbedTimeout = 15 * time.Second

	keywordBonusPerHit = 0.05
	minKeywordLen      = 4
)

// MatchResult 是一次语义检索命中的结果，Score 已含关键词加成并封顶为 1.0。
type MatchResult struct {
	KBID    string  `json:"kb_id"`
	UseCase string  `json:"use_case"`
	Score   float32 `json:"score"`
}

// MatcherService performs semantic lookup of issue descriptions against the
// knowledge base vector index.
type MatcherService struct {
	embedder  llm.EmbeddingProvider
	index     store.VectorIndex
	threshold float32
	topK      int
	timeout   time.Duration
}

// NewMatcherService creates a matcher over the given embedding provider and
// index. threshold <= 0 falls back to DefaultMatchThreshold, topK <= 0 to
// DefaultTopK.
func NewMatcherService(embedder llm.EmbeddingProvider, index store.VectorIndex, threshold float32, topK int) *MatcherService {
	if threshold <= 0 {
		threshold = DefaultMatchThreshold
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &MatcherService{
		embedder:  embedder,
		index:     index,
		threshold: threshold,
		topK:      topK,
		timeout:   defaultEmbedTimeout,
	}
}

// Threshold returns the configured acceptance threshold.
func (m *MatcherService) Threshold() float32 {
	return m.threshold
}

// Embed generates the vector for text with a bounded timeout. Deadline
// overruns surface as ErrUpstreamTimeout so callers can degrade gracefully.
func (m *MatcherService) Embed(ctx context.Context, text string) ([]float32, error) {
	embedCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	vec, err := m.embedder.EmbedSingle(embedCtx, text)
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) {
			return nil, errors.ErrUpstreamTimeout.WithCause(err)
		}
		return nil, err
	}
	return vec, nil
}

// Match embeds the issue text, searches the index and re-scores the hits
// with a keyword overlap bonus. Results come back sorted by final score,
// best first. Hits below the threshold are dropped. topK <= 0 uses the
// configured candidate count.
func (m *MatcherService) Match(ctx context.Context, issue string, topK int) ([]MatchResult, error) {
	if topK <= 0 {
		topK = m.topK
	}

	vec, err := m.Embed(ctx, issue)
	if err != nil {
		return nil, err
	}

	hits, err := m.index.Search(ctx, vec, topK)
	if err != nil {
		return nil, err
	}

	issueWords := keywordSet(issue)
	results := make([]MatchResult, 0, len(hits))
	for _, h := range hits {
		score := h.Similarity + keywordBonus(issueWords, h.UseCase)
		if score > 1.0 {
			score = 1.0
		}
		if score < m.threshold {
			continue
		}
		results = append(results, MatchResult{
			KBID:    h.KBID,
			UseCase: h.UseCase,
			Score:   score,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results, nil
}

// Best returns the single best match, or nil when nothing clears the
// threshold.
func (m *MatcherService) Best(ctx context.Context, issue string) (*MatchResult, error) {
	results, err := m.Match(ctx, issue, m.topK)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return &results[0], nil
}

// keywordSet lowercases and splits text, keeping words long enough to carry
// meaning. Short function words would inflate the bonus.
func keywordSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,:;!?()[]\"'")
		if len(w) >= minKeywordLen {
			set[w] = struct{}{}
		}
	}
	return set
}

func keywordBonus(issueWords map[string]struct{}, useCase string) float32 {
	var bonus float32
	for w := range keywordSet(useCase) {
		if _, ok := issueWords[w]; ok {
			bonus += keywordBonusPerHit
		}
	}
	return bonus
}
