// Package summarize bounds the text sent to the summarization provider.
package summarize

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docingest/internal/domain"
	"github.com/kailas-cloud/docingest/internal/domain/chunk"
	domdoc "github.com/kailas-cloud/docingest/internal/domain/document"
	"github.com/kailas-cloud/docingest/internal/domain/search/mmr"
	"github.com/kailas-cloud/docingest/internal/logger"
)

// DefaultQuery steers segment selection toward content worth summarizing.
const DefaultQuery = "Main topics, key facts and conclusions of the document"

const segmentSeparator = "\n\n"

// Upstream is the summarization provider.
type Upstream interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// Config controls context selection.
type Config struct {
	// MaxInputChars is the largest text sent upstream. Zero sends the text unchanged.
	MaxInputChars     int
	ChunkTargetLength int
	K                 int
	Lambda            float64
	Query             string
}

// Service selects a bounded, diverse context and summarizes it.
type Service struct {
	upstream Upstream
	embedder domain.Embedder
	cfg      Config
}

// New creates a summarization service. embedder may be nil, in which case
// oversized texts are cut to their leading segments.
func New(upstream Upstream, embedder domain.Embedder, cfg Config) *Service {
	if cfg.ChunkTargetLength <= 0 {
		cfg.ChunkTargetLength = chunk.DefaultTargetLength
	}
	if cfg.K <= 0 {
		cfg.K = mmr.DefaultK
	}
	if cfg.Query == "" {
		cfg.Query = DefaultQuery
	}
	return &Service{upstream: upstream, embedder: embedder, cfg: cfg}
}

// Summarize sends a bounded rendition of text upstream.
func (s *Service) Summarize(ctx context.Context, text string) (string, error) {
	input := s.BuildInput(ctx, text)
	out, err := s.upstream.Summarize(ctx, input)
	if err != nil {
		return "", fmt.Errorf("summarize %d characters: %w", utf8.RuneCountInString(input), err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("empty summary: %w", domain.ErrSummarizationFailure)
	}
	return out, nil
}

// BuildInput returns text itself when it fits the budget. Otherwise it returns
// a subset of its segments, in document order, that fits.
func (s *Service) BuildInput(ctx context.Context, text string) string {
	budget := s.cfg.MaxInputChars
	if budget <= 0 || utf8.RuneCountInString(text) <= budget {
		return text
	}

	segments := chunk.Split(text, min(s.cfg.ChunkTargetLength, budget))
	if len(segments) == 0 {
		return ""
	}

	order, contiguous := leadingOrder(len(segments)), true
	if s.embedder != nil {
		selected, err := s.diverseOrder(ctx, segments)
		if err != nil {
			logger.FromContext(ctx).Warn("Diverse context selection failed, using leading segments",
				zap.Int("segments", len(segments)),
				zap.Error(err),
			)
		} else {
			order, contiguous = selected, false
		}
	}

	picked := pack(segments, order, budget, contiguous)
	if len(picked) == 0 {
		return domdoc.TruncateText(segments[0], budget)
	}
	slices.Sort(picked)

	parts := make([]string, len(picked))
	for i, idx := range picked {
		parts[i] = segments[idx]
	}
	return strings.Join(parts, segmentSeparator)
}

func (s *Service) diverseOrder(ctx context.Context, segments []string) ([]int, error) {
	query, candidates, err := domain.EmbedAgainst(ctx, s.embedder, s.cfg.Query, segments)
	if err != nil {
		return nil, fmt.Errorf("embed segments: %w", err)
	}
	return mmr.Select(query, candidates, s.cfg.K, s.cfg.Lambda), nil
}

// pack takes segments in the given order while they fit the character budget.
// A contiguous pack stops at the first segment that does not fit.
func pack(segments []string, order []int, budget int, contiguous bool) []int {
	var picked []int
	used := 0
	for _, idx := range order {
		n := utf8.RuneCountInString(segments[idx])
		if len(picked) > 0 {
			n += len(segmentSeparator)
		}
		if used+n > budget {
			if contiguous {
				break
			}
			continue
		}
		used += n
		picked = append(picked, idx)
	}
	return picked
}

func leadingOrder(n int) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	return order
}
