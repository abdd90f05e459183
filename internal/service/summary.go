package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	protel "github.com/Strob0t/painradar/internal/adapter/otel"
	"github.com/Strob0t/painradar/internal/config"
	"github.com/Strob0t/painradar/internal/domain/credential"
	"github.com/Strob0t/painradar/internal/domain/mode"
	"github.com/Strob0t/painradar/internal/port/cache"
	"github.com/Strob0t/painradar/internal/port/summarizer"
	"github.com/Strob0t/painradar/internal/resilience"
)

// ErrEmptyCorpus is returned when there is nothing to summarize.
var ErrEmptyCorpus = errors.New("empty corpus")

// SummaryService summarizes a corpus through the resilient call layer and
// caches the text per mode, keyword and corpus.
type SummaryService struct {
	backend summarizer.Backend
	caller  *resilience.Caller
	cache   *ResultCache
	cfg     config.Summarizer
}

var _ Summarizer = (*SummaryService)(nil)

// NewSummaryService creates a SummaryService. rc may be nil.
func NewSummaryService(backend summarizer.Backend, caller *resilience.Caller, rc *ResultCache, cfg config.Summarizer) *SummaryService {
	return &SummaryService{backend: backend, caller: caller, cache: rc, cfg: cfg}
}

// Summarize renders the mode prompt and completes it, rotating credentials
// on failure. An empty corpus is not sent to the backend unless
// SummarizeEmpty is set.
func (s *SummaryService) Summarize(ctx context.Context, req SummaryRequest) (string, error) {
	if len(req.Corpus) == 0 && !s.cfg.SummarizeEmpty {
		return "", ErrEmptyCorpus
	}
	m := req.Mode
	if m == "" {
		m = mode.Default
	}

	ctx, span := protel.StartSummarizeSpan(ctx, string(m), len(req.Corpus))
	var err error
	defer func() { protel.EndSpan(span, err) }()

	prompt, err := RenderPrompt(m, req.Keyword, req.Corpus, s.cfg.CorpusBudget)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256([]byte(prompt))
	key := cache.Key("summary:"+string(m), req.Keyword, map[string]string{
		"corpus": hex.EncodeToString(sum[:]),
		"model":  s.cfg.Model,
	})

	var text string
	if s.cache.Load(ctx, key, &text) {
		slog.DebugContext(ctx, "summary cache hit", "keyword", req.Keyword, "mode", m)
		return text, nil
	}

	r := summarizer.Request{
		Model:       s.cfg.Model,
		System:      mode.Lookup(m).SystemPrompt,
		Prompt:      prompt,
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
	}
	text, err = resilience.Do(ctx, s.caller, func(ctx context.Context, cred credential.Credential) (string, error) {
		return s.backend.Complete(ctx, cred.Secret, r)
	})
	if err != nil {
		return "", err
	}

	s.cache.Store(ctx, key, text, s.ttl())
	return text, nil
}

func (s *SummaryService) ttl() time.Duration {
	if s.cfg.SummaryTTL > 0 {
		return s.cfg.SummaryTTL
	}
	return 24 * time.Hour
}
