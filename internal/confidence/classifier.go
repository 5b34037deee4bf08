// Package confidence flags resolved location strings that are probably not
// real places, using an LLM as the judge.
package confidence

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/geoprofiles/internal/resilience"
	"github.com/sells-group/geoprofiles/pkg/anthropic"
)

const (
	defaultBatchSize = 20
	defaultTimeout   = 60 * time.Second
	maxReplyTokens   = 1024
)

const systemPrompt = `You review place names that a geocoder matched from research paper titles.
Some of them are not geographic locations at all (habitats, organisms, chemicals, generic terms) or are too vague to place on a map.
Reply with only the strings from the list that are NOT valid geographic locations, one per line, copied exactly.
If every string is a valid location, reply with "None". Do not explain.`

// Classifier batches location strings through an LLM and collects the ones
// it flags as invalid.
type Classifier struct {
	client      anthropic.Client
	model       string
	batchSize   int
	timeout     time.Duration
	concurrency int
	retry       resilience.RetryConfig
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithBatchSize sets how many strings go into one request.
func WithBatchSize(n int) Option {
	return func(c *Classifier) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option {
	return func(c *Classifier) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithConcurrency allows up to n batches in flight at once.
func WithConcurrency(n int) Option {
	return func(c *Classifier) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithRetry sets the retry policy for transient request errors.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *Classifier) {
		if cfg.ShouldRetry == nil {
			cfg.ShouldRetry = anthropic.IsRetryable
		}
		c.retry = cfg
	}
}

// New creates a Classifier that calls model through client.
func New(client anthropic.Client, model string, opts ...Option) *Classifier {
	c := &Classifier{
		client:      client,
		model:       model,
		batchSize:   defaultBatchSize,
		timeout:     defaultTimeout,
		concurrency: 1,
		retry:       resilience.DefaultRetryConfig(),
	}
	c.retry.ShouldRetry = anthropic.IsRetryable
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify returns the subset of locations judged invalid. Any batch that
// still fails after retries fails the whole pass.
func (c *Classifier) Classify(ctx context.Context, locations []string) (map[string]bool, error) {
	flagged := make(map[string]bool)
	batches := Batches(locations, c.batchSize)
	if len(batches) == 0 {
		return flagged, nil
	}

	log := zap.L().With(zap.String("phase", "confidence"))
	log.Info("confidence: classifying locations",
		zap.Int("locations", len(locations)),
		zap.Int("batches", len(batches)),
	)

	var (
		mu    sync.Mutex
		usage anthropic.TokenUsage
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, batch := range batches {
		g.Go(func() error {
			resp, err := c.classifyBatch(gCtx, batch)
			if err != nil {
				return eris.Wrapf(err, "confidence: batch %d", i)
			}
			got := ParseFlagged(resp.Text(), batch)

			mu.Lock()
			defer mu.Unlock()
			usage.Add(resp.Usage)
			for _, s := range got {
				flagged[s] = true
			}
			log.Debug("confidence: batch classified",
				zap.Int("batch", i),
				zap.Int("size", len(batch)),
				zap.Int("flagged", len(got)),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	usage.LogCost(c.model, "confidence")
	log.Info("confidence: classification complete", zap.Int("flagged", len(flagged)))
	return flagged, nil
}

func (c *Classifier) classifyBatch(ctx context.Context, batch []string) (*anthropic.MessageResponse, error) {
	req := anthropic.MessageRequest{
		Model:     c.model,
		MaxTokens: maxReplyTokens,
		System:    anthropic.CachedSystem(systemPrompt),
		Messages: []anthropic.Message{
			{Role: "user", Content: buildPrompt(batch)},
		},
	}

	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		return c.client.CreateMessage(callCtx, req)
	})
}

func buildPrompt(batch []string) string {
	return fmt.Sprintf("Locations:\n%s", strings.Join(batch, "\n"))
}

// Batches returns the sorted, de-duplicated input split into chunks of size.
func Batches(items []string, size int) [][]string {
	if size <= 0 {
		size = defaultBatchSize
	}
	uniq := make(map[string]bool, len(items))
	sorted := make([]string, 0, len(items))
	for _, s := range items {
		if !uniq[s] {
			uniq[s] = true
			sorted = append(sorted, s)
		}
	}
	sort.Strings(sorted)

	var out [][]string
	for start := 0; start < len(sorted); start += size {
		end := min(start+size, len(sorted))
		out = append(out, sorted[start:end])
	}
	return out
}
