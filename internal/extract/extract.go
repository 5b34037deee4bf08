// Package extract asks an LLM to pull the geopolitical location out of each
// work title, producing the per-row location text the pipeline consumes.
package extract

import (
	"context"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/geoprofiles/internal/alias"
	"github.com/sells-group/geoprofiles/internal/roster"
	"github.com/sells-group/geoprofiles/pkg/anthropic"
)

const (
	defaultThreshold     = 3
	defaultMaxBatchSize  = 10000
	maxDirectConcurrency = 5
	maxAnswerTokens      = 64
)

const systemPrompt = `Extract geopolitical entities from the provided text. Do not infer. Do not explain.
Answer in the form "City, Country", "City, State", "State, Country", "Country" or the location name.
If the text names no location, answer "N/A".`

// Extractor turns work titles into raw location text.
type Extractor struct {
	client       anthropic.Client
	model        string
	threshold    int
	maxBatchSize int
	noBatch      bool
	pollOpts     []anthropic.PollOption
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithSmallBatchThreshold sends at most n requests directly instead of
// through the batch API.
func WithSmallBatchThreshold(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.threshold = n
		}
	}
}

// WithMaxBatchSize caps requests per submitted batch.
func WithMaxBatchSize(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.maxBatchSize = n
		}
	}
}

// WithNoBatch always uses direct requests.
func WithNoBatch(noBatch bool) Option {
	return func(e *Extractor) { e.noBatch = noBatch }
}

// WithPollOptions passes options through to anthropic.PollBatch.
func WithPollOptions(opts ...anthropic.PollOption) Option {
	return func(e *Extractor) { e.pollOpts = append(e.pollOpts, opts...) }
}

// New creates an Extractor.
func New(client anthropic.Client, model string, opts ...Option) *Extractor {
	e := &Extractor{
		client:       client,
		model:        model,
		threshold:    defaultThreshold,
		maxBatchSize: defaultMaxBatchSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns one record per title, in order. Titles that fail or
// yield nothing get alias.NoLocation.
func (e *Extractor) Extract(ctx context.Context, titles []string) ([]roster.LocationRecord, error) {
	records := make([]roster.LocationRecord, len(titles))
	var items []anthropic.BatchRequestItem
	index := make(map[string]int, len(titles))

	for i, title := range titles {
		id := roster.CustomID(i)
		records[i] = roster.LocationRecord{CustomID: id, Location: alias.NoLocation}
		folded := Fold(title)
		if strings.TrimSpace(folded) == "" {
			continue
		}
		index[id] = i
		items = append(items, anthropic.BatchRequestItem{
			CustomID: id,
			Params: anthropic.MessageRequest{
				Model:     e.model,
				MaxTokens: maxAnswerTokens,
				System:    anthropic.CachedSystem(systemPrompt),
				Messages: []anthropic.Message{
					{Role: "user", Content: "Extract from this text: " + folded},
				},
			},
		})
	}
	if len(items) == 0 {
		return records, nil
	}

	log := zap.L().With(zap.String("phase", "extract"))
	log.Info("extract: requesting locations",
		zap.Int("titles", len(titles)),
		zap.Int("requests", len(items)),
	)

	var (
		answers map[string]*anthropic.MessageResponse
		err     error
	)
	if e.noBatch || len(items) <= e.threshold {
		answers = e.direct(ctx, items)
	} else {
		answers, err = e.batch(ctx, items)
		if err != nil {
			return nil, err
		}
	}

	var usage anthropic.TokenUsage
	found := 0
	for id, resp := range answers {
		usage.Add(resp.Usage)
		loc := CleanAnswer(resp.Text())
		if loc != alias.NoLocation {
			found++
		}
		records[index[id]].Location = loc
	}
	usage.LogCost(e.model, "extract")
	log.Info("extract: locations extracted",
		zap.Int("answered", len(answers)),
		zap.Int("with_location", found),
	)
	return records, nil
}

func (e *Extractor) direct(ctx context.Context, items []anthropic.BatchRequestItem) map[string]*anthropic.MessageResponse {
	var mu sync.Mutex
	out := make(map[string]*anthropic.MessageResponse, len(items))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(maxDirectConcurrency)
	for _, item := range items {
		g.Go(func() error {
			resp, err := e.client.CreateMessage(gCtx, item.Params)
			if err != nil {
				zap.L().Warn("extract: request failed",
					zap.String("custom_id", item.CustomID),
					zap.Error(err),
				)
				return nil
			}
			mu.Lock()
			out[item.CustomID] = resp
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (e *Extractor) batch(ctx context.Context, items []anthropic.BatchRequestItem) (map[string]*anthropic.MessageResponse, error) {
	out := make(map[string]*anthropic.MessageResponse, len(items))
	for start := 0; start < len(items); start += e.maxBatchSize {
		chunk := items[start:min(start+e.maxBatchSize, len(items))]

		batch, err := e.client.CreateBatch(ctx, anthropic.BatchRequest{Requests: chunk})
		if err != nil {
			return nil, eris.Wrap(err, "extract: create batch")
		}
		zap.L().Info("extract: batch submitted",
			zap.String("batch_id", batch.ID),
			zap.Int("requests", len(chunk)),
		)

		batch, err = anthropic.PollBatch(ctx, e.client, batch.ID, e.pollOpts...)
		if err != nil {
			return nil, eris.Wrap(err, "extract: poll batch")
		}

		iter, err := e.client.GetBatchResults(ctx, batch.ID)
		if err != nil {
			return nil, eris.Wrap(err, "extract: get batch results")
		}
		results, err := anthropic.CollectBatchResults(iter)
		if err != nil {
			return nil, eris.Wrap(err, "extract: collect batch results")
		}
		for id, resp := range results.Succeeded {
			out[id] = resp
		}
	}
	return out, nil
}

// CleanAnswer reduces a model reply to a single location string.
func CleanAnswer(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexAny(text, "\r\n"); i >= 0 {
		text = text[:i]
	}
	text = strings.Trim(trimSentencePeriod(text), "\"'`")
	text = strings.TrimSpace(trimSentencePeriod(strings.TrimSpace(text)))
	if text == "" || strings.EqualFold(text, alias.NoLocation) || strings.EqualFold(text, "none") {
		return alias.NoLocation
	}
	return text
}

// trimSentencePeriod drops a final period that ends a sentence. Periods
// closing an abbreviation such as "U.S." or "D.C." are kept because alias
// keys spell them out.
func trimSentencePeriod(s string) string {
	if !strings.HasSuffix(s, ".") {
		return s
	}
	body := s[:len(s)-1]
	word := body[strings.LastIndexAny(body, " ,")+1:]
	if strings.Contains(word, ".") || utf8.RuneCountInString(word) <= 1 {
		return s
	}
	return body
}

// Letters that have no decomposition into a base letter plus combining marks.
var foldLetters = strings.NewReplacer(
	"Ł", "L", "ł", "l",
	"Ø", "O", "ø", "o",
	"Đ", "D", "đ", "d",
	"Ħ", "H", "ħ", "h",
	"ß", "ss",
	"Æ", "AE", "æ", "ae",
	"Œ", "OE", "œ", "oe",
	"Þ", "Th", "þ", "th",
	"Ð", "D", "ð", "d",
	"ı", "i",
)

// Fold strips diacritics and transliterates the remaining Latin letters so
// titles reach the model as plain ASCII where possible.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return foldLetters.Replace(out)
}
