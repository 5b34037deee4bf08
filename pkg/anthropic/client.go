// Package anthropic wraps the Anthropic Messages and Message Batches APIs
// behind a small interface so callers can be tested without the network.
package anthropic

import (
	"context"
	"errors"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/jsonl"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geoprofiles/internal/resilience"
)

// Client is what the extract and confidence passes need from the API.
type Client interface {
	CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error)
	CreateBatch(ctx context.Context, req BatchRequest) (*BatchResponse, error)
	GetBatch(ctx context.Context, batchID string) (*BatchResponse, error)
	GetBatchResults(ctx context.Context, batchID string) (BatchResultIterator, error)
}

// BatchResultIterator streams the results of an ended batch.
type BatchResultIterator interface {
	Next() bool
	Item() BatchResultItem
	Err() error
	Close() error
}

// MessageRequest is one prompt: a system block followed by turns.
type MessageRequest struct {
	Model     string
	MaxTokens int64
	System    []SystemBlock
	Messages  []Message
}

// SystemBlock is system prompt text. Cached blocks carry a one-hour
// cache breakpoint.
type SystemBlock struct {
	Text   string
	Cached bool
}

// CachedSystem wraps a prompt that is reused across every request of a run.
func CachedSystem(text string) []SystemBlock {
	return []SystemBlock{{Text: text, Cached: true}}
}

// Message is a single turn. Any role other than "assistant" is sent as user.
type Message struct {
	Role    string
	Content string
}

// MessageResponse holds the reply text and what it cost.
type MessageResponse struct {
	Content []ContentBlock
	Usage   TokenUsage
}

// ContentBlock is one block of reply text.
type ContentBlock struct {
	Text string
}

// Text joins the non-empty blocks with newlines.
func (r *MessageResponse) Text() string {
	if r == nil {
		return ""
	}
	parts := make([]string, 0, len(r.Content))
	for _, b := range r.Content {
		if b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// TokenUsage counts tokens for one response or a whole pass.
type TokenUsage struct {
	InputTokens              int64
	OutputTokens             int64
	CacheCreationInputTokens int64
	CacheReadInputTokens     int64
}

// Add accumulates other into u.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.CacheCreationInputTokens += other.CacheCreationInputTokens
	u.CacheReadInputTokens += other.CacheReadInputTokens
}

// USD per million tokens: input, output.
var modelPricing = map[string][2]float64{
	"claude-haiku-4-5-20251001":  {1.00, 5.00},
	"claude-sonnet-4-5-20250929": {3.00, 15.00},
}

// EstimateCost prices u for model. Unknown models cost 0.
func (u TokenUsage) EstimateCost(model string) float64 {
	p, ok := modelPricing[model]
	if !ok {
		return 0
	}
	perTok := p[0] / 1e6
	return float64(u.InputTokens)*perTok +
		float64(u.OutputTokens)*p[1]/1e6 +
		float64(u.CacheCreationInputTokens)*perTok*1.25 +
		float64(u.CacheReadInputTokens)*perTok*0.1
}

// LogCost logs the usage of one pass at info level.
func (u TokenUsage) LogCost(model, pass string) {
	zap.L().Info("anthropic: usage",
		zap.String("model", model),
		zap.String("pass", pass),
		zap.Int64("input_tokens", u.InputTokens),
		zap.Int64("output_tokens", u.OutputTokens),
		zap.Int64("cache_write_tokens", u.CacheCreationInputTokens),
		zap.Int64("cache_read_tokens", u.CacheReadInputTokens),
		zap.Float64("estimated_cost_usd", u.EstimateCost(model)),
	)
}

// BatchRequest is a Message Batches submission.
type BatchRequest struct {
	Requests []BatchRequestItem
}

// BatchRequestItem pairs a custom id with its request.
type BatchRequestItem struct {
	CustomID string
	Params   MessageRequest
}

// BatchResponse is a batch's id and progress.
type BatchResponse struct {
	ID               string
	ProcessingStatus string
	RequestCounts    RequestCounts
}

// RequestCounts tallies batch requests by outcome.
type RequestCounts struct {
	Processing int64
	Succeeded  int64
	Errored    int64
}

// BatchResultItem is one result of an ended batch. Type is "succeeded",
// "errored", "canceled" or "expired"; Message is set only on success.
type BatchResultItem struct {
	CustomID string
	Type     string
	Message  *MessageResponse
}

type sdkClient struct {
	client sdk.Client
}

// NewClient returns an SDK-backed Client. extra is passed to the SDK, so
// tests can point it at an httptest server.
func NewClient(apiKey string, extra ...option.RequestOption) Client {
	opts := append([]option.RequestOption{option.WithAPIKey(apiKey)}, extra...)
	return &sdkClient{client: sdk.NewClient(opts...)}
}

func (c *sdkClient) CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	msg, err := c.client.Messages.New(ctx, toSDKParams(req))
	if err != nil {
		return nil, eris.Wrap(err, "anthropic: create message")
	}
	return fromSDKMessage(msg), nil
}

func (c *sdkClient) CreateBatch(ctx context.Context, req BatchRequest) (*BatchResponse, error) {
	reqs := make([]sdk.MessageBatchNewParamsRequest, len(req.Requests))
	for i, r := range req.Requests {
		p := toSDKParams(r.Params)
		reqs[i] = sdk.MessageBatchNewParamsRequest{
			CustomID: r.CustomID,
			Params: sdk.MessageBatchNewParamsRequestParams{
				Model:     p.Model,
				MaxTokens: p.MaxTokens,
				Messages:  p.Messages,
				System:    p.System,
			},
		}
	}
	batch, err := c.client.Messages.Batches.New(ctx, sdk.MessageBatchNewParams{Requests: reqs})
	if err != nil {
		return nil, eris.Wrap(err, "anthropic: create batch")
	}
	return fromSDKBatch(batch), nil
}

func (c *sdkClient) GetBatch(ctx context.Context, batchID string) (*BatchResponse, error) {
	batch, err := c.client.Messages.Batches.Get(ctx, batchID)
	if err != nil {
		return nil, eris.Wrapf(err, "anthropic: get batch %s", batchID)
	}
	return fromSDKBatch(batch), nil
}

func (c *sdkClient) GetBatchResults(ctx context.Context, batchID string) (BatchResultIterator, error) {
	stream := c.client.Messages.Batches.ResultsStreaming(ctx, batchID)
	if err := stream.Err(); err != nil {
		return nil, eris.Wrapf(err, "anthropic: get batch results %s", batchID)
	}
	return &resultStream{stream: stream}, nil
}

type resultStream struct {
	stream *jsonl.Stream[sdk.MessageBatchIndividualResponse]
	item   BatchResultItem
}

func (s *resultStream) Next() bool {
	if !s.stream.Next() {
		return false
	}
	resp := s.stream.Current()
	s.item = BatchResultItem{CustomID: resp.CustomID, Type: resp.Result.Type}
	if resp.Result.Type == "succeeded" {
		msg := resp.Result.Message
		s.item.Message = fromSDKMessage(&msg)
	}
	return true
}

func (s *resultStream) Item() BatchResultItem { return s.item }
func (s *resultStream) Err() error            { return s.stream.Err() }
func (s *resultStream) Close() error          { return s.stream.Close() }

func toSDKParams(req MessageRequest) sdk.MessageNewParams {
	params := sdk.MessageNewParams{
		Model:     sdk.Model(req.Model),
		MaxTokens: req.MaxTokens,
		Messages:  toSDKMessages(req.Messages),
	}
	if len(req.System) > 0 {
		params.System = toSDKSystemBlocks(req.System)
	}
	return params
}

func toSDKMessages(msgs []Message) []sdk.MessageParam {
	out := make([]sdk.MessageParam, len(msgs))
	for i, m := range msgs {
		block := sdk.NewTextBlock(m.Content)
		if m.Role == "assistant" {
			out[i] = sdk.NewAssistantMessage(block)
		} else {
			out[i] = sdk.NewUserMessage(block)
		}
	}
	return out
}

func toSDKSystemBlocks(blocks []SystemBlock) []sdk.TextBlockParam {
	out := make([]sdk.TextBlockParam, len(blocks))
	for i, b := range blocks {
		out[i] = sdk.TextBlockParam{Text: b.Text}
		if b.Cached {
			cc := sdk.NewCacheControlEphemeralParam()
			cc.TTL = sdk.CacheControlEphemeralTTLTTL1h
			out[i].CacheControl = cc
		}
	}
	return out
}

func fromSDKMessage(msg *sdk.Message) *MessageResponse {
	resp := &MessageResponse{
		Content: make([]ContentBlock, 0, len(msg.Content)),
		Usage: TokenUsage{
			InputTokens:              msg.Usage.InputTokens,
			OutputTokens:             msg.Usage.OutputTokens,
			CacheCreationInputTokens: msg.Usage.CacheCreationInputTokens,
			CacheReadInputTokens:     msg.Usage.CacheReadInputTokens,
		},
	}
	for _, b := range msg.Content {
		if b.Type == "text" {
			resp.Content = append(resp.Content, ContentBlock{Text: b.Text})
		}
	}
	return resp
}

func fromSDKBatch(batch *sdk.MessageBatch) *BatchResponse {
	return &BatchResponse{
		ID:               batch.ID,
		ProcessingStatus: string(batch.ProcessingStatus),
		RequestCounts: RequestCounts{
			Processing: batch.RequestCounts.Processing,
			Succeeded:  batch.RequestCounts.Succeeded,
			Errored:    batch.RequestCounts.Errored,
		},
	}
}

// HTTP 529: the API is overloaded.
const statusOverloaded = 529

// IsRetryable reports whether a failed call is worth another attempt:
// rate limits, overload, 5xx responses and transient network errors.
func IsRetryable(err error) bool {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == statusOverloaded || resilience.IsTransientHTTPStatus(apiErr.StatusCode)
	}
	return resilience.IsTransient(err)
}
