package escalate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hyperlinklaw/recordlink/internal/config"
	"github.com/hyperlinklaw/recordlink/internal/model"
)

// systemPrompt pins the decision service to rule application. The service
// may only select among provided candidates or decline; content generation
// and page invention are prohibited.
const systemPrompt = `Role: Hyperlink Orchestrator (Deterministic).
Mission: Apply the provided non-LLM mapping rules exactly. Do not generate content. Do not invent pages. Your decisions must be reproducible.
Rules:
1. Only consider the candidates provided.
2. If any candidate >= min_confidence, select using this priority: highest confidence -> lowest page number -> method_order.
3. If all candidates < min_confidence, respond needs_review.
4. Output only strict JSON: {"decision":"pick","dest_page":N,"reason":"..."} or {"decision":"needs_review"}.
Prohibited: speculation, external links, references to any pages not in candidates.
Temperature: 0. Top_p: 1.`

// maxResponseSize caps the decision service's response body.
const maxResponseSize = 1 * 1024 * 1024

// Decision is the outcome of one escalation.
type Decision struct {
	// Pick reports whether the service selected a destination.
	Pick bool

	// DestPage is the selected 1-based target-record page when Pick is true.
	DestPage int

	// Reason is the service's stated justification, kept for review output.
	Reason string
}

// needsReview is the universal fallback decision.
var needsReview = Decision{}

// Resolver decides escalations. The pipeline depends on this interface so
// tests substitute a deterministic stub for the remote service.
type Resolver interface {
	// Resolve decides one low-confidence reference. Implementations must
	// return needs-review rather than an error for every failure mode.
	Resolve(ctx context.Context, ref *model.Reference, minConfidence float64) Decision
}

// Client escalates to a chat-completion style decision service over HTTP.
type Client struct {
	endpoint string
	apiKey   string
	model    string
	seed     int
	timeout  time.Duration
	client   *http.Client
	logger   *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithAPIKey sets the service credential. An empty credential disables
// escalation: every decision is needs-review.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithHTTPClient substitutes the HTTP client, mainly for tests.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a decision-service client from the run configuration.
func NewClient(cfg *config.Config, opts ...ClientOption) *Client {
	c := &Client{
		endpoint: cfg.EscalationEndpoint,
		model:    cfg.EscalationModel,
		seed:     config.DefaultEscalationSeed,
		timeout:  cfg.EscalationTimeout,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.client == nil {
		c.client = &http.Client{Timeout: c.timeout}
	}
	return c
}

// request/response wire shapes.

type refPayload struct {
	SourceFile string       `json:"source_file"`
	SourcePage int          `json:"source_page"`
	RefType    string       `json:"ref_type"`
	RefValue   string       `json:"ref_value"`
	Snippet    string       `json:"snippet"`
	Rects      [][4]float64 `json:"rects"`
}

type rulesPayload struct {
	MinConfidence float64  `json:"min_confidence"`
	TieBreakOrder []string `json:"tie_break_order"`
	MethodOrder   []string `json:"method_order"`
}

type escalationInput struct {
	Ref        refPayload                   `json:"ref"`
	Candidates []model.DestinationCandidate `json:"candidates"`
	Rules      rulesPayload                 `json:"rules"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Temperature    float64       `json:"temperature"`
	TopP           float64       `json:"top_p"`
	Seed           int           `json:"seed"`
	ResponseFormat formatSpec    `json:"response_format"`
	Messages       []chatMessage `json:"messages"`
}

type formatSpec struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type wireDecision struct {
	Decision string `json:"decision"`
	DestPage int    `json:"dest_page"`
	Reason   string `json:"reason"`
}

// Resolve sends one reference's already-computed candidates plus the scoring
// rules to the decision service. Only the two documented response shapes are
// accepted; anything else, along with every transport failure and a missing
// credential, resolves to needs-review.
func (c *Client) Resolve(ctx context.Context, ref *model.Reference, minConfidence float64) Decision {
	if c.endpoint == "" || c.apiKey == "" {
		c.logger.Debug("escalation disabled, routing to review",
			slog.String("ref_type", string(ref.Type)),
			slog.String("value", ref.Value))
		return needsReview
	}
	if len(ref.Candidates) == 0 {
		return needsReview
	}

	input := escalationInput{
		Ref: refPayload{
			SourceFile: ref.SourceDoc,
			SourcePage: ref.SourcePage,
			RefType:    string(ref.Type),
			RefValue:   ref.Value,
			Snippet:    ref.Snippet,
			Rects:      rectsPayload(ref.Rects),
		},
		Candidates: ref.Candidates,
		Rules: rulesPayload{
			MinConfidence: minConfidence,
			TieBreakOrder: []string{"score", "lowest_page", "method_order"},
			MethodOrder:   model.MethodOrder(),
		},
	}

	wire, err := c.call(ctx, input)
	if err != nil {
		c.logger.Warn("escalation failed, routing to review",
			slog.String("ref_type", string(ref.Type)),
			slog.String("value", ref.Value),
			slog.String("error", err.Error()))
		return needsReview
	}

	if wire.Decision != "pick" {
		return needsReview
	}

	// The service may only pick among the candidates it was given.
	for _, cand := range ref.Candidates {
		if cand.Page == wire.DestPage {
			return Decision{Pick: true, DestPage: wire.DestPage, Reason: wire.Reason}
		}
	}
	c.logger.Warn("escalation picked a page outside the candidate list, routing to review",
		slog.Int("dest_page", wire.DestPage))
	return needsReview
}

// call performs the HTTP exchange and parses the strict decision JSON.
func (c *Client) call(ctx context.Context, input escalationInput) (*wireDecision, error) {
	inputJSON, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("failed to encode escalation input: %w", err)
	}

	body, err := json.Marshal(chatRequest{
		Model:          c.model,
		Temperature:    0,
		TopP:           1,
		Seed:           c.seed,
		ResponseFormat: formatSpec{Type: "json_object"},
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: string(inputJSON)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("decision service unreachable: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // Best-effort close on read path

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("decision service returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var chat chatResponse
	if err := json.Unmarshal(data, &chat); err != nil {
		return nil, fmt.Errorf("malformed response envelope: %w", err)
	}
	if len(chat.Choices) == 0 {
		return nil, fmt.Errorf("response carries no choices")
	}

	var wire wireDecision
	if err := json.Unmarshal([]byte(chat.Choices[0].Message.Content), &wire); err != nil {
		return nil, fmt.Errorf("malformed decision JSON: %w", err)
	}
	return &wire, nil
}

func rectsPayload(rects []model.Rectangle) [][4]float64 {
	out := make([][4]float64, 0, len(rects))
	for _, r := range rects {
		out = append(out, [4]float64{r.X0, r.Y0, r.X1, r.Y1})
	}
	return out
}

// StubResolver is a deterministic in-process Resolver for tests and offline
// runs: it applies rule 2 of the service contract locally, picking the first
// candidate at or above min_confidence in canonical order.
type StubResolver struct{}

// Resolve applies the selection rule without any remote call.
func (StubResolver) Resolve(_ context.Context, ref *model.Reference, minConfidence float64) Decision {
	cands := make([]model.DestinationCandidate, len(ref.Candidates))
	copy(cands, ref.Candidates)
	model.SortCandidates(cands)
	for _, cand := range cands {
		if cand.Confidence >= minConfidence {
			return Decision{Pick: true, DestPage: cand.Page, Reason: "stub rule selection"}
		}
	}
	return needsReview
}
