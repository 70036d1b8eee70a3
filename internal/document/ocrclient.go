package document

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hyperlinklaw/recordlink/internal/model"
)

// ErrOCRUnavailable is returned when the OCR service cannot be reached or
// responds with a non-success status.
var ErrOCRUnavailable = errors.New("ocr service unavailable")

// maxOCRResponseSize caps the response body read from the OCR service.
// A dense page produces a few hundred KB of word boxes; 10MB is generous.
const maxOCRResponseSize = 10 * 1024 * 1024

// OCRRequest asks the service to recognize one page. Rasterization happens
// service-side; DPI and PSM are forwarded hints.
type OCRRequest struct {
	DocumentID string `json:"document_id"`
	Path       string `json:"path"`
	Page       int    `json:"page"`
	DPI        int    `json:"dpi,omitempty"`
	PSM        int    `json:"psm,omitempty"`
}

// ocrWord is the wire shape of one recognized word.
type ocrWord struct {
	Text       string     `json:"text"`
	BBox       [4]float64 `json:"bbox"`
	Confidence float64    `json:"confidence"`
}

// ocrResponse is the wire shape of a page recognition result.
type ocrResponse struct {
	Text       string    `json:"text"`
	Words      []ocrWord `json:"words"`
	Confidence float64   `json:"confidence"`
}

// OCRClient talks to the external OCR service over HTTP.
//
// The service owns everything optical: rasterization, model choice, GPU
// scheduling. This client only carries the page contract and never blocks
// without a deadline.
type OCRClient struct {
	endpoint string
	client   *http.Client

	// defaultDPI and defaultPSM are applied to requests that leave the
	// fields unset.
	defaultDPI int
	defaultPSM int
}

// OCRClientOption configures an OCRClient.
type OCRClientOption func(*OCRClient)

// WithOCRHTTPClient substitutes the HTTP client, mainly for tests.
func WithOCRHTTPClient(client *http.Client) OCRClientOption {
	return func(c *OCRClient) {
		c.client = client
	}
}

// WithOCRDefaults sets the DPI and PSM hints applied when a request leaves
// them unset.
func WithOCRDefaults(dpi, psm int) OCRClientOption {
	return func(c *OCRClient) {
		c.defaultDPI = dpi
		c.defaultPSM = psm
	}
}

// NewOCRClient creates a client for the OCR service at endpoint.
func NewOCRClient(endpoint string, opts ...OCRClientOption) *OCRClient {
	c := &OCRClient{
		endpoint:   endpoint,
		defaultDPI: 220,
		defaultPSM: 6,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.client == nil {
		c.client = &http.Client{Timeout: 5 * time.Minute}
	}
	return c
}

// RecognizePage submits one page for recognition and returns its content.
// The caller's context bounds the call; a cancelled context surfaces as an
// error wrapping ErrOCRUnavailable so callers can degrade uniformly.
func (c *OCRClient) RecognizePage(ctx context.Context, req OCRRequest) (*PageContent, error) {
	if req.DPI == 0 {
		req.DPI = c.defaultDPI
	}
	if req.PSM == 0 {
		req.PSM = c.defaultPSM
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode ocr request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/v1/recognize", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOCRUnavailable, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOCRUnavailable, err)
	}
	defer resp.Body.Close() //nolint:errcheck // Best-effort close on read path

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrOCRUnavailable, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxOCRResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOCRUnavailable, err)
	}

	var wire ocrResponse
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %v", ErrOCRUnavailable, err)
	}

	words := make([]Word, 0, len(wire.Words))
	for _, w := range wire.Words {
		words = append(words, Word{
			Text: w.Text,
			Rect: model.Rectangle{
				X0: w.BBox[0], Y0: w.BBox[1], X1: w.BBox[2], Y1: w.BBox[3],
			},
			Confidence: w.Confidence,
		})
	}
	return &PageContent{
		Text:       wire.Text,
		Words:      words,
		Confidence: wire.Confidence,
		Source:     SourceOCR,
	}, nil
}
