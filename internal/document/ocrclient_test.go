package document

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOCRClientRecognizePage(t *testing.T) {
	t.Parallel()

	t.Run("decodes a successful response", func(t *testing.T) {
		t.Parallel()

		var gotReq OCRRequest
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/v1/recognize" {
				t.Errorf("expected /v1/recognize, got %s", r.URL.Path)
			}
			if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
				t.Errorf("failed to decode request: %v", err)
			}
			_ = json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck // test server
				"text":       "TAB 1 Affidavit of John Smith",
				"confidence": 0.93,
				"words": []map[string]any{
					{"text": "TAB", "bbox": []float64{72, 700, 100, 712}, "confidence": 0.95},
					{"text": "1", "bbox": []float64{104, 700, 110, 712}, "confidence": 0.91},
				},
			})
		}))
		defer srv.Close()

		client := NewOCRClient(srv.URL)
		content, err := client.RecognizePage(context.Background(), OCRRequest{
			DocumentID: "record.pdf",
			Path:       "/tmp/record.pdf",
			Page:       3,
			DPI:        280,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if content.Text != "TAB 1 Affidavit of John Smith" {
			t.Errorf("unexpected text %q", content.Text)
		}
		if content.Confidence != 0.93 {
			t.Errorf("expected confidence 0.93, got %v", content.Confidence)
		}
		if content.Source != SourceOCR {
			t.Errorf("expected ocr source, got %q", content.Source)
		}
		if len(content.Words) != 2 {
			t.Fatalf("expected 2 words, got %d", len(content.Words))
		}
		if content.Words[0].Rect.X0 != 72 || content.Words[0].Rect.Y1 != 712 {
			t.Errorf("unexpected word rect %+v", content.Words[0].Rect)
		}

		// Explicit DPI is forwarded untouched.
		if gotReq.DPI != 280 {
			t.Errorf("expected dpi 280, got %d", gotReq.DPI)
		}
	})

	t.Run("applies default dpi and psm", func(t *testing.T) {
		t.Parallel()

		var gotReq OCRRequest
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewDecoder(r.Body).Decode(&gotReq) //nolint:errcheck // test server
			_, _ = w.Write([]byte(`{"text":"","confidence":0}`))
		}))
		defer srv.Close()

		client := NewOCRClient(srv.URL, WithOCRDefaults(220, 6))
		if _, err := client.RecognizePage(context.Background(), OCRRequest{Page: 1}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if gotReq.DPI != 220 {
			t.Errorf("expected default dpi 220, got %d", gotReq.DPI)
		}
		if gotReq.PSM != 6 {
			t.Errorf("expected default psm 6, got %d", gotReq.PSM)
		}
	})

	t.Run("non-200 status wraps ErrOCRUnavailable", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		client := NewOCRClient(srv.URL)
		_, err := client.RecognizePage(context.Background(), OCRRequest{Page: 1})
		if !errors.Is(err, ErrOCRUnavailable) {
			t.Errorf("expected ErrOCRUnavailable, got %v", err)
		}
	})

	t.Run("unreachable service wraps ErrOCRUnavailable", func(t *testing.T) {
		t.Parallel()

		// A server that is already closed refuses connections.
		srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
		srv.Close()

		client := NewOCRClient(srv.URL)
		_, err := client.RecognizePage(context.Background(), OCRRequest{Page: 1})
		if !errors.Is(err, ErrOCRUnavailable) {
			t.Errorf("expected ErrOCRUnavailable, got %v", err)
		}
	})

	t.Run("malformed response wraps ErrOCRUnavailable", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"text": [not json`))
		}))
		defer srv.Close()

		client := NewOCRClient(srv.URL)
		_, err := client.RecognizePage(context.Background(), OCRRequest{Page: 1})
		if !errors.Is(err, ErrOCRUnavailable) {
			t.Errorf("expected ErrOCRUnavailable, got %v", err)
		}
	})

	t.Run("cancelled context surfaces as unavailable", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"text":""}`))
		}))
		defer srv.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		client := NewOCRClient(srv.URL)
		_, err := client.RecognizePage(ctx, OCRRequest{Page: 1})
		if !errors.Is(err, ErrOCRUnavailable) {
			t.Errorf("expected ErrOCRUnavailable, got %v", err)
		}
	})
}
