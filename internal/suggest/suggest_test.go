package suggest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"secretsanta/pkg/domain"
)

type captureLogger struct {
	mu   sync.Mutex
	msgs []string
}

func (l *captureLogger) Warn(msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = append(l.msgs, fmt.Sprint(append([]any{msg}, args...)...))
}

func (l *captureLogger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.msgs)
}

func modelReply(t *testing.T, answer string) string {
	t.Helper()
	body := map[string]any{
		"candidates": []any{
			map[string]any{"content": map[string]any{"parts": []any{map[string]any{"text": answer}}}},
		},
	}
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal reply: %v", err)
	}
	return string(raw)
}

// wireRequest mirrors the generateContent body the SDK sends.
type wireRequest struct {
	Contents []struct {
		Role  string `json:"role"`
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"contents"`
	GenerationConfig struct {
		ResponseMimeType string `json:"responseMimeType"`
	} `json:"generationConfig"`
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *captureLogger) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	logger := &captureLogger{}
	return New(Config{
		APIKey:          "test-key",
		Endpoint:        srv.URL,
		MarketplaceBase: "https://shop.example",
		HTTPClient:      srv.Client(),
		Logger:          logger,
	}), logger
}

func sampleRequest() Request {
	return Request{
		Participant: domain.Participant{ID: "ana", Name: "Ana", Kind: domain.KindHuman},
		ManualGift:  "Board game",
		QuizAnswers: map[int]string{1: "Green", 0: "Reading"},
	}
}

func TestSuggestReturnsModelAnswer(t *testing.T) {
	var gotPath, gotKey, gotPrompt string
	client, logger := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		raw, _ := io.ReadAll(r.Body)
		var req wireRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Contents) == 1 && len(req.Contents[0].Parts) == 1 {
			gotPrompt = req.Contents[0].Parts[0].Text
			if req.Contents[0].Role != "user" {
				t.Errorf("unexpected role %q", req.Contents[0].Role)
			}
		}
		if req.GenerationConfig.ResponseMimeType != "application/json" {
			t.Errorf("unexpected mime type %q", req.GenerationConfig.ResponseMimeType)
		}
		_, _ = io.WriteString(w, modelReply(t, `{"suggestions":[
			{"gift":"Coffee & Tea sampler","reason":"Loves warm drinks","match":92.4,"estimated_price":"R$ 48,00"},
			{"gift":"Pocket notebook","reason":"Writes a lot","match":130,"estimated_price":"R$ 25,00"}]}`))
	})

	got := client.Suggest(context.Background(), sampleRequest())
	if gotPath != "/v1beta/models/"+DefaultModel+":generateContent" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotKey != "test-key" {
		t.Fatalf("expected api key header, got %q", gotKey)
	}
	if !strings.Contains(gotPrompt, `"Board game"`) || !strings.Contains(gotPrompt, "adult human") {
		t.Fatalf("prompt missing participant details: %s", gotPrompt)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 suggestions, got %d", len(got))
	}
	if got[0].GiftName != "Coffee & Tea sampler" || got[0].MatchScore != 92 {
		t.Fatalf("unexpected first suggestion %+v", got[0])
	}
	if got[0].PurchaseLink != "https://shop.example/Coffee%20%26%20Tea%20sampler_PriceRange_0-50" {
		t.Fatalf("unexpected link %q", got[0].PurchaseLink)
	}
	if got[1].MatchScore != 100 {
		t.Fatalf("expected clamped score, got %d", got[1].MatchScore)
	}
	if logger.count() != 0 {
		t.Fatalf("expected no warnings, got %d", logger.count())
	}
}

func TestSuggestFallsBack(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"non-2xx": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "quota", http.StatusTooManyRequests)
		},
		"malformed envelope": func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, "{not json")
		},
		"malformed answer": func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, modelReply(t, "Here are some ideas!"))
		},
		"wrong count": func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, modelReply(t, `{"suggestions":[{"gift":"Only one","match":50}]}`))
		},
		"blank gift": func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, modelReply(t, `{"suggestions":[{"gift":" "},{"gift":"Mug"}]}`))
		},
		"empty candidates": func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"candidates":[]}`)
		},
	}
	for name, handler := range cases {
		t.Run(name, func(t *testing.T) {
			client, logger := newTestClient(t, handler)
			got := client.Suggest(context.Background(), sampleRequest())
			want := client.Fallback()
			if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
				t.Fatalf("expected fallback pair, got %+v", got)
			}
			if logger.count() != 1 {
				t.Fatalf("expected one warning, got %d", logger.count())
			}
		})
	}
}

func TestGenerateClassifiesFailures(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	_, err := client.Generate(context.Background(), sampleRequest())
	var svcErr ServiceError
	if !errors.As(err, &svcErr) || svcErr.Stage != "status" {
		t.Fatalf("expected status ServiceError, got %v", err)
	}

	noKey := New(Config{})
	_, err = noKey.Generate(context.Background(), sampleRequest())
	if !errors.As(err, &svcErr) || svcErr.Stage != "config" {
		t.Fatalf("expected config ServiceError, got %v", err)
	}
}

func TestGenerateTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	endpoint := srv.URL
	srv.Close()
	client := New(Config{APIKey: "k", Endpoint: endpoint})
	_, err := client.Generate(context.Background(), sampleRequest())
	var svcErr ServiceError
	if !errors.As(err, &svcErr) || svcErr.Stage != "transport" {
		t.Fatalf("expected transport ServiceError, got %v", err)
	}
	if got := client.Suggest(context.Background(), sampleRequest()); len(got) != 2 {
		t.Fatalf("expected fallback pair, got %d", len(got))
	}
}

func TestFallbackUsesDefaultMarketplace(t *testing.T) {
	got := New(Config{}).Fallback()
	if got[0].PurchaseLink != DefaultMarketplaceBase+"/chocolate-artesanal_PriceRange_0-50" {
		t.Fatalf("unexpected link %q", got[0].PurchaseLink)
	}
	if got[0].MatchScore != 85 || got[1].MatchScore != 75 {
		t.Fatalf("unexpected scores %d/%d", got[0].MatchScore, got[1].MatchScore)
	}
}

func TestBuildPromptOrdersAnswersAndDescribesPets(t *testing.T) {
	req := sampleRequest()
	req.Participant.Kind = domain.KindPet
	prompt := BuildPrompt(req)
	if !strings.Contains(prompt, "A PET (dog)") {
		t.Fatalf("expected pet wording: %s", prompt)
	}
	first := strings.Index(prompt, "A: Reading")
	second := strings.Index(prompt, "A: Green")
	if first < 0 || second < 0 || first > second {
		t.Fatalf("answers not ordered by question index: %s", prompt)
	}
	if !strings.Contains(prompt, BudgetCeiling) {
		t.Fatalf("expected budget ceiling in prompt")
	}
}
