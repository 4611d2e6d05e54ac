package piper

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/skillsenselab/voiceid/synthesis"
)

func TestSynthesize_Success(t *testing.T) {
	wavBytes := []byte("RIFF....WAVEfmt ")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/synthesize" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req synthesizeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Text != "hello" {
			t.Errorf("text = %q", req.Text)
		}
		if req.Voice != "en_US-amy" {
			t.Errorf("voice = %q, want config default", req.Voice)
		}
		w.Header().Set("Content-Type", "audio/wav")
		w.Write(wavBytes)
	}))
	defer srv.Close()

	p := NewProvider(Config{BaseURL: srv.URL, Voice: "en_US-amy", Timeout: 5 * time.Second})
	resp, err := p.Synthesize(context.Background(), synthesis.SynthesisRequest{Text: "hello"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(resp.Audio) != string(wavBytes) {
		t.Error("audio bytes do not match sidecar output")
	}
	if resp.ContentType != "audio/wav" {
		t.Errorf("content type = %q", resp.ContentType)
	}
}

func TestSynthesize_RequestVoiceOverridesConfig(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req synthesizeRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Voice != "en_GB-alan" {
			t.Errorf("voice = %q, want request override", req.Voice)
		}
		w.Write([]byte("x"))
	}))
	defer srv.Close()

	p := NewProvider(Config{BaseURL: srv.URL, Voice: "en_US-amy"})
	if _, err := p.Synthesize(context.Background(), synthesis.SynthesisRequest{Text: "hi", Voice: "en_GB-alan"}); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
}

func TestSynthesize_SidecarError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such voice", http.StatusBadRequest)
	}))
	defer srv.Close()

	p := NewProvider(Config{BaseURL: srv.URL})
	if _, err := p.Synthesize(context.Background(), synthesis.SynthesisRequest{Text: "hi"}); err == nil {
		t.Fatal("expected error for sidecar failure")
	}
}

func TestSynthesize_EmptyAudio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewProvider(Config{BaseURL: srv.URL})
	if _, err := p.Synthesize(context.Background(), synthesis.SynthesisRequest{Text: "hi"}); err == nil {
		t.Fatal("expected error for empty audio")
	}
}

func TestIsAvailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewProvider(Config{BaseURL: srv.URL})
	if !p.IsAvailable(context.Background()) {
		t.Error("expected available")
	}

	srv.Close()
	if p.IsAvailable(context.Background()) {
		t.Error("expected unavailable after sidecar stops")
	}
}

func TestFactory_ResolvesThroughRegistry(t *testing.T) {
	reg := synthesis.NewRegistry()
	reg.RegisterFactory(ProviderName, Factory())

	p, err := reg.Resolve(ProviderName, map[string]any{
		"base_url": "http://piper:5002",
		"voice":    "en_US-amy",
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if p.Name() != ProviderName {
		t.Errorf("name = %q", p.Name())
	}
}
