package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"vitacheck/engine/pkg/fetch"
)

func newSupplementClient(serverURL, apiKey string) *SupplementClient {
	return NewSupplementClient(SupplementConfig{
		BaseURL: serverURL,
		APIKey:  apiKey,
		Timeout: time.Second,
	}, fetch.NewClient())
}

func TestSupplement_MissingCredential(t *testing.T) {
	client := newSupplementClient("http://unused", "")

	_, err := client.Lookup(context.Background(), "fish oil")
	var missing *MissingCredentialError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingCredentialError, got %v", err)
	}
	if ErrorKind(err) != "missing_credential" {
		t.Errorf("ErrorKind = %q", ErrorKind(err))
	}

	if _, err := client.Interactions(context.Background(), "fish oil", "warfarin", "", ""); !errors.As(err, &missing) {
		t.Fatalf("expected MissingCredentialError, got %v", err)
	}
}

func TestSupplementLookup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("api_key") == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"agents":[{"cui":"C0016157","preferred_name":"Fish Oils"}]}`))
	}))
	defer server.Close()

	id, err := newSupplementClient(server.URL, "key").Lookup(context.Background(), "fish oil")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if id != "C0016157" {
		t.Errorf("id = %q", id)
	}
}

func TestSupplementInteractions_FiltersPartner(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/interactions/") {
			w.Write([]byte(`{"interactions":[
				{"agent":{"cui":"C0043031","preferred_name":"Warfarin"},"severity":"moderate","sentence":"Fish oil may potentiate warfarin.","evidence":[{"paper_id":"pmid:123"}]},
				{"agent":{"cui":"C999","preferred_name":"Ginkgo"},"severity":"mild","sentence":"Unrelated."}
			]}`))
			return
		}
		w.Write([]byte(`{"agents":[{"cui":"C0016157","preferred_name":"Fish Oils"}]}`))
	}))
	defer server.Close()

	matches, err := newSupplementClient(server.URL, "key").
		Interactions(context.Background(), "fish oil", "warfarin", "", "C0043031")
	if err != nil {
		t.Fatalf("Interactions: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1: %+v", len(matches), matches)
	}
	if matches[0].Severity != "moderate" || len(matches[0].Evidence) != 1 {
		t.Errorf("unexpected match: %+v", matches[0])
	}
}

func TestSupplementInteractions_UnknownAgentIsNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"agents":[]}`))
	}))
	defer server.Close()

	matches, err := newSupplementClient(server.URL, "key").
		Interactions(context.Background(), "obscure herb", "warfarin", "", "")
	if err != nil {
		t.Fatalf("Interactions: %v", err)
	}
	if matches != nil {
		t.Errorf("expected nil matches, got %+v", matches)
	}
}

func TestErrorKind_Taxonomy(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{&fetch.TimeoutError{Provider: "p", Timeout: time.Second}, "timeout"},
		{&fetch.TransportError{Provider: "p", StatusCode: 502}, "http_502"},
		{&fetch.ParseError{Provider: "p"}, "parse"},
		{&MissingCredentialError{Provider: "p"}, "missing_credential"},
		{errors.New("anything else"), "internal"},
	}
	for _, tt := range tests {
		if got := ErrorKind(tt.err); got != tt.want {
			t.Errorf("ErrorKind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
