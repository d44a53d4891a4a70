package googletx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTranslate_ParsesSegmentedResponse(t *testing.T) {
	t.Parallel()

	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotQuery = map[string]string{
			"client": q.Get("client"),
			"sl":     q.Get("sl"),
			"tl":     q.Get("tl"),
			"q":      q.Get("q"),
		}
		w.Write([]byte(`[[["வணக்கம் ","hello ",null],["உலகம்","world",null]],null,"en"]`))
	}))
	defer srv.Close()

	c := New(WithEndpoint(srv.URL))
	got, err := c.Translate(context.Background(), "hello world", "ta")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "வணக்கம் உலகம்" {
		t.Fatalf("Translate = %q", got)
	}
	if gotQuery["client"] != "gtx" || gotQuery["sl"] != "auto" || gotQuery["tl"] != "ta" {
		t.Fatalf("query = %v", gotQuery)
	}
	if gotQuery["q"] != "hello world" {
		t.Fatalf("q = %q", gotQuery["q"])
	}
}

func TestTranslate_EmptyTextShortCircuits(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("endpoint must not be called for empty text")
	}))
	defer srv.Close()

	c := New(WithEndpoint(srv.URL))
	got, err := c.Translate(context.Background(), "   ", "ta")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "   " {
		t.Fatalf("Translate = %q, want input back", got)
	}
}

func TestTranslate_EmptyTargetIsError(t *testing.T) {
	t.Parallel()

	c := New()
	if _, err := c.Translate(context.Background(), "hello", ""); err == nil {
		t.Fatal("expected error for empty target language")
	}
}

func TestTranslate_HTTPErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(WithEndpoint(srv.URL))
	if _, err := c.Translate(context.Background(), "hello", "ta"); err == nil {
		t.Fatal("expected error for HTTP 429")
	}
}

func TestTranslate_MalformedPayload(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{"not json", "<html>error</html>"},
		{"empty array", "[]"},
		{"wrong shape", `["flat", "strings"]`},
		{"no text", `[[[null, null]]]`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := New(WithEndpoint(srv.URL))
			if _, err := c.Translate(context.Background(), "hello", "ta"); err == nil {
				t.Fatal("expected parse error")
			}
		})
	}
}
