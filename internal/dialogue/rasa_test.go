package dialogue

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRasaClientHandle(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/webhooks/rest/webhook" {
			http.NotFound(w, r)
			return
		}
		var msg map[string]string
		_ = json.NewDecoder(r.Body).Decode(&msg)
		if msg["sender"] != "7" || msg["message"] != "xin chào" {
			t.Errorf("unexpected body %v", msg)
		}
		_, _ = w.Write([]byte(`[{"recipient_id":"7","text":"Chào bạn!"},{"recipient_id":"7","image":"http://x/unigrow.png"}]`))
	}))
	defer srv.Close()

	c := NewRasaClient(srv.URL, time.Second, nil)
	resp, err := c.Handle(context.Background(), "7", "xin chào")
	if err != nil {
		t.Fatalf("Handle error = %v", err)
	}
	if len(resp) != 2 || resp[0].Text != "Chào bạn!" || resp[1].Image == "" {
		t.Fatalf("responses = %+v", resp)
	}
}

func TestRasaClientErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewRasaClient(srv.URL, time.Second, nil)
	if _, err := c.Handle(context.Background(), "7", "hi"); err == nil {
		t.Fatal("expected error on 500")
	}
	if err := c.Ready(context.Background()); err == nil {
		t.Fatal("expected Ready to fail on 503")
	}
}

func TestFirstText(t *testing.T) {
	t.Parallel()

	if _, ok := FirstText(nil); ok {
		t.Fatal("expected no text for nil")
	}
	got, ok := FirstText([]Response{{Image: "x"}, {Text: "  "}, {Text: "ok"}, {Text: "later"}})
	if !ok || got != "ok" {
		t.Fatalf("FirstText = %q, %v", got, ok)
	}
}
