package stream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"

	streamline "github.com/eugener/streamline/internal"
)

func TestOptionsDefaults(t *testing.T) {
	t.Parallel()

	o, err := Options{URL: "https://stream.test/events"}.withDefaults()
	if err != nil {
		t.Fatal(err)
	}
	if o.Method != http.MethodGet {
		t.Errorf("method = %q, want GET", o.Method)
	}
	if o.Timeout != DefaultTimeout {
		t.Errorf("timeout = %s, want %s", o.Timeout, DefaultTimeout)
	}
	if o.ChunkSize != DefaultChunkSize {
		t.Errorf("chunk size = %d, want %d", o.ChunkSize, DefaultChunkSize)
	}
	if o.MaxLineSize != DefaultMaxLineSize {
		t.Errorf("max line size = %d, want %d", o.MaxLineSize, DefaultMaxLineSize)
	}
	if o.Client == nil {
		t.Error("client should default to non-nil")
	}
}

func TestOptionsValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts Options
	}{
		{name: "missing url", opts: Options{}},
		{name: "bad scheme", opts: Options{URL: "ftp://stream.test/"}},
		{name: "unparseable url", opts: Options{URL: "http://[::1"}},
		{name: "negative timeout", opts: Options{URL: "http://stream.test/", Timeout: -1}},
		{name: "body on get", opts: Options{URL: "http://stream.test/", Body: map[string]string{"a": "b"}}},
		{name: "body on head", opts: Options{URL: "http://stream.test/", Method: "head", Body: "x"}},
		{name: "negative chunk size", opts: Options{URL: "http://stream.test/", ChunkSize: -1}},
		{name: "negative max line", opts: Options{URL: "http://stream.test/", MaxLineSize: -1}},
		{name: "unknown charset", opts: Options{URL: "http://stream.test/", Charset: "martian"}},
		{name: "duplicate header", opts: Options{URL: "http://stream.test/", Header: map[string]string{
			"accept": "text/plain", "Accept": "text/event-stream",
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h, err := Start(context.Background(), tt.opts)
			if !errors.Is(err, streamline.ErrInvalidOptions) {
				t.Errorf("err = %v, want ErrInvalidOptions", err)
			}
			if h != nil {
				t.Error("handle should be nil on invalid options")
			}
		})
	}
}

func TestNewRequest(t *testing.T) {
	t.Parallel()

	o, err := Options{
		URL:    "http://stream.test/v1/chat",
		Method: http.MethodPost,
		Header: map[string]string{"Accept": "text/event-stream"},
		Body:   map[string]any{"stream": true},
	}.withDefaults()
	if err != nil {
		t.Fatal(err)
	}
	req, err := o.newRequest(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if req.Header.Get("Accept") != "text/event-stream" {
		t.Errorf("accept = %q", req.Header.Get("Accept"))
	}
	if req.Header.Get("Content-Type") != "application/json" {
		t.Errorf("content-type = %q", req.Header.Get("Content-Type"))
	}
	b, _ := io.ReadAll(req.Body)
	if string(b) != `{"stream":true}` {
		t.Errorf("body = %s", b)
	}
}

func TestNewRequestKeepsContentTypeAndRawBody(t *testing.T) {
	t.Parallel()

	o, err := Options{
		URL:    "http://stream.test/",
		Method: http.MethodPut,
		Header: map[string]string{"content-type": "application/vnd.api+json"},
		Body:   json.RawMessage(`{"raw":1}`),
	}.withDefaults()
	if err != nil {
		t.Fatal(err)
	}
	req, err := o.newRequest(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got := req.Header.Get("Content-Type"); got != "application/vnd.api+json" {
		t.Errorf("content-type = %q", got)
	}
	b, _ := io.ReadAll(req.Body)
	if string(b) != `{"raw":1}` {
		t.Errorf("body = %s", b)
	}
}

func TestNewRequestNoBody(t *testing.T) {
	t.Parallel()

	o, err := Options{URL: "http://stream.test/"}.withDefaults()
	if err != nil {
		t.Fatal(err)
	}
	req, err := o.newRequest(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if req.Body != nil && req.Body != http.NoBody {
		t.Error("GET request should have no body")
	}
	if req.Header.Get("Content-Type") != "" {
		t.Error("content-type should be unset without a body")
	}
}

func TestStartMarshalError(t *testing.T) {
	t.Parallel()

	_, err := Start(context.Background(), Options{
		URL:    "http://stream.test/",
		Method: http.MethodPost,
		Body:   map[string]any{"ch": make(chan int)},
	})
	if err == nil {
		t.Fatal("expected marshal error")
	}
}
