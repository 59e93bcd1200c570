package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	streamline "github.com/eugener/streamline/internal"
)

// Defaults applied by Start when the corresponding option is zero.
const (
	DefaultMethod      = http.MethodGet
	DefaultTimeout     = 30 * time.Second
	DefaultChunkSize   = 32 * 1024
	DefaultMaxLineSize = 1 << 20
)

// Options configures a single transfer.
type Options struct {
	URL     string            // required, http or https
	Method  string            // default GET
	Header  map[string]string // keys must be unique after canonicalization
	Body    any               // JSON-encoded when non-nil; json.RawMessage is sent as-is
	Timeout time.Duration     // whole-transfer timeout, default 30s

	// Charset overrides the charset from the response Content-Type.
	// Empty means use the response charset, falling back to UTF-8.
	Charset string
	// ChunkSize is the read buffer size.
	ChunkSize int
	// MaxLineSize bounds a line carried across chunk boundaries.
	MaxLineSize int
	// Client performs the request. Nil uses a plain *http.Client.
	Client *http.Client

	OnLine     func(line string)
	OnFinish   func()
	OnError    func(err error)
	OnProgress func(p streamline.Progress)
}

// withDefaults validates o and fills in defaults.
func (o Options) withDefaults() (Options, error) {
	if o.URL == "" {
		return o, fmt.Errorf("%w: url is required", streamline.ErrInvalidOptions)
	}
	u, err := url.Parse(o.URL)
	if err != nil {
		return o, fmt.Errorf("%w: parse url: %v", streamline.ErrInvalidOptions, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return o, fmt.Errorf("%w: unsupported url scheme %q", streamline.ErrInvalidOptions, u.Scheme)
	}

	if o.Method == "" {
		o.Method = DefaultMethod
	}
	o.Method = strings.ToUpper(o.Method)
	if o.Body != nil && (o.Method == http.MethodGet || o.Method == http.MethodHead) {
		return o, fmt.Errorf("%w: %s request cannot have a body", streamline.ErrInvalidOptions, o.Method)
	}

	switch {
	case o.Timeout < 0:
		return o, fmt.Errorf("%w: timeout must be positive, got %s", streamline.ErrInvalidOptions, o.Timeout)
	case o.Timeout == 0:
		o.Timeout = DefaultTimeout
	}
	switch {
	case o.ChunkSize < 0:
		return o, fmt.Errorf("%w: chunk size must be positive", streamline.ErrInvalidOptions)
	case o.ChunkSize == 0:
		o.ChunkSize = DefaultChunkSize
	}
	switch {
	case o.MaxLineSize < 0:
		return o, fmt.Errorf("%w: max line size must be positive", streamline.ErrInvalidOptions)
	case o.MaxLineSize == 0:
		o.MaxLineSize = DefaultMaxLineSize
	}

	if o.Charset != "" {
		if _, err := lookupEncoding(o.Charset); err != nil {
			return o, fmt.Errorf("%w: %v", streamline.ErrInvalidOptions, err)
		}
	}

	seen := make(map[string]string, len(o.Header))
	for k := range o.Header {
		ck := http.CanonicalHeaderKey(k)
		if prev, dup := seen[ck]; dup {
			return o, fmt.Errorf("%w: duplicate header %q and %q", streamline.ErrInvalidOptions, prev, k)
		}
		seen[ck] = k
	}

	if o.Client == nil {
		o.Client = defaultClient
	}
	return o, nil
}

// defaultClient has no overall timeout; the transfer timer owns it.
var defaultClient = &http.Client{}

// newRequest builds the outbound request bound to ctx.
func (o Options) newRequest(ctx context.Context) (*http.Request, error) {
	var body io.Reader
	if o.Body != nil {
		b, err := json.Marshal(o.Body)
		if err != nil {
			return nil, fmt.Errorf("stream: marshal body: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, o.Method, o.URL, body)
	if err != nil {
		return nil, fmt.Errorf("stream: create request: %w", err)
	}
	for k, v := range o.Header {
		req.Header.Set(k, v)
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}
