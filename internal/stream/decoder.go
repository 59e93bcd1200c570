package stream

import (
	"fmt"
	"mime"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// lookupEncoding resolves a charset label (WHATWG names and aliases).
func lookupEncoding(label string) (encoding.Encoding, error) {
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q", label)
	}
	return enc, nil
}

// responseEncoding picks the encoding for a response body. An explicit
// charset wins; otherwise the Content-Type charset parameter is used.
// Unknown or missing charsets fall back to UTF-8.
func responseEncoding(charset, contentType string) encoding.Encoding {
	if charset == "" && contentType != "" {
		if _, params, err := mime.ParseMediaType(contentType); err == nil {
			charset = params["charset"]
		}
	}
	if charset != "" {
		if enc, err := lookupEncoding(charset); err == nil {
			return enc
		}
	}
	return unicode.UTF8
}

// decoder converts chunks to UTF-8 text. It is retained for the whole
// transfer: bytes of a character cut off at the end of one chunk are held
// back and completed by the next one. A byte order mark at the start of
// the stream is dropped.
type decoder struct {
	t       transform.Transformer
	pending []byte
	dst     []byte
	started bool // some text has been returned
}

func newDecoder(enc encoding.Encoding) *decoder {
	return &decoder{
		t:   enc.NewDecoder(),
		dst: make([]byte, 4096),
	}
}

// Decode returns the text for chunk plus any bytes held back from earlier
// calls. With atEOF set, incomplete trailing bytes are decoded as U+FFFD.
func (d *decoder) Decode(chunk []byte, atEOF bool) (string, error) {
	src := chunk
	if len(d.pending) > 0 {
		src = append(d.pending, chunk...)
		d.pending = nil
	}

	var out []byte
	for {
		nDst, nSrc, err := d.t.Transform(d.dst, src, atEOF)
		out = append(out, d.dst[:nDst]...)
		src = src[nSrc:]

		switch err {
		case nil:
			return d.text(out), nil
		case transform.ErrShortDst:
			if nDst == 0 && nSrc == 0 {
				d.dst = make([]byte, 2*len(d.dst))
			}
		case transform.ErrShortSrc:
			if atEOF {
				return d.text(out), err
			}
			d.pending = append([]byte(nil), src...)
			return d.text(out), nil
		default:
			return d.text(out), err
		}
	}
}

// text converts decoded bytes, dropping a leading U+FEFF once.
func (d *decoder) text(out []byte) string {
	s := string(out)
	if !d.started && s != "" {
		d.started = true
		s = strings.TrimPrefix(s, "\ufeff")
	}
	return s
}
