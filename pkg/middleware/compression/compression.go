// Package compression negotiates brotli or gzip response encoding.
package compression

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/nimburion/movies/pkg/server/router"
)

const (
	encodingBrotli = "br"
	encodingGzip   = "gzip"
)

// Config controls response compression.
type Config struct {
	Enabled bool
	// MinSize is the smallest body, in bytes, worth compressing.
	MinSize      int
	GzipLevel    int
	BrotliLevel  int
	ContentTypes []string
	// ExcludedPathPrefixes are served uncompressed (e.g. /metrics).
	ExcludedPathPrefixes []string
}

// DefaultConfig compresses JSON and text bodies of at least 1 KiB.
func DefaultConfig() Config {
	return Config{
		Enabled:      true,
		MinSize:      1024,
		GzipLevel:    gzip.DefaultCompression,
		BrotliLevel:  4,
		ContentTypes: []string{"application/json", "application/problem+json", "text/"},
	}
}

// Middleware compresses responses according to Accept-Encoding. Bodies are
// buffered until MinSize is reached, so short responses go out untouched.
func Middleware(cfg Config) router.MiddlewareFunc {
	def := DefaultConfig()
	if cfg.GzipLevel == 0 {
		cfg.GzipLevel = def.GzipLevel
	}
	if cfg.BrotliLevel <= 0 {
		cfg.BrotliLevel = def.BrotliLevel
	}
	if cfg.MinSize < 0 {
		cfg.MinSize = 0
	}
	if len(cfg.ContentTypes) == 0 {
		cfg.ContentTypes = def.ContentTypes
	}

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			req := c.Request()
			if !cfg.Enabled || req.Method == http.MethodHead || excluded(req.URL.Path, cfg.ExcludedPathPrefixes) {
				return next(c)
			}
			encoding := negotiate(req.Header.Get("Accept-Encoding"))
			if encoding == "" {
				return next(c)
			}

			original := c.Response()
			original.Header().Add("Vary", "Accept-Encoding")
			w := &compressWriter{ResponseWriter: original, encoding: encoding, cfg: cfg}
			c.SetResponse(w)

			err := next(c)
			closeErr := w.Close()
			c.SetResponse(original)
			if err != nil {
				return err
			}
			return closeErr
		}
	}
}

// negotiate picks br over gzip when both are acceptable.
func negotiate(header string) string {
	if header == "" {
		return ""
	}
	accepted := map[string]bool{}
	wildcard := false
	for _, part := range strings.Split(header, ",") {
		name, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		name = strings.ToLower(strings.TrimSpace(name))
		q := 1.0
		if k, v, ok := strings.Cut(strings.TrimSpace(params), "="); ok && strings.TrimSpace(k) == "q" {
			if parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				q = parsed
			}
		}
		if name == "*" {
			wildcard = q > 0
			continue
		}
		accepted[name] = q > 0
	}

	for _, enc := range []string{encodingBrotli, encodingGzip} {
		if ok, listed := accepted[enc]; ok || (!listed && wildcard) {
			return enc
		}
	}
	return ""
}

func excluded(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

type compressWriter struct {
	router.ResponseWriter
	encoding string
	cfg      Config

	status  int
	buf     bytes.Buffer
	decided bool
	enc     io.WriteCloser
}

func (w *compressWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
}

func (w *compressWriter) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

func (w *compressWriter) Written() bool {
	return w.status != 0 || w.decided
}

func (w *compressWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	if w.decided {
		if w.enc != nil {
			return w.enc.Write(b)
		}
		return w.ResponseWriter.Write(b)
	}
	w.buf.Write(b)
	if w.buf.Len() >= w.cfg.MinSize {
		if err := w.decide(); err != nil {
			return 0, err
		}
	}
	return len(b), nil
}

// Flush commits to a decision so streamed bodies are not held back.
func (w *compressWriter) Flush() {
	if !w.decided && w.status != 0 {
		_ = w.decide()
	}
	if f, ok := w.enc.(interface{ Flush() error }); ok {
		_ = f.Flush()
	}
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Close emits whatever is still buffered and terminates the encoder.
func (w *compressWriter) Close() error {
	if !w.decided {
		if w.status == 0 {
			return nil
		}
		if err := w.decide(); err != nil {
			return err
		}
	}
	if w.enc != nil {
		return w.enc.Close()
	}
	return nil
}

func (w *compressWriter) decide() error {
	w.decided = true
	h := w.Header()
	if w.shouldCompress() {
		h.Del("Content-Length")
		h.Set("Content-Encoding", w.encoding)
		switch w.encoding {
		case encodingBrotli:
			w.enc = brotli.NewWriterLevel(w.ResponseWriter, w.cfg.BrotliLevel)
		default:
			gz, err := gzip.NewWriterLevel(w.ResponseWriter, w.cfg.GzipLevel)
			if err != nil {
				gz = gzip.NewWriter(w.ResponseWriter)
			}
			w.enc = gz
		}
	}

	w.ResponseWriter.WriteHeader(w.Status())
	if w.buf.Len() == 0 {
		return nil
	}
	var err error
	if w.enc != nil {
		_, err = w.enc.Write(w.buf.Bytes())
	} else {
		_, err = w.ResponseWriter.Write(w.buf.Bytes())
	}
	w.buf.Reset()
	return err
}

func (w *compressWriter) shouldCompress() bool {
	status := w.Status()
	if status < http.StatusOK || status == http.StatusNoContent || status == http.StatusNotModified {
		return false
	}
	if w.buf.Len() < w.cfg.MinSize || w.buf.Len() == 0 {
		return false
	}
	h := w.Header()
	if h.Get("Content-Encoding") != "" {
		return false
	}
	contentType := h.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(w.buf.Bytes())
	}
	contentType = strings.ToLower(contentType)
	for _, allowed := range w.cfg.ContentTypes {
		if strings.HasPrefix(contentType, allowed) {
			return true
		}
	}
	return false
}
