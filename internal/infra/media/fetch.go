package media

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/fardannozami/wa-multisession/internal/domain/session"
	"github.com/gabriel-vasile/mimetype"
)

const (
	DefaultTimeout  = 30 * time.Second
	DefaultMaxBytes = 16 << 20
)

// Fetcher downloads media referenced by URL so it can be sent as an
// attachment.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
}

func NewFetcher(timeout time.Duration, maxBytes int64) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Fetcher{
		client:   &http.Client{Timeout: timeout},
		maxBytes: maxBytes,
	}
}

func (f *Fetcher) Fetch(ctx context.Context, sourceURL string) (*session.Media, error) {
	u, err := url.Parse(sourceURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("invalid media url %q", sourceURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch media: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read media: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("media larger than %d bytes", f.maxBytes)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("media is empty")
	}

	mimeType := declaredType(resp.Header.Get("Content-Type"))
	if mimeType == "" {
		mimeType = mimetype.Detect(data).String()
		if i := strings.IndexByte(mimeType, ';'); i >= 0 {
			mimeType = mimeType[:i]
		}
	}

	return &session.Media{
		MimeType: mimeType,
		Filename: filename(u, mimeType),
		Data:     data,
	}, nil
}

// declaredType returns the media type of a Content-Type header, or "" when
// the server did not say anything useful.
func declaredType(header string) string {
	if header == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(header)
	if err != nil || mt == "application/octet-stream" {
		return ""
	}
	return mt
}

func filename(u *url.URL, mimeType string) string {
	base := path.Base(u.Path)
	if base != "" && base != "." && base != "/" && strings.Contains(base, ".") {
		return base
	}
	ext := ""
	if m := mimetype.Lookup(mimeType); m != nil {
		ext = m.Extension()
	}
	return "file" + ext
}
