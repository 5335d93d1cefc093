// Package pdftext downloads PDF documents and extracts their plain text.
package pdftext

import (
	"context"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Downloader fetches PDFs over HTTP into temporary files.
type Downloader struct {
	client  *http.Client
	tempDir string
}

// NewDownloader creates a Downloader. timeout bounds the whole download;
// redirects are followed. tempDir may be empty to use the OS default.
func NewDownloader(timeout time.Duration, tempDir string) *Downloader {
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Downloader{
		client:  &http.Client{Timeout: timeout},
		tempDir: tempDir,
	}
}

// Download fetches the PDF at url into a temporary file and returns its
// path. Deleting the file is the caller's responsibility; call sites are
// expected to defer os.Remove. Non-2xx responses and network failures are
// errors; there is no retry at this layer.
func (d *Downloader) Download(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", eris.Wrap(err, "pdftext: create request")
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return "", eris.Wrapf(err, "pdftext: download %s", url)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", eris.Errorf("pdftext: download %s: unexpected status %d", url, resp.StatusCode)
	}

	tmp, err := os.CreateTemp(d.tempDir, "paper-*.pdf")
	if err != nil {
		return "", eris.Wrap(err, "pdftext: create temp file")
	}

	n, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name()) //nolint:errcheck
		return "", eris.Wrapf(err, "pdftext: write %s", tmp.Name())
	}

	zap.L().Debug("downloaded pdf",
		zap.String("url", url),
		zap.String("path", tmp.Name()),
		zap.Int64("bytes", n),
	)
	return tmp.Name(), nil
}

// ExtractText extracts the full text of the PDF at path, concatenating
// per-page text in page order with a newline separator. A document with no
// recoverable text yields an empty string, which is a valid result.
func ExtractText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", eris.Wrapf(err, "pdftext: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	var parts []string
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// Pages with undecodable content streams contribute nothing.
			continue
		}
		parts = append(parts, text)
	}

	fullText := strings.Join(parts, "\n")
	zap.L().Info("extracted pdf text",
		zap.String("path", path),
		zap.Int("chars", len(fullText)),
	)
	return fullText, nil
}
