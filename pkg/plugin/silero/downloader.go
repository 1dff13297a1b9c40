package silero

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// Downloader fetches the Silero model into Path.
type Downloader struct {
	URL    string
	Path   string
	Client *http.Client
}

func NewDownloader() *Downloader {
	return &Downloader{URL: ModelURL, Path: DefaultModelPath(), Client: &http.Client{Timeout: 2 * time.Minute}}
}

// Download implements plugin.Downloader.
func (d *Downloader) Download() error {
	return d.DownloadContext(context.Background())
}

// DownloadContext is a no-op when the model is already present. The file is
// written to a temporary name and renamed so a failed download never leaves a
// truncated model behind.
func (d *Downloader) DownloadContext(ctx context.Context) error {
	if info, err := os.Stat(d.Path); err == nil && info.Size() > 0 {
		slog.Info("silero model already present", slog.String("model_path", d.Path))
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(d.Path), 0o755); err != nil {
		return fmt.Errorf("create model directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.URL, nil)
	if err != nil {
		return err
	}
	resp, err := d.Client.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", d.URL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: HTTP %d", d.URL, resp.StatusCode)
	}

	tmp, err := os.CreateTemp(filepath.Dir(d.Path), ModelFileName+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", d.Path, err)
	}
	if n == 0 {
		return fmt.Errorf("download %s: empty body", d.URL)
	}
	if err := os.Rename(tmp.Name(), d.Path); err != nil {
		return err
	}

	slog.Info("silero model downloaded", slog.String("model_path", d.Path), slog.Int64("bytes", n))
	return nil
}
