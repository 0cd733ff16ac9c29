// ABOUTME: Downloader for rendered session outputs
// ABOUTME: Fetches the final video and caption files into a local directory
package download

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
)

// Downloader saves remote session outputs to disk
type Downloader struct {
	dir    string
	client *http.Client
}

// NewDownloader creates a downloader writing into dir
func NewDownloader(dir string, client *http.Client) (*Downloader, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "livedub-outputs")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	if client == nil {
		client = &http.Client{}
	}

	return &Downloader{
		dir:    dir,
		client: client,
	}, nil
}

// Dir returns the directory outputs are written to
func (d *Downloader) Dir() string {
	return d.dir
}

// Download fetches rawURL and returns the local file path
func (d *Downloader) Download(ctx context.Context, rawURL string) (string, error) {
	if rawURL == "" {
		return "", nil
	}

	target := filepath.Join(d.dir, fileName(rawURL))

	// Rendered outputs are immutable per session, so an existing file is reused
	if _, err := os.Stat(target); err == nil {
		log.Printf("Output already downloaded: %s", target)
		return target, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build download request: %w", err)
	}

	log.Printf("Downloading output: %s", rawURL)
	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download output: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("output download failed: HTTP %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(d.dir, ".partial-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to save output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to save output: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to move output into place: %w", err)
	}

	log.Printf("Output saved: %s", target)
	return target, nil
}

// fileName derives a local name from the URL path, hashing when it has none
func fileName(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil {
		base := path.Base(u.Path)
		if base != "" && base != "/" && base != "." {
			return base
		}
	}

	hash := sha256.Sum256([]byte(rawURL))
	return fmt.Sprintf("%x.bin", hash[:8])
}
