package infra

import (
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/disintegration/imaging"

	"vend_go/internal/domain"
)

// ArtworkCache downloads and normalizes per-asset artwork for
// off-engine tooling. The purchase path never touches it.
type ArtworkCache struct {
	basePath string
	client   *http.Client
}

// NewArtworkCache creates a new ArtworkCache
func NewArtworkCache() (*ArtworkCache, error) {
	path, err := getArtworkPath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve artwork path: %w", err)
	}

	// Ensure directory exists
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create artwork directory: %w", err)
	}

	// Optimize HTTP Transport to prevent connection leaks
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConns = 100
	transport.MaxConnsPerHost = 10
	transport.IdleConnTimeout = 30 * time.Second

	return &ArtworkCache{
		basePath: path,
		client: &http.Client{
			Timeout:   10 * time.Second,
			Transport: transport,
		},
	}, nil
}

// Download fetches the artwork for an asset if it is not cached yet.
// Returns the local file path on success.
// Images are normalized to 64x64 pixels for consistent tooling display.
func (c *ArtworkCache) Download(id domain.AssetID, url string) (string, error) {
	filePath := c.Path(id)

	// Check if exists (Cache Hit)
	if _, err := os.Stat(filePath); err == nil {
		return filePath, nil
	}

	resp, err := c.client.Get(url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("bad status: %s", resp.Status)
	}

	// Decode the image
	srcImg, err := imaging.Decode(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}

	// Resize to 64x64 with high-quality Lanczos filter
	resizedImg := imaging.Resize(srcImg, 64, 64, imaging.Lanczos)

	// Save the resized image
	if err := imaging.Save(resizedImg, filePath); err != nil {
		return "", fmt.Errorf("failed to save resized image: %w", err)
	}

	return filePath, nil
}

// Path returns the local cache path for an asset's artwork. The file
// name is the hex identifier, so no sanitizing is needed.
func (c *ArtworkCache) Path(id domain.AssetID) string {
	return filepath.Join(c.basePath, hex.EncodeToString(id[:])+".png")
}

func getArtworkPath() (string, error) {
	var configDir string
	var err error

	if runtime.GOOS == "windows" {
		configDir = os.Getenv("LOCALAPPDATA")
		if configDir == "" {
			configDir, err = os.UserConfigDir()
		}
	} else {
		configDir, err = os.UserConfigDir()
	}

	if err != nil {
		return "", err
	}

	return filepath.Join(configDir, "VendGo", "assets", "artwork"), nil
}
