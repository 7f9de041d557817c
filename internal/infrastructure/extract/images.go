package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

const (
	imageTimeout  = 10 * time.Second
	maxImageBytes = 10 << 20
)

// ImageStore downloads lead images into a local directory under generated
// unique filenames.
type ImageStore struct {
	dir     string
	client  *http.Client
	newName func() string
}

// NewImageStore returns a store writing into dir with a short fixed timeout.
func NewImageStore(dir string, client *http.Client) *ImageStore {
	if client == nil {
		client = &http.Client{}
	}
	c := *client
	c.Timeout = imageTimeout
	return &ImageStore{dir: dir, client: &c, newName: uuid.NewString}
}

// Save downloads imageURL and returns the local path. Only JPEG, PNG and GIF
// images are kept since those are the formats the renderers can embed.
func (s *ImageStore) Save(ctx context.Context, imageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("image %s returned %s", imageURL, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	if len(data) > maxImageBytes {
		return "", fmt.Errorf("image %s exceeds %d bytes", imageURL, maxImageBytes)
	}

	ext, err := imageExtension(data)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create image dir: %w", err)
	}
	path := filepath.Join(s.dir, s.newName()+ext)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}
	return path, nil
}

func imageExtension(data []byte) (string, error) {
	switch ct := http.DetectContentType(data); ct {
	case "image/jpeg":
		return ".jpg", nil
	case "image/png":
		return ".png", nil
	case "image/gif":
		return ".gif", nil
	default:
		return "", fmt.Errorf("unsupported image type %s", ct)
	}
}
