package venues

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/klauspost/compress/zstd"
	"gopkg.in/yaml.v3"
	"venuemap.taipeimusic.org/internal/config"
	"venuemap.taipeimusic.org/internal/models"
)

// DataSource produces the venue collection. Load is called at startup and
// again on every periodic refresh.
type DataSource interface {
	Load(ctx context.Context) (*models.VenueCollection, error)
	Describe() string
}

// FileSource reads a collection from a local file. The format follows the
// extension: .json, .yaml or .yml, optionally followed by .zst.
type FileSource struct {
	Path string
}

func (f FileSource) Describe() string { return "file:" + f.Path }

func (f FileSource) Load(ctx context.Context) (*models.VenueCollection, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open venue file: %w", err)
	}
	defer file.Close()

	return decodeCollection(file, f.Path)
}

// URLSource fetches a collection over HTTP, retrying with backoff.
type URLSource struct {
	URL        string
	AuthUser   string
	AuthPass   string
	Client     *http.Client
	MaxRetries int
}

func (u URLSource) Describe() string { return "url:" + u.URL }

func (u URLSource) Load(ctx context.Context) (*models.VenueCollection, error) {
	parsed, err := url.Parse(u.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if u.AuthUser != "" && u.AuthPass != "" {
		req.SetBasicAuth(u.AuthUser, u.AuthPass)
	}

	client := u.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := config.DoWithBackoff(ctx, client, req, u.MaxRetries)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch venue collection: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch venue collection: status %d", resp.StatusCode)
	}

	return decodeCollection(resp.Body, parsed.Path)
}

// decodeCollection picks a decoder from the extension of name.
func decodeCollection(r io.Reader, name string) (*models.VenueCollection, error) {
	name = strings.ToLower(name)

	if strings.HasSuffix(name, ".zst") {
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd reader: %w", err)
		}
		defer dec.Close()
		r = dec
		name = strings.TrimSuffix(name, ".zst")
	}

	var collection models.VenueCollection
	switch path.Ext(name) {
	case ".yaml", ".yml":
		if err := yaml.NewDecoder(r).Decode(&collection); err != nil {
			return nil, fmt.Errorf("failed to decode venue collection: %w", err)
		}
	default:
		if err := json.NewDecoder(r).Decode(&collection); err != nil {
			return nil, fmt.Errorf("failed to decode venue collection: %w", err)
		}
	}
	return &collection, nil
}
