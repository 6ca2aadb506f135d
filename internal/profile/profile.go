package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Backend identifies the physical passage storage layout. It is read once at
// startup and routes every passage write and similarity query; switching it
// does not rewrite existing data.
type Backend string

const (
	// BackendLegacy is the original single denormalized chunk table.
	BackendLegacy Backend = "legacy"
	// BackendNormalized is the passage + passage_embedding schema.
	BackendNormalized Backend = "normalized"
)

// Profile is the configuration to start the service.
type Profile struct {
	// Mode can be "prod" or "dev"
	Mode string
	// Data is the data directory
	Data string
	// DSN points to where the service stores its own data
	DSN string
	// Driver is the database driver (sqlite or postgres)
	Driver string
	// Backend selects the passage storage layout (legacy or normalized)
	Backend Backend

	// EmbeddingDim is the fixed dimensionality of passage embeddings.
	EmbeddingDim int
	// EmbeddingModel is the model identifier sent to the embedding service.
	EmbeddingModel string
	// EmbeddingBaseURL overrides the embedding service endpoint.
	EmbeddingBaseURL string
	// EmbeddingAPIKey authenticates against the embedding service.
	EmbeddingAPIKey string

	// ChunkSize is the maximum passage length in characters.
	ChunkSize int
	// ChunkOverlap is the character overlap between consecutive passages.
	ChunkOverlap int

	// MaxSearchLimit caps the number of hits a single search may return.
	MaxSearchLimit int
}

// New returns a profile populated with defaults. Callers overlay environment
// or flag values on top before calling Validate. ChunkOverlap defaults here
// rather than in Validate so an explicit zero overlap stays expressible.
func New() *Profile {
	return &Profile{
		Mode:           "dev",
		Driver:         "sqlite",
		Backend:        BackendLegacy,
		EmbeddingDim:   768,
		EmbeddingModel: "text-embedding-3-small",
		ChunkSize:      500,
		ChunkOverlap:   50,
		MaxSearchLimit: 100,
	}
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnvOrDefault returns the integer environment variable value or the
// default value when unset or unparsable.
func getIntEnvOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

// FromEnv loads configuration from HANSARD_* environment variables.
func (p *Profile) FromEnv() {
	p.Mode = getEnvOrDefault("HANSARD_MODE", p.Mode)
	p.Data = getEnvOrDefault("HANSARD_DATA", p.Data)
	p.DSN = getEnvOrDefault("HANSARD_DSN", p.DSN)
	p.Driver = getEnvOrDefault("HANSARD_DRIVER", p.Driver)
	p.Backend = Backend(getEnvOrDefault("HANSARD_BACKEND", string(p.Backend)))

	p.EmbeddingDim = getIntEnvOrDefault("HANSARD_EMBEDDING_DIM", p.EmbeddingDim)
	p.EmbeddingModel = getEnvOrDefault("HANSARD_EMBEDDING_MODEL", p.EmbeddingModel)
	p.EmbeddingBaseURL = getEnvOrDefault("HANSARD_EMBEDDING_BASE_URL", p.EmbeddingBaseURL)
	p.EmbeddingAPIKey = getEnvOrDefault("HANSARD_EMBEDDING_API_KEY", p.EmbeddingAPIKey)

	p.ChunkSize = getIntEnvOrDefault("HANSARD_CHUNK_SIZE", p.ChunkSize)
	p.ChunkOverlap = getIntEnvOrDefault("HANSARD_CHUNK_OVERLAP", p.ChunkOverlap)
	p.MaxSearchLimit = getIntEnvOrDefault("HANSARD_MAX_SEARCH_LIMIT", p.MaxSearchLimit)
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

// Validate fills defaults and rejects inconsistent configuration.
func (p *Profile) Validate() error {
	if p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "dev"
	}
	if p.Driver == "" {
		p.Driver = "sqlite"
	}
	if p.Driver != "sqlite" && p.Driver != "postgres" {
		return errors.Errorf("unknown db driver %q: only 'sqlite' and 'postgres' are supported", p.Driver)
	}
	if p.Backend == "" {
		p.Backend = BackendLegacy
	}
	if p.Backend != BackendLegacy && p.Backend != BackendNormalized {
		return errors.Errorf("unknown passage backend %q: only 'legacy' and 'normalized' are supported", p.Backend)
	}

	if p.EmbeddingDim <= 0 {
		p.EmbeddingDim = 768
	}
	if p.EmbeddingModel == "" {
		p.EmbeddingModel = "text-embedding-3-small"
	}
	if p.ChunkSize <= 0 {
		p.ChunkSize = 500
	}
	if p.ChunkOverlap < 0 {
		return errors.Errorf("chunk overlap must not be negative, got %d", p.ChunkOverlap)
	}
	if p.ChunkOverlap >= p.ChunkSize {
		return errors.Errorf("chunk overlap %d must be strictly less than chunk size %d", p.ChunkOverlap, p.ChunkSize)
	}
	if p.MaxSearchLimit <= 0 {
		p.MaxSearchLimit = 100
	}

	if p.Driver == "sqlite" && p.DSN == "" {
		if p.Data == "" {
			p.Data = "."
		}
		dataDir, err := checkDataDir(p.Data)
		if err != nil {
			return err
		}
		p.Data = dataDir
		dbFile := fmt.Sprintf("hansard_%s.db", p.Mode)
		p.DSN = filepath.Join(dataDir, dbFile)
	}
	if p.Driver == "postgres" && p.DSN == "" {
		return errors.New("postgres driver requires a DSN")
	}

	return nil
}
