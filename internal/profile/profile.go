package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/pkg/errors"
)

// Profile is the configuration to start the main server.
type Profile struct {
	// Mode can be "prod" or "dev"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Data is the data directory
	Data string
	// DSN points to where notectx stores its own data
	DSN string
	// Driver is the database driver (sqlite or postgres)
	Driver string
	// Version is the current version of server
	Version string
	// InstanceURL is the url of this notectx instance
	InstanceURL string

	// AI configuration. The embedding and answer providers speak the
	// OpenAI API; BaseURL makes any compatible endpoint usable.
	AIEnabled             bool
	AIAPIKey              string
	AIBaseURL             string
	AIEmbeddingModel      string
	AIEmbeddingDimensions int
	AILLMModel            string

	// Retrieval cascade thresholds.
	SearchHighThreshold float64
	SearchLowThreshold  float64
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsAIEnabled returns true if AI is enabled and an API key is configured.
func (p *Profile) IsAIEnabled() bool {
	return p.AIEnabled && p.AIAPIKey != ""
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

// Validate normalizes and validates the profile.
func (p *Profile) Validate() error {
	if p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "dev"
	}
	if p.Driver == "" {
		p.Driver = "sqlite"
	}
	if p.AIEmbeddingDimensions <= 0 {
		p.AIEmbeddingDimensions = 1024
	}
	if p.SearchHighThreshold == 0 {
		p.SearchHighThreshold = 0.7
	}
	if p.SearchLowThreshold == 0 {
		p.SearchLowThreshold = 0.4
	}

	if err := validation.ValidateStruct(p,
		validation.Field(&p.Port, validation.Min(0), validation.Max(65535)),
		validation.Field(&p.Driver, validation.Required, validation.In("sqlite", "postgres")),
		validation.Field(&p.SearchHighThreshold, validation.Min(-1.0), validation.Max(1.0)),
		validation.Field(&p.SearchLowThreshold, validation.Min(-1.0), validation.Max(1.0)),
	); err != nil {
		return errors.Wrap(err, "invalid profile")
	}

	if p.Driver == "postgres" && p.DSN == "" {
		return errors.New("dsn is required for the postgres driver")
	}

	if p.Driver == "sqlite" {
		dataDir, err := checkDataDir(p.Data)
		if err != nil {
			return err
		}
		p.Data = dataDir
		if p.DSN == "" {
			dbFile := fmt.Sprintf("notectx_%s.db", p.Mode)
			p.DSN = filepath.Join(dataDir, dbFile)
		}
	}

	return nil
}
