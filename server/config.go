// Copyright (c) 2017-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package server

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/mattermost/mattermost-issuesync/internal/credentials"
	"github.com/mattermost/mattermost-issuesync/model"
	"github.com/mattermost/mattermost-issuesync/store"
)

const (
	defaultListenAddress      = ":8086"
	defaultMetricsPort        = "9093"
	defaultResumeSchedule     = "@every 5m"
	defaultOutputDirectory    = "exports"
	defaultRequestTimeout     = 30
	defaultExchangeTimeout    = 30
	defaultSinkTimeout        = 60
	defaultFetchWorkers       = 8
	defaultExportWorkers      = 4
	defaultGitHubTokenReserve = 100
)

type GitHubSettings struct {
	AppID          int64
	InstallationID int64
	// BaseURL is the API root of a GitHub Enterprise server.
	BaseURL string

	// PrivateKeySecret names the secret holding the PEM signing key.
	PrivateKeySecret string
	// SecretsDirectory holds one file per secret. When empty the secrets are
	// read from environment variables prefixed by SecretsEnvPrefix.
	SecretsDirectory string
	SecretsEnvPrefix string

	RequestsPerSecond float64
	Burst             int
	CacheSizeMB       int
	// TokenReserve is the remaining rate limit under which scheduled exports
	// are skipped.
	TokenReserve int
}

type SearchSettings struct {
	Endpoint       string
	IndexName      string
	APIKey         string
	APIVersion     string
	Dimensions     int
	TimeoutSeconds int
}

type EmbeddingSettings struct {
	BaseURL        string
	APIKey         string
	Model          string
	TimeoutSeconds int
}

// ScheduledExport submits Request every time Schedule fires.
type ScheduledExport struct {
	Schedule string
	Request  model.ExportRequest
}

type LogSettings struct {
	EnableConsole bool
	ConsoleJSON   bool
	ConsoleLevel  string
	EnableFile    bool
	FileJSON      bool
	FileLevel     string
	FileLocation  string
}

type Config struct {
	ListenAddress     string
	MetricsServerPort string

	DriverName string
	DataSource string

	GitHub    GitHubSettings
	Search    SearchSettings
	Embedding EmbeddingSettings

	OutputDirectory string

	FetchWorkers           int
	ExportWorkers          int
	RequestTimeoutSeconds  int
	ExchangeTimeoutSeconds int

	ResumeSchedule   string
	ScheduledExports []ScheduledExport

	LogSettings LogSettings
}

// FindConfigFile looks for fileName in the usual places and returns the
// first match, or fileName itself.
func FindConfigFile(fileName string) string {
	if filepath.IsAbs(fileName) {
		return fileName
	}
	for _, dir := range []string{"/tmp", "./config", "../config", "."} {
		candidate := filepath.Join(dir, fileName)
		if _, err := os.Stat(candidate); err == nil {
			if abs, err := filepath.Abs(candidate); err == nil {
				return abs
			}
			return candidate
		}
	}
	return fileName
}

// GetConfig reads the JSON config file and applies the defaults.
func GetConfig(fileName string) (*Config, error) {
	fileName = FindConfigFile(fileName)

	file, err := os.Open(fileName)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open config file %s", fileName)
	}
	defer file.Close()

	config := &Config{}
	if err = json.NewDecoder(file).Decode(config); err != nil {
		return nil, errors.Wrapf(err, "unable to decode config file %s", fileName)
	}
	config.SetDefaults()
	return config, nil
}

func (c *Config) SetDefaults() {
	if c.ListenAddress == "" {
		c.ListenAddress = defaultListenAddress
	}
	if c.MetricsServerPort == "" {
		c.MetricsServerPort = defaultMetricsPort
	}
	if c.DriverName == "" {
		c.DriverName = store.DriverSQLite
	}
	if c.DataSource == "" && c.DriverName == store.DriverSQLite {
		c.DataSource = "issuesync.db"
	}
	if c.GitHub.PrivateKeySecret == "" {
		c.GitHub.PrivateKeySecret = credentials.DefaultSecretName
	}
	if c.GitHub.TokenReserve <= 0 {
		c.GitHub.TokenReserve = defaultGitHubTokenReserve
	}
	if c.Search.TimeoutSeconds <= 0 {
		c.Search.TimeoutSeconds = defaultSinkTimeout
	}
	if c.Embedding.TimeoutSeconds <= 0 {
		c.Embedding.TimeoutSeconds = defaultSinkTimeout
	}
	if c.OutputDirectory == "" {
		c.OutputDirectory = defaultOutputDirectory
	}
	if c.FetchWorkers <= 0 {
		c.FetchWorkers = defaultFetchWorkers
	}
	if c.ExportWorkers <= 0 {
		c.ExportWorkers = defaultExportWorkers
	}
	if c.RequestTimeoutSeconds <= 0 {
		c.RequestTimeoutSeconds = defaultRequestTimeout
	}
	if c.ExchangeTimeoutSeconds <= 0 {
		c.ExchangeTimeoutSeconds = defaultExchangeTimeout
	}
	if strings.TrimSpace(c.ResumeSchedule) == "" {
		c.ResumeSchedule = defaultResumeSchedule
	}
}

func (c *Config) requestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// searchEnabled reports whether the search sink has enough settings to be built.
func (c *Config) searchEnabled() bool {
	return c.Search.Endpoint != "" && c.Search.IndexName != "" && c.Embedding.APIKey != ""
}
