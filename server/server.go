// Copyright (c) 2017-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/go-github/v39/github"
	"github.com/gorilla/mux"
	"github.com/mattermost/mattermost-server/v6/shared/mlog"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/mattermost/mattermost-issuesync/internal/credentials"
	"github.com/mattermost/mattermost-issuesync/internal/export"
	"github.com/mattermost/mattermost-issuesync/internal/issues"
	"github.com/mattermost/mattermost-issuesync/internal/retry"
	"github.com/mattermost/mattermost-issuesync/internal/sink"
	"github.com/mattermost/mattermost-issuesync/metrics"
	"github.com/mattermost/mattermost-issuesync/model"
	"github.com/mattermost/mattermost-issuesync/store"
)

//go:generate mockgen -destination=mocks/mock_server.go -package mocks github.com/mattermost/mattermost-issuesync/server IssueFetcher,IssueCreator,ExportService,RateLimitsService

const (
	httpServerReadTimeout  = 30 * time.Second
	httpServerWriteTimeout = 60 * time.Second
	shutdownTimeout        = 30 * time.Second
)

type IssueFetcher interface {
	Issues(ctx context.Context, owner, repo string, filter issues.Filter) (*issues.IssueSet, error)
	IssuesByNumber(ctx context.Context, owner, repo string, numbers []int, filter issues.Filter) (*issues.IssueSet, error)
	Issue(ctx context.Context, owner, repo string, number int, withComments bool) (*model.Issue, error)
	Labels(ctx context.Context, owner, repo string) ([]*model.Label, error)
}

type IssueCreator interface {
	CreateMany(ctx context.Context, owner, repo string, items []*model.CreateIssueRequest) (*model.BatchResult, error)
}

type ExportService interface {
	Submit(req *model.ExportRequest) (*model.ExportJob, error)
	Get(id string) (*model.ExportJob, error)
	Retry(id string) (*model.ExportJob, error)
	ResumeUnfinished() (int, error)
	Stop()
}

type RateLimitsService interface {
	RateLimits(ctx context.Context) (*github.RateLimits, *github.Response, error)
}

type Server struct {
	Config  *Config
	Store   store.Store
	Metrics metrics.Provider

	Fetcher    IssueFetcher
	Creator    IssueCreator
	Exports    ExportService
	RateLimits RateLimitsService

	Router *mux.Router

	server *http.Server
	cron   *cron.Cron
}

// New wires the store, the GitHub client, the sinks and the export
// orchestrator from config.
func New(config *Config, metricsProvider metrics.Provider) (*Server, error) {
	ss, err := store.NewSQLStore(config.DriverName, config.DataSource)
	if err != nil {
		return nil, errors.Wrap(err, "unable to open the store")
	}

	broker := credentials.NewBroker(credentials.Config{
		AppID:           config.GitHub.AppID,
		InstallationID:  config.GitHub.InstallationID,
		SecretName:      config.GitHub.PrivateKeySecret,
		BaseURL:         config.GitHub.BaseURL,
		ExchangeTimeout: time.Duration(config.ExchangeTimeoutSeconds) * time.Second,
	}, secretStore(config.GitHub), nil, metricsProvider)

	transport := issues.NewTransport(issues.TransportConfig{
		RequestsPerSecond: config.GitHub.RequestsPerSecond,
		Burst:             config.GitHub.Burst,
		CacheSizeBytes:    int64(config.GitHub.CacheSizeMB) << 20,
	}, metricsProvider, nil)

	client, err := issues.NewGithubClient(&http.Client{Transport: broker.Transport(transport)}, config.GitHub.BaseURL)
	if err != nil {
		ss.Close()
		return nil, errors.Wrap(err, "unable to create the GitHub client")
	}

	fetcher := issues.NewFetcher(client, issues.FetcherConfig{
		Workers: config.FetchWorkers,
		Retry:   retry.Policy{AttemptTimeout: config.requestTimeout()},
	})

	sinks, err := newSinks(config)
	if err != nil {
		ss.Close()
		return nil, err
	}

	s := &Server{
		Config:     config,
		Store:      ss,
		Metrics:    metricsProvider,
		Fetcher:    fetcher,
		Creator:    issues.NewBatchCreator(client, config.requestTimeout(), metricsProvider),
		Exports:    export.NewOrchestrator(ss, fetcher, sinks, metricsProvider, export.Config{Workers: config.ExportWorkers}),
		RateLimits: client,
	}
	s.initializeRouter()
	return s, nil
}

func secretStore(settings GitHubSettings) credentials.SecretStore {
	if settings.SecretsDirectory != "" {
		return &credentials.FileSecretStore{Dir: settings.SecretsDirectory}
	}
	return &credentials.EnvSecretStore{Prefix: settings.SecretsEnvPrefix}
}

func newSinks(config *Config) (*export.Sinks, error) {
	sinks := &export.Sinks{OutputDirectory: config.OutputDirectory}
	if !config.searchEnabled() {
		mlog.Info("Search sink disabled, only spreadsheet exports are available")
		return sinks, nil
	}

	index, err := sink.NewSearchIndex(sink.SearchConfig{
		Endpoint:   config.Search.Endpoint,
		IndexName:  config.Search.IndexName,
		APIKey:     config.Search.APIKey,
		APIVersion: config.Search.APIVersion,
		Dimensions: config.Search.Dimensions,
		Timeout:    time.Duration(config.Search.TimeoutSeconds) * time.Second,
	}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "invalid search settings")
	}
	embedder, err := sink.NewEmbedder(sink.EmbedderConfig{
		BaseURL:    config.Embedding.BaseURL,
		APIKey:     config.Embedding.APIKey,
		Model:      config.Embedding.Model,
		Dimensions: index.Dimensions(),
		Timeout:    time.Duration(config.Embedding.TimeoutSeconds) * time.Second,
	}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "invalid embedding settings")
	}

	sinks.Index = index
	sinks.Embedder = embedder
	return sinks, nil
}

// Start serves the API, starts the scheduled tasks and resumes the export
// jobs left unfinished by a previous run.
func (s *Server) Start() error {
	if err := s.startCron(); err != nil {
		return err
	}

	if started, err := s.Exports.ResumeUnfinished(); err != nil {
		mlog.Error("Unable to resume unfinished export jobs", mlog.Err(err))
	} else if started > 0 {
		mlog.Info("Resumed unfinished export jobs", mlog.Int("count", started))
	}

	s.server = &http.Server{
		Addr:         s.Config.ListenAddress,
		Handler:      s.Router,
		ReadTimeout:  httpServerReadTimeout,
		WriteTimeout: httpServerWriteTimeout,
	}
	go func() {
		mlog.Info("Listening on", mlog.String("address", s.Config.ListenAddress))
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			mlog.Error("Server exited with error", mlog.Err(err))
		}
	}()
	return nil
}

// Stop drains the API, stops the scheduled tasks and interrupts the
// running export jobs, which stay resumable.
func (s *Server) Stop() error {
	var err error
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err = s.server.Shutdown(ctx)
	}
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	s.Exports.Stop()
	if s.Store != nil {
		s.Store.Close()
	}
	return err
}

func (s *Server) initializeRouter() {
	s.Router = mux.NewRouter()
	s.Router.Use(s.withRequestDuration)

	s.Router.HandleFunc("/version", s.versionHandler).Methods(http.MethodGet)

	r := s.Router.PathPrefix("/issues/{owner}/{repo}").Subrouter()
	r.HandleFunc("", s.createIssuesHandler).Methods(http.MethodPost)
	r.HandleFunc("", s.listIssuesHandler).Methods(http.MethodGet)
	r.HandleFunc("/labels", s.listLabelsHandler).Methods(http.MethodGet)
	r.HandleFunc("/{number:[0-9]+}", s.getIssueHandler).Methods(http.MethodGet)

	s.Router.HandleFunc("/export", s.submitExportHandler).Methods(http.MethodPost)
	s.Router.HandleFunc("/export/{id}", s.getExportHandler).Methods(http.MethodGet)
	s.Router.HandleFunc("/export/{id}/retry", s.retryExportHandler).Methods(http.MethodPost)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) withRequestDuration(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		if s.Metrics == nil {
			return
		}
		handler := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				handler = tpl
			}
		}
		elapsed := float64(time.Since(start)) / float64(time.Second)
		s.Metrics.ObserveHTTPRequestDuration(handler, r.Method, strconv.Itoa(rec.status), elapsed)
	})
}
