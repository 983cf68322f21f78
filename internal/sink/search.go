// Copyright (c) 2017-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package sink

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mattermost/mattermost-server/v6/shared/mlog"

	"github.com/mattermost/mattermost-issuesync/internal/retry"
)

const (
	DefaultAPIVersion = "2024-07-01"
	DefaultDimensions = 1536

	vectorAlgorithm = "issue-hnsw"
	vectorProfile   = "issue-vector-profile"
	semanticConfig  = "issue-semantic-config"

	actionMergeOrUpload = "mergeOrUpload"
)

type SearchConfig struct {
	Endpoint   string
	IndexName  string
	APIKey     string
	APIVersion string
	Dimensions int
	Timeout    time.Duration
	Retry      retry.Policy
}

// Document is one issue as stored in the search index.
type Document struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Labels      []string  `json:"labels"`
	Embedding   []float32 `json:"embedding"`
	Source      string    `json:"source"`
	CreatedDate time.Time `json:"createdDate"`
	UpdatedDate time.Time `json:"updatedDate"`
	State       string    `json:"state"`
	URL         string    `json:"url"`
}

type indexField struct {
	Name                string `json:"name"`
	Type                string `json:"type"`
	Key                 bool   `json:"key,omitempty"`
	Searchable          bool   `json:"searchable,omitempty"`
	Filterable          bool   `json:"filterable,omitempty"`
	Sortable            bool   `json:"sortable,omitempty"`
	Facetable           bool   `json:"facetable,omitempty"`
	Dimensions          int    `json:"dimensions,omitempty"`
	VectorSearchProfile string `json:"vectorSearchProfile,omitempty"`
}

type namedRef struct {
	Name      string `json:"name"`
	Kind      string `json:"kind,omitempty"`
	Algorithm string `json:"algorithm,omitempty"`
}

type fieldRef struct {
	FieldName string `json:"fieldName"`
}

type semanticConfiguration struct {
	Name              string `json:"name"`
	PrioritizedFields struct {
		TitleField    fieldRef   `json:"titleField"`
		ContentFields []fieldRef `json:"prioritizedContentFields"`
		KeywordFields []fieldRef `json:"prioritizedKeywordsFields"`
	} `json:"prioritizedFields"`
}

type indexDefinition struct {
	Name         string       `json:"name"`
	Fields       []indexField `json:"fields"`
	VectorSearch struct {
		Algorithms []namedRef `json:"algorithms"`
		Profiles   []namedRef `json:"profiles"`
	} `json:"vectorSearch"`
	Semantic struct {
		Configurations []semanticConfiguration `json:"configurations"`
	} `json:"semantic"`
}

type indexAction struct {
	Action string `json:"@search.action"`
	*Document
}

type indexBatch struct {
	Value []indexAction `json:"value"`
}

type indexResult struct {
	Value []struct {
		Key          string  `json:"key"`
		Status       bool    `json:"status"`
		ErrorMessage *string `json:"errorMessage"`
		StatusCode   int     `json:"statusCode"`
	} `json:"value"`
}

// SearchIndex talks to an Azure AI Search compatible REST endpoint.
type SearchIndex struct {
	rest   *restClient
	config SearchConfig
}

func NewSearchIndex(config SearchConfig, client *http.Client) (*SearchIndex, error) {
	config.Endpoint = strings.TrimRight(strings.TrimSpace(config.Endpoint), "/")
	if config.Endpoint == "" {
		return nil, errors.New("search endpoint is required")
	}
	if _, err := url.Parse(config.Endpoint); err != nil {
		return nil, fmt.Errorf("invalid search endpoint: %w", err)
	}
	if config.IndexName == "" {
		return nil, errors.New("search index name is required")
	}
	if config.APIVersion == "" {
		config.APIVersion = DefaultAPIVersion
	}
	if config.Dimensions <= 0 {
		config.Dimensions = DefaultDimensions
	}

	return &SearchIndex{
		rest:   newRESTClient("search index", client, config.Timeout, config.Retry),
		config: config,
	}, nil
}

func (s *SearchIndex) Dimensions() int { return s.config.Dimensions }

func (s *SearchIndex) url(path string) string {
	return fmt.Sprintf("%s/indexes/%s%s?api-version=%s",
		s.config.Endpoint, url.PathEscape(s.config.IndexName), path, url.QueryEscape(s.config.APIVersion))
}

func (s *SearchIndex) header() http.Header {
	return http.Header{"Api-Key": []string{s.config.APIKey}}
}

// EnsureIndex creates the index when it does not exist yet. An existing
// index is left untouched.
func (s *SearchIndex) EnsureIndex(ctx context.Context) (bool, error) {
	status, err := s.rest.do(ctx, http.MethodGet, s.url(""), s.header(), nil, nil, http.StatusNotFound)
	if err != nil {
		return false, err
	}
	if status != http.StatusNotFound {
		return false, nil
	}

	mlog.Info("Creating search index", mlog.String("index", s.config.IndexName), mlog.Int("dimensions", s.config.Dimensions))
	if _, err := s.rest.do(ctx, http.MethodPut, s.url(""), s.header(), s.definition(), nil); err != nil {
		return false, err
	}
	return true, nil
}

// Upload merges the document into the index, inserting it when its id is new.
func (s *SearchIndex) Upload(ctx context.Context, doc *Document) error {
	if len(doc.Embedding) != s.config.Dimensions {
		return fmt.Errorf("document %s: %w: got %d, want %d", doc.ID, ErrDimensionMismatch, len(doc.Embedding), s.config.Dimensions)
	}

	var result indexResult
	batch := indexBatch{Value: []indexAction{{Action: actionMergeOrUpload, Document: doc}}}
	if _, err := s.rest.do(ctx, http.MethodPost, s.url("/docs/index"), s.header(), batch, &result); err != nil {
		return err
	}

	for _, r := range result.Value {
		if r.Status {
			continue
		}
		msg := http.StatusText(r.StatusCode)
		if r.ErrorMessage != nil {
			msg = *r.ErrorMessage
		}
		return fmt.Errorf("indexing document %s: %s (status %d)", r.Key, msg, r.StatusCode)
	}
	return nil
}

func (s *SearchIndex) definition() *indexDefinition {
	def := &indexDefinition{
		Name: s.config.IndexName,
		Fields: []indexField{
			{Name: "id", Type: "Edm.String", Key: true, Filterable: true, Sortable: true, Facetable: true},
			{Name: "title", Type: "Edm.String", Searchable: true, Filterable: true, Sortable: true},
			{Name: "body", Type: "Edm.String", Searchable: true, Filterable: true},
			{Name: "embedding", Type: "Collection(Edm.Single)", Searchable: true, Dimensions: s.config.Dimensions, VectorSearchProfile: vectorProfile},
			{Name: "labels", Type: "Collection(Edm.String)", Searchable: true, Filterable: true, Facetable: true},
			{Name: "source", Type: "Edm.String", Filterable: true, Facetable: true},
			{Name: "createdDate", Type: "Edm.DateTimeOffset", Filterable: true, Sortable: true},
			{Name: "updatedDate", Type: "Edm.DateTimeOffset", Filterable: true, Sortable: true},
			{Name: "state", Type: "Edm.String", Filterable: true, Facetable: true},
			{Name: "url", Type: "Edm.String", Filterable: true, Facetable: true},
		},
	}
	def.VectorSearch.Algorithms = []namedRef{{Name: vectorAlgorithm, Kind: "hnsw"}}
	def.VectorSearch.Profiles = []namedRef{{Name: vectorProfile, Algorithm: vectorAlgorithm}}

	semantic := semanticConfiguration{Name: semanticConfig}
	semantic.PrioritizedFields.TitleField = fieldRef{FieldName: "title"}
	semantic.PrioritizedFields.ContentFields = []fieldRef{{FieldName: "body"}}
	semantic.PrioritizedFields.KeywordFields = []fieldRef{{FieldName: "labels"}}
	def.Semantic.Configurations = []semanticConfiguration{semantic}
	return def
}
