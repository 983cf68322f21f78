// Copyright (c) 2017-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/mattermost/mattermost-server/v6/shared/mlog"

	"github.com/mattermost/mattermost-issuesync/internal/credentials"
	"github.com/mattermost/mattermost-issuesync/internal/export"
	"github.com/mattermost/mattermost-issuesync/internal/issues"
	"github.com/mattermost/mattermost-issuesync/model"
	"github.com/mattermost/mattermost-issuesync/version"
)

const (
	partialSuccessHeader = "X-Partial-Success"
	maxRequestBody       = 10 << 20
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		mlog.Warn("Failed to write response", mlog.Err(err))
	}
}

// writeError renders err as an AppError with the status its kind maps to.
func writeError(w http.ResponseWriter, where string, err error) {
	status, id := statusOf(err)
	if status >= http.StatusInternalServerError {
		mlog.Error("Request failed", mlog.String("where", where), mlog.Err(err))
	}
	appErr := model.NewAppError(where, id, nil, err.Error(), status)
	writeJSON(w, status, appErr)
}

func statusOf(err error) (int, string) {
	var validation *issues.ValidationError
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, "api.request.invalid"
	case errors.Is(err, issues.ErrNotFound), errors.Is(err, export.ErrJobNotFound):
		return http.StatusNotFound, "api.resource.not_found"
	case errors.Is(err, export.ErrJobNotFailed):
		return http.StatusConflict, "api.export.not_failed"
	case errors.Is(err, credentials.ErrRejected):
		return http.StatusBadGateway, "api.github.credential_rejected"
	case errors.Is(err, credentials.ErrUnavailable):
		return http.StatusServiceUnavailable, "api.github.credential_unavailable"
	case errors.Is(err, issues.ErrFetchFailed):
		return http.StatusBadGateway, "api.github.fetch_failed"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "api.request.timeout"
	}
	return http.StatusInternalServerError, "api.internal_error"
}

func invalid(field, message string) error {
	return &issues.ValidationError{Field: field, Message: message}
}

func (s *Server) versionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, version.Full())
}

func (s *Server) createIssuesHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var items []*model.CreateIssueRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&items); err != nil {
		writeError(w, "createIssuesHandler", invalid("body", "a JSON array of issues is required"))
		return
	}

	result, err := s.Creator.CreateMany(r.Context(), vars["owner"], vars["repo"], items)
	if err != nil {
		writeError(w, "createIssuesHandler", err)
		return
	}
	if header, ok := result.PartialHeader(); ok {
		w.Header().Set(partialSuccessHeader, header)
	}
	writeJSON(w, http.StatusOK, result.Outcomes)
}

// issueFilter reads the filter of an issue listing from the query string.
// Labels may be repeated, comma separated, or both.
func issueFilter(r *http.Request) (issues.Filter, []int, error) {
	query := r.URL.Query()
	filter := issues.Filter{}

	for _, key := range []string{"labels", "labels[]"} {
		for _, v := range query[key] {
			for _, l := range strings.Split(v, ",") {
				if l = strings.TrimSpace(l); l != "" {
					filter.Labels = append(filter.Labels, l)
				}
			}
		}
	}

	switch state := strings.ToLower(query.Get("state")); state {
	case "", "open", "closed", "all":
		filter.State = state
	default:
		return filter, nil, invalid("state", "must be open, closed or all")
	}

	if raw := query.Get("comments"); raw != "" {
		include, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, nil, invalid("comments", "must be a boolean")
		}
		filter.IncludeComments = include
	}

	var numbers []int
	if raw := query.Get("ids"); raw != "" {
		for _, v := range strings.Split(raw, ",") {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil || n <= 0 {
				return filter, nil, invalid("ids", "must be a comma separated list of issue numbers")
			}
			numbers = append(numbers, n)
		}
	}
	return filter, numbers, nil
}

func (s *Server) listIssuesHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	filter, numbers, err := issueFilter(r)
	if err != nil {
		writeError(w, "listIssuesHandler", err)
		return
	}

	var set *issues.IssueSet
	if len(numbers) > 0 {
		set, err = s.Fetcher.IssuesByNumber(r.Context(), vars["owner"], vars["repo"], numbers, filter)
	} else {
		set, err = s.Fetcher.Issues(r.Context(), vars["owner"], vars["repo"], filter)
	}
	if err != nil {
		writeError(w, "listIssuesHandler", err)
		return
	}

	if header, ok := set.PartialHeader(); ok {
		w.Header().Set(partialSuccessHeader, header)
	}
	list := set.Issues
	if list == nil {
		list = []*model.Issue{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) getIssueHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	number, err := strconv.Atoi(vars["number"])
	if err != nil {
		writeError(w, "getIssueHandler", invalid("number", "must be an issue number"))
		return
	}
	withComments := false
	if raw := r.URL.Query().Get("comments"); raw != "" {
		if withComments, err = strconv.ParseBool(raw); err != nil {
			writeError(w, "getIssueHandler", invalid("comments", "must be a boolean"))
			return
		}
	}

	issue, err := s.Fetcher.Issue(r.Context(), vars["owner"], vars["repo"], number, withComments)
	if err != nil {
		writeError(w, "getIssueHandler", err)
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

func (s *Server) listLabelsHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	labels, err := s.Fetcher.Labels(r.Context(), vars["owner"], vars["repo"])
	if err != nil {
		writeError(w, "listLabelsHandler", err)
		return
	}
	if labels == nil {
		labels = []*model.Label{}
	}
	writeJSON(w, http.StatusOK, labels)
}

func (s *Server) submitExportHandler(w http.ResponseWriter, r *http.Request) {
	req, err := model.ExportRequestFromJSON(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		writeError(w, "submitExportHandler", invalid("body", "an export request is required"))
		return
	}

	job, err := s.Exports.Submit(req)
	if err != nil {
		writeError(w, "submitExportHandler", err)
		return
	}
	w.Header().Set("Location", "/export/"+job.ID)
	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) getExportHandler(w http.ResponseWriter, r *http.Request) {
	job, err := s.Exports.Get(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, "getExportHandler", err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) retryExportHandler(w http.ResponseWriter, r *http.Request) {
	job, err := s.Exports.Retry(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, "retryExportHandler", err)
		return
	}
	w.Header().Set("Location", "/export/"+job.ID)
	writeJSON(w, http.StatusAccepted, job)
}
