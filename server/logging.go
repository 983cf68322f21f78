// Copyright (c) 2017-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package server

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/mattermost/mattermost-server/v6/shared/mlog"
)

const logFilename = "issuesync.log"

type targetConfig struct {
	Type          string          `json:"type"`
	Format        string          `json:"format"`
	FormatOptions json.RawMessage `json:"format_options,omitempty"`
	Levels        []mlog.Level    `json:"levels"`
	Options       json.RawMessage `json:"options,omitempty"`
	MaxQueueSize  int             `json:"maxqueuesize,omitempty"`
}

// SetupLogging configures the global logger from the log settings.
func SetupLogging(config *Config) error {
	cfg, err := loggingConfig(config.LogSettings)
	if err != nil {
		return err
	}

	logger, err := mlog.NewLogger()
	if err != nil {
		return err
	}
	if err = logger.Configure("", string(cfg), nil); err != nil {
		return err
	}
	mlog.InitGlobalLogger(logger)
	return nil
}

func loggingConfig(settings LogSettings) ([]byte, error) {
	targets := map[string]targetConfig{}
	if settings.EnableConsole {
		targets["console"] = targetConfig{
			Type:         "console",
			Format:       format(settings.ConsoleJSON),
			Levels:       levelsFrom(settings.ConsoleLevel),
			Options:      json.RawMessage(`{"out":"stdout"}`),
			MaxQueueSize: 1000,
		}
	}
	if settings.EnableFile {
		options, err := json.Marshal(map[string]interface{}{
			"filename": logFileLocation(settings.FileLocation),
			"max_size": 100,
			"compress": true,
		})
		if err != nil {
			return nil, err
		}
		targets["file"] = targetConfig{
			Type:         "file",
			Format:       format(settings.FileJSON),
			Levels:       levelsFrom(settings.FileLevel),
			Options:      options,
			MaxQueueSize: 1000,
		}
	}
	return json.Marshal(targets)
}

func logFileLocation(location string) string {
	if location == "" {
		return logFilename
	}
	if filepath.Ext(location) == ".log" {
		return location
	}
	return filepath.Join(location, logFilename)
}

func format(asJSON bool) string {
	if asJSON {
		return "json"
	}
	return "plain"
}

// levelsFrom returns level and every level more severe than it.
func levelsFrom(level string) []mlog.Level {
	ordered := []mlog.Level{mlog.LvlPanic, mlog.LvlFatal, mlog.LvlError, mlog.LvlWarn, mlog.LvlInfo, mlog.LvlDebug}
	switch strings.ToLower(level) {
	case "error":
		return ordered[:3]
	case "warn", "warning":
		return ordered[:4]
	case "debug":
		return ordered
	default:
		return ordered[:5]
	}
}
