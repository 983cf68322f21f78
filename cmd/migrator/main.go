// Copyright (c) 2017-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package main

import (
	"flag"
	"os"

	"github.com/mattermost/mattermost-server/v6/shared/mlog"

	"github.com/mattermost/mattermost-issuesync/server"
	"github.com/mattermost/mattermost-issuesync/store"
)

var (
	configFile     string
	migrateVersion int
)

func init() {
	flag.StringVar(&configFile, "config", "config-issuesync.json", "")
	flag.IntVar(&migrateVersion, "migration_version", -1, "Specify the target version to migrate to. Defaults to the latest.")
}

func main() {
	flag.Parse()

	config, err := server.GetConfig(configFile)
	if err != nil {
		mlog.Error("unable to load server config", mlog.Err(err), mlog.String("file", configFile))
		os.Exit(1)
	}
	if err = server.SetupLogging(config); err != nil {
		mlog.Error("unable to configure logging", mlog.Err(err))
		os.Exit(1)
	}

	db, err := store.Open(config.DriverName, config.DataSource)
	if err != nil {
		mlog.Error("Failed to open the database", mlog.Err(err))
		os.Exit(1)
	}
	defer db.Close()

	if err = store.Migrate(db, config.DriverName, migrateVersion); err != nil {
		mlog.Error("Failed to run migrations", mlog.Err(err))
		db.Close()
		os.Exit(1)
	}
	mlog.Info("Migrations applied", mlog.String("driver", config.DriverName), mlog.Int("version", migrateVersion))
}
