// Copyright (c) 2017-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package server

import (
	"context"
	"time"

	"github.com/mattermost/mattermost-server/v6/shared/mlog"
)

const rateLimitCheckTimeout = 10 * time.Second

// shouldAbortForRateLimit reports whether the remaining GitHub rate limit is
// under the configured reserve. A failed check does not abort.
func (s *Server) shouldAbortForRateLimit() bool {
	if s.RateLimits == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), rateLimitCheckTimeout)
	defer cancel()

	limits, _, err := s.RateLimits.RateLimits(ctx)
	if err != nil {
		mlog.Warn("Error getting the rate limit", mlog.Err(err))
		return false
	}
	core := limits.GetCore()
	if core == nil {
		return false
	}
	mlog.Debug("Current rate limit", mlog.Int("remaining", core.Remaining), mlog.Int("limit", core.Limit))
	if core.Remaining <= s.Config.GitHub.TokenReserve {
		mlog.Warn("Rate limit under the reserve, the task will be skipped",
			mlog.Int("remaining", core.Remaining),
			mlog.Int("reserve", s.Config.GitHub.TokenReserve),
			mlog.String("reset", core.Reset.Time.Format(time.RFC3339)),
		)
		return true
	}
	return false
}
