package memory

import (
	"time"

	"github.com/buildsage/buildsage/domain/plan"
	"github.com/buildsage/buildsage/domain/quota"
)

func bumpUsage(u *quota.Usage, tool plan.ToolType) {
	switch tool {
	case plan.ToolPerformance:
		u.Performance++
	case plan.ToolBuild:
		u.Build++
	case plan.ToolImage:
		u.Image++
	case plan.ToolCommunity:
		u.Community++
	}
}

func zeroedUsage(now time.Time) quota.Usage {
	return quota.Usage{ResetAt: now}
}
