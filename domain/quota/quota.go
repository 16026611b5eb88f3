// Package quota provides pure functions for entitlement decisions.
// All functions are deterministic with no side effects; reads and writes
// of durable usage state happen in the app layer.
package quota

import (
	"fmt"
	"time"

	"github.com/buildsage/buildsage/domain/plan"
)

// ResetWindow is the rolling usage cycle length. Counters older than
// this are zeroed lazily on the next read.
const ResetWindow = 30 * 24 * time.Hour

// Reason classifies why a check was denied.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonQuotaExceeded    Reason = "quota_exceeded"
	ReasonIdentityMissing  Reason = "identity_missing"
	ReasonAccountNotFound  Reason = "account_not_found"
	ReasonStoreUnavailable Reason = "store_unavailable"
	ReasonSignInRequired   Reason = "sign_in_required"
)

// Usage holds one identity's counters for the current cycle (value type).
type Usage struct {
	Performance int64
	Build       int64
	Image       int64
	Community   int64
	ResetAt     time.Time
}

// For returns the counter matching a tool.
// This is a PURE function.
func (u Usage) For(tool plan.ToolType) int64 {
	switch tool {
	case plan.ToolPerformance:
		return u.Performance
	case plan.ToolBuild:
		return u.Build
	case plan.ToolImage:
		return u.Image
	case plan.ToolCommunity:
		return u.Community
	default:
		return 0
	}
}

// Stale reports whether the usage cycle that started at resetAt has
// elapsed as of now.
// This is a PURE function.
func Stale(resetAt, now time.Time) bool {
	return now.Sub(resetAt) >= ResetWindow
}

// CheckResult is the outcome of an entitlement check (value type).
// Used and Limit are present even on denial so the caller can render
// progress; Message is a human-readable prompt, never control flow.
type CheckResult struct {
	Allowed bool
	Used    int64
	Limit   int64
	Plan    plan.Code
	Reason  Reason
	Message string
}

// Check decides allow/deny for a single counter against its cap.
// Unlimited (-1) caps always allow.
// This is a PURE function.
func Check(used, limit int64, code plan.Code, tool plan.ToolType) CheckResult {
	result := CheckResult{
		Used:  used,
		Limit: limit,
		Plan:  code,
	}

	if limit == plan.Unlimited {
		result.Allowed = true
		return result
	}

	result.Allowed = used < limit
	if !result.Allowed {
		result.Reason = ReasonQuotaExceeded
		if limit == 0 && code == "" {
			// The tool is withheld from signed-out callers entirely, not
			// rationed; the distinction drives the client's sign-in prompt.
			result.Reason = ReasonSignInRequired
		}
		result.Message = denialMessage(code, tool, limit)
	}
	return result
}

// Deny builds a denial result for failures that never reach a counter
// comparison (missing identity, store outage, anonymous community).
// This is a PURE function.
func Deny(reason Reason, message string) CheckResult {
	return CheckResult{Allowed: false, Reason: reason, Message: message}
}

func denialMessage(code plan.Code, tool plan.ToolType, limit int64) string {
	if limit == 0 && code == "" {
		return "Sign in to use this feature."
	}
	if code == "" {
		return fmt.Sprintf("You've used all %d free %s runs. Create an account for more.", limit, tool)
	}
	return fmt.Sprintf("You've reached your %s limit of %d this cycle. Upgrade for more, or wait for your usage to reset.", tool, limit)
}
