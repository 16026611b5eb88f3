// Package plan provides plan tiers, tool types, and limit lookups.
// Everything here is a pure value type or a pure function.
package plan

// Code identifies a subscription tier.
type Code string

const (
	CodeFree  Code = "FREE"
	CodePlus  Code = "PLUS"
	CodePro   Code = "PRO"
	CodeUltra Code = "ULTRA"
	CodeAdmin Code = "ADMIN"
)

// Unlimited marks a tool as uncapped for a tier.
const Unlimited int64 = -1

// ToolType identifies one of the metered tools.
type ToolType string

const (
	ToolPerformance ToolType = "performance"
	ToolBuild       ToolType = "build"
	ToolImage       ToolType = "image"
	ToolCommunity   ToolType = "community"
)

// Tools lists all metered tool types in canonical order.
var Tools = []ToolType{ToolPerformance, ToolBuild, ToolImage, ToolCommunity}

// ParseTool converts a wire string into a ToolType.
// This is a PURE function.
func ParseTool(s string) (ToolType, bool) {
	switch ToolType(s) {
	case ToolPerformance, ToolBuild, ToolImage, ToolCommunity:
		return ToolType(s), true
	}
	return "", false
}

// ParseCode converts a wire string into a plan Code.
// This is a PURE function.
func ParseCode(s string) (Code, bool) {
	switch Code(s) {
	case CodeFree, CodePlus, CodePro, CodeUltra, CodeAdmin:
		return Code(s), true
	}
	return "", false
}

// Limits holds the per-tool caps for one tier (value type).
// Unlimited (-1) means the tool is uncapped.
type Limits struct {
	Performance int64
	Build       int64
	Image       int64
	Community   int64
}

// For returns the cap for a single tool.
// This is a PURE function.
func (l Limits) For(tool ToolType) int64 {
	switch tool {
	case ToolPerformance:
		return l.Performance
	case ToolBuild:
		return l.Build
	case ToolImage:
		return l.Image
	case ToolCommunity:
		return l.Community
	default:
		return 0
	}
}

// LimitTable maps plan codes to their per-tool limits, plus a separate
// (deliberately tighter) table for anonymous devices.
type LimitTable struct {
	Plans     map[Code]Limits
	Anonymous Limits
}

// DefaultTable returns the built-in limit table. Config may override it.
func DefaultTable() LimitTable {
	return LimitTable{
		Plans: map[Code]Limits{
			CodeFree:  {Performance: 3, Build: 3, Image: 5, Community: 20},
			CodePlus:  {Performance: 25, Build: 25, Image: 50, Community: Unlimited},
			CodePro:   {Performance: 100, Build: 100, Image: 200, Community: Unlimited},
			CodeUltra: {Performance: Unlimited, Build: Unlimited, Image: 500, Community: Unlimited},
			CodeAdmin: {Performance: Unlimited, Build: Unlimited, Image: Unlimited, Community: Unlimited},
		},
		Anonymous: Limits{Performance: 1, Build: 1, Image: 3, Community: 0},
	}
}

// LimitFor resolves the cap for a plan and tool. Unknown plan codes fall
// back to FREE so a corrupt plan field never grants elevated access.
// This is a PURE function.
func (t LimitTable) LimitFor(code Code, tool ToolType) int64 {
	limits, ok := t.Plans[code]
	if !ok {
		limits = t.Plans[CodeFree]
	}
	return limits.For(tool)
}

// AnonymousLimitFor resolves the cap for an anonymous device.
// This is a PURE function.
func (t LimitTable) AnonymousLimitFor(tool ToolType) int64 {
	return t.Anonymous.For(tool)
}
