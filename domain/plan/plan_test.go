// Package plan provides plan tiers, tool types, and limit lookups.
// Tests for parsing and limit resolution.
package plan

import "testing"

func TestParseTool_Valid(t *testing.T) {
	for _, tool := range Tools {
		got, ok := ParseTool(string(tool))
		if !ok {
			t.Errorf("ParseTool(%q) not ok", tool)
		}
		if got != tool {
			t.Errorf("ParseTool(%q) = %q", tool, got)
		}
	}
}

func TestParseTool_Invalid(t *testing.T) {
	for _, s := range []string{"", "perf", "IMAGE", "video"} {
		if _, ok := ParseTool(s); ok {
			t.Errorf("ParseTool(%q) unexpectedly ok", s)
		}
	}
}

func TestParseCode_Valid(t *testing.T) {
	for _, code := range []Code{CodeFree, CodePlus, CodePro, CodeUltra, CodeAdmin} {
		got, ok := ParseCode(string(code))
		if !ok || got != code {
			t.Errorf("ParseCode(%q) = %q, %v", code, got, ok)
		}
	}
}

func TestParseCode_Invalid(t *testing.T) {
	if _, ok := ParseCode("free"); ok {
		t.Error("lowercase plan code should not parse")
	}
	if _, ok := ParseCode(""); ok {
		t.Error("empty plan code should not parse")
	}
}

func TestLimits_For(t *testing.T) {
	l := Limits{Performance: 1, Build: 2, Image: 3, Community: 4}

	tests := []struct {
		tool ToolType
		want int64
	}{
		{ToolPerformance, 1},
		{ToolBuild, 2},
		{ToolImage, 3},
		{ToolCommunity, 4},
		{ToolType("bogus"), 0},
	}
	for _, tt := range tests {
		if got := l.For(tt.tool); got != tt.want {
			t.Errorf("For(%q) = %d, want %d", tt.tool, got, tt.want)
		}
	}
}

func TestLimitFor_UnknownPlanFallsBackToFree(t *testing.T) {
	table := DefaultTable()

	got := table.LimitFor(Code("LEGACY"), ToolPerformance)
	want := table.Plans[CodeFree].Performance

	if got != want {
		t.Errorf("unknown plan limit = %d, want FREE limit %d", got, want)
	}
}

func TestLimitFor_AdminUnlimited(t *testing.T) {
	table := DefaultTable()
	for _, tool := range Tools {
		if got := table.LimitFor(CodeAdmin, tool); got != Unlimited {
			t.Errorf("ADMIN limit for %q = %d, want unlimited", tool, got)
		}
	}
}

func TestAnonymousLimits(t *testing.T) {
	table := DefaultTable()

	tests := []struct {
		tool ToolType
		want int64
	}{
		{ToolPerformance, 1},
		{ToolBuild, 1},
		{ToolImage, 3},
		{ToolCommunity, 0},
	}
	for _, tt := range tests {
		if got := table.AnonymousLimitFor(tt.tool); got != tt.want {
			t.Errorf("anonymous limit for %q = %d, want %d", tt.tool, got, tt.want)
		}
	}
}
