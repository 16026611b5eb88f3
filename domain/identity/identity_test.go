package identity

import "testing"

func TestKind(t *testing.T) {
	tests := []struct {
		name string
		id   Identity
		want Kind
	}{
		{"account with id and email", Account("acc-1", "a@example.com"), KindAccount},
		{"account with email only", Identity{Email: "a@example.com"}, KindAccount},
		{"device", Device("fp-abc"), KindDevice},
		{"empty", Identity{}, KindNone},
		{"account wins over fingerprint", Identity{AccountID: "acc-1", Fingerprint: "fp"}, KindAccount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.id.Kind(); got != tt.want {
				t.Errorf("Kind() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsAnonymous(t *testing.T) {
	if Account("acc-1", "").IsAnonymous() {
		t.Error("account identity reported anonymous")
	}
	if !Device("fp").IsAnonymous() {
		t.Error("device identity not reported anonymous")
	}
	if (Identity{}).IsAnonymous() {
		t.Error("empty identity reported anonymous")
	}
}
