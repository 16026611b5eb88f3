package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/buildsage/buildsage/adapters/clock"
	"github.com/buildsage/buildsage/adapters/idgen"
	"github.com/buildsage/buildsage/adapters/memory"
	"github.com/buildsage/buildsage/adapters/metrics"
	"github.com/buildsage/buildsage/domain/plan"
	"github.com/buildsage/buildsage/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

func newSignupFixture(t *testing.T, bootstrapCode string) (*SignupService, *memory.AccountStore, *memory.PromotionStore, *PromotionService) {
	t.Helper()

	accounts := memory.NewAccountStore()
	promos := memory.NewPromotionStore(accounts)
	fake := clock.NewFake(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	logger := zerolog.Nop()
	collector := metrics.New(prometheus.NewRegistry())

	promoSvc := NewPromotionService(promos, idgen.NewSequential("red-"), fake, collector, logger)
	signup := NewSignupService(accounts, promoSvc, bootstrapCode, fake, logger)
	return signup, accounts, promos, promoSvc
}

func TestEnsureAccount_CreatesWithDefaults(t *testing.T) {
	signup, accounts, _, _ := newSignupFixture(t, "")
	ctx := context.Background()

	acct, created, err := signup.EnsureAccount(ctx, "acc-1", "a@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if !created {
		t.Error("first contact should create")
	}
	if acct.Plan != plan.CodeFree {
		t.Errorf("plan = %q, want FREE", acct.Plan)
	}
	if acct.Usage.ResetAt.IsZero() {
		t.Error("fresh account needs a cycle start date")
	}

	// Second contact is a plain read.
	_, created, err = signup.EnsureAccount(ctx, "acc-1", "a@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Error("existing account reported as created")
	}

	if _, err := accounts.Get(ctx, "acc-1"); err != nil {
		t.Errorf("record missing after ensure: %v", err)
	}
}

func TestEnsureAccount_BootstrapPromotionAutoRedeemed(t *testing.T) {
	signup, accounts, promos, promoSvc := newSignupFixture(t, "FIRST50")
	ctx := context.Background()

	err := promoSvc.EnsureBootstrap(ctx, BootstrapPromotion{Code: "FIRST50", Grants: plan.CodePlus, MaxUses: 50})
	if err != nil {
		t.Fatal(err)
	}

	acct, created, err := signup.EnsureAccount(ctx, "acc-1", "a@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if !created {
		t.Fatal("expected creation")
	}
	if acct.Plan != plan.CodePlus {
		t.Errorf("new account plan = %q, want promotional PLUS", acct.Plan)
	}
	if acct.PlanRenewsAt == nil || acct.PlanRenewsAt.Year() < 2100 {
		t.Errorf("promotional renewal should be far future, got %v", acct.PlanRenewsAt)
	}

	p, _ := promos.GetByCode(ctx, "FIRST50")
	if p.UsedCount != 1 {
		t.Errorf("usedCount = %d, want 1", p.UsedCount)
	}

	// A returning contact never re-redeems.
	_, _, err = signup.EnsureAccount(ctx, "acc-1", "a@example.com")
	if err != nil {
		t.Fatal(err)
	}
	p, _ = promos.GetByCode(ctx, "FIRST50")
	if p.UsedCount != 1 {
		t.Errorf("usedCount after revisit = %d, want 1", p.UsedCount)
	}

	stored, err := accounts.Get(ctx, "acc-1")
	if err != nil {
		t.Fatal(err)
	}
	if stored.Plan != plan.CodePlus {
		t.Errorf("stored plan = %q", stored.Plan)
	}
}

func TestEnsureAccount_ExhaustedBootstrapIsNonFatal(t *testing.T) {
	signup, _, _, promoSvc := newSignupFixture(t, "FIRST50")
	ctx := context.Background()

	if err := promoSvc.EnsureBootstrap(ctx, BootstrapPromotion{Code: "FIRST50", Grants: plan.CodePlus, MaxUses: 1}); err != nil {
		t.Fatal(err)
	}

	first, _, err := signup.EnsureAccount(ctx, "acc-1", "a@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if first.Plan != plan.CodePlus {
		t.Fatalf("first account plan = %q", first.Plan)
	}

	second, created, err := signup.EnsureAccount(ctx, "acc-2", "b@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if !created {
		t.Fatal("second account should still be created")
	}
	if second.Plan != plan.CodeFree {
		t.Errorf("second account plan = %q, want FREE after exhaustion", second.Plan)
	}
}

func TestEnsureAccount_EmailOnlyLookupDoesNotCreate(t *testing.T) {
	signup, _, _, _ := newSignupFixture(t, "")

	_, created, err := signup.EnsureAccount(context.Background(), "", "nobody@example.com")
	if !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if created {
		t.Error("email-only contact must not create a record")
	}
}
