package web

import (
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v76/webhook"
)

func signPayload(payload, secret string, at time.Time) string {
	sig := webhook.ComputeSignature(at, []byte(payload), secret)
	return fmt.Sprintf("t=%d,v1=%x", at.Unix(), sig)
}

func checkoutPayload(eventID, accountID, planCode string) string {
	return fmt.Sprintf(`{
		"id": %q,
		"type": "checkout.session.completed",
		"data": {
			"object": {
				"customer": "cus_42",
				"metadata": {"account_id": %q, "plan": %q}
			}
		}
	}`, eventID, accountID, planCode)
}

func TestPaymentWebhook_CheckoutUpgradesAccount(t *testing.T) {
	f := newAPIFixture(t)
	headers := accountHeaders("acc-1", "a@example.com")
	f.do(t, "POST", "/v1/accounts/ensure", `{}`, headers)

	payload := checkoutPayload("evt_1", "acc-1", "PRO")
	req, _ := http.NewRequest("POST", f.server.URL+"/webhooks/payment", strings.NewReader(payload))
	req.Header.Set("Stripe-Signature", signPayload(payload, "whsec_test", time.Now()))

	resp, err := f.server.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	_, body := f.do(t, "POST", "/v1/quota/check", `{"tool":"performance"}`, headers)
	if body["plan"] != "PRO" {
		t.Errorf("plan = %v after checkout, want PRO", body["plan"])
	}
	if body["limit"].(float64) != 100 {
		t.Errorf("limit = %v, want 100", body["limit"])
	}
}

func TestPaymentWebhook_BadSignatureRejected(t *testing.T) {
	f := newAPIFixture(t)

	payload := checkoutPayload("evt_1", "acc-1", "PRO")
	req, _ := http.NewRequest("POST", f.server.URL+"/webhooks/payment", strings.NewReader(payload))
	req.Header.Set("Stripe-Signature", "t=0,v1=deadbeef")

	resp, err := f.server.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestPaymentWebhook_IgnoredEventTypeAcked(t *testing.T) {
	f := newAPIFixture(t)

	payload := `{"id": "evt_x", "type": "charge.refunded", "data": {"object": {}}}`
	req, _ := http.NewRequest("POST", f.server.URL+"/webhooks/payment", strings.NewReader(payload))
	req.Header.Set("Stripe-Signature", signPayload(payload, "whsec_test", time.Now()))

	resp, err := f.server.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, ignored events must be acked", resp.StatusCode)
	}
}
