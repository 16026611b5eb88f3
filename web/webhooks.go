package web

import (
	"errors"
	"io"
	"net/http"

	"github.com/buildsage/buildsage/adapters/payment"
)

const maxWebhookBody = 1 << 20

// PaymentWebhook receives billing events from the payment provider.
// Signature failures return 401 so the provider retries; application
// errors after a verified event return 200 to stop redelivery, since
// the event is already claimed in the processed log.
func (h *Handler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.logger.Error().Err(err).Msg("read webhook body")
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	ev, err := h.webhooks.Parse(body, r.Header.Get("Stripe-Signature"))
	if errors.Is(err, payment.ErrIgnoredEvent) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ignored"))
		return
	}
	if err != nil {
		h.logger.Warn().Err(err).Msg("invalid webhook")
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	if err := h.billing.ApplyEvent(r.Context(), ev); err != nil {
		h.logger.Error().Err(err).
			Str("event_id", ev.ID).
			Str("event_type", string(ev.Type)).
			Msg("apply billing event")
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
