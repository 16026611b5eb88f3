package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/buildsage/buildsage/domain/identity"
	"github.com/buildsage/buildsage/domain/plan"
	"github.com/buildsage/buildsage/domain/promo"
	"github.com/buildsage/buildsage/domain/quota"
	"github.com/buildsage/buildsage/ports"
)

// Identity headers. The upstream gateway authenticates the caller and
// forwards whichever of these it established; this service trusts them.
const (
	headerAccountID    = "X-Account-ID"
	headerAccountEmail = "X-Account-Email"
	headerFingerprint  = "X-Device-Fingerprint"
)

func identityFromRequest(r *http.Request) identity.Identity {
	accountID := r.Header.Get(headerAccountID)
	email := r.Header.Get(headerAccountEmail)
	if accountID != "" || email != "" {
		return identity.Account(accountID, email)
	}
	return identity.Device(r.Header.Get(headerFingerprint))
}

type toolRequest struct {
	Tool string `json:"tool"`
}

// QuotaCheckResponse is the body returned by the quota check endpoint.
type QuotaCheckResponse struct {
	Allowed bool   `json:"allowed"`
	Used    int64  `json:"used"`
	Limit   int64  `json:"limit"`
	Plan    string `json:"plan,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
}

// QuotaCheck evaluates whether the caller may run the given tool now.
// It never decrements; callers record usage separately after the tool runs.
func (h *Handler) QuotaCheck(w http.ResponseWriter, r *http.Request) {
	var req toolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "request body must be JSON")
		return
	}
	tool, ok := plan.ParseTool(req.Tool)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown_tool", "unknown tool "+req.Tool)
		return
	}

	result := h.entitlements.Evaluate(r.Context(), identityFromRequest(r), tool)

	status := http.StatusOK
	if !result.Allowed && result.Reason == quota.ReasonIdentityMissing {
		status = http.StatusUnauthorized
	}
	writeJSON(w, status, QuotaCheckResponse{
		Allowed: result.Allowed,
		Used:    result.Used,
		Limit:   result.Limit,
		Plan:    string(result.Plan),
		Reason:  string(result.Reason),
		Message: result.Message,
	})
}

// UsageRecord records one completed invocation of a tool. Recording is
// best effort; the endpoint acknowledges even when the store write fails
// so a flaky store never turns a finished tool run into a caller error.
func (h *Handler) UsageRecord(w http.ResponseWriter, r *http.Request) {
	var req toolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "request body must be JSON")
		return
	}
	tool, ok := plan.ParseTool(req.Tool)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown_tool", "unknown tool "+req.Tool)
		return
	}

	id := identityFromRequest(r)
	if id.Kind() == identity.KindNone {
		writeError(w, http.StatusUnauthorized, "identity_missing", "no account or device identity supplied")
		return
	}

	h.entitlements.RecordUsage(r.Context(), id, tool)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "recorded"})
}

// AccountResponse is the account shape returned by the API.
type AccountResponse struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Plan         string `json:"plan"`
	RenewsAt     string `json:"renewsAt,omitempty"`
	UsageResetAt string `json:"usageResetAt"`
}

func accountResponse(a ports.Account) AccountResponse {
	resp := AccountResponse{
		ID:           a.ID,
		Email:        a.Email,
		Plan:         string(a.Plan),
		UsageResetAt: a.Usage.ResetAt.Format(time.RFC3339),
	}
	if a.PlanRenewsAt != nil {
		resp.RenewsAt = a.PlanRenewsAt.Format(time.RFC3339)
	}
	return resp
}

// AccountsEnsure provisions the account record for an authenticated
// caller if it does not exist yet, and returns it either way.
func (h *Handler) AccountsEnsure(w http.ResponseWriter, r *http.Request) {
	id := identityFromRequest(r)
	if id.Kind() != identity.KindAccount {
		writeError(w, http.StatusUnauthorized, "identity_missing", "account identity required")
		return
	}

	acct, created, err := h.signup.EnsureAccount(r.Context(), id.AccountID, id.Email)
	if errors.Is(err, ports.ErrNotFound) {
		writeError(w, http.StatusNotFound, "account_not_found", "no account with that email")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("account_id", id.AccountID).Msg("ensure account")
		writeError(w, http.StatusInternalServerError, "store_unavailable", "could not provision account")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, struct {
		Account AccountResponse `json:"account"`
		Created bool            `json:"created"`
	}{accountResponse(acct), created})
}

type redeemRequest struct {
	Code string `json:"code"`
}

// PromotionsRedeem redeems a promotion code for the calling account.
func (h *Handler) PromotionsRedeem(w http.ResponseWriter, r *http.Request) {
	id := identityFromRequest(r)
	if id.Kind() != identity.KindAccount || id.AccountID == "" {
		writeError(w, http.StatusUnauthorized, "identity_missing", "sign in to redeem a promotion")
		return
	}

	var req redeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		writeError(w, http.StatusBadRequest, "invalid_body", "a promotion code is required")
		return
	}

	result, err := h.promos.Redeem(r.Context(), req.Code, id.AccountID)
	if errors.Is(err, ports.ErrNotFound) {
		writeError(w, http.StatusNotFound, "account_not_found", "no such account")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("account_id", id.AccountID).Msg("redeem promotion")
		writeError(w, http.StatusInternalServerError, "store_unavailable", "could not redeem promotion")
		return
	}

	if result.Fail != promo.FailNone {
		status, code, msg := redeemFailure(result.Fail)
		writeError(w, status, code, msg)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Status string `json:"status"`
		Plan   string `json:"plan"`
	}{"redeemed", string(result.Granted)})
}

func redeemFailure(f promo.FailReason) (int, string, string) {
	switch f {
	case promo.FailNotFound:
		return http.StatusNotFound, "promotion_not_found", "That code does not exist."
	case promo.FailInactive:
		return http.StatusGone, "promotion_inactive", "That promotion is no longer active."
	case promo.FailExpired:
		return http.StatusGone, "promotion_expired", "That promotion has expired."
	case promo.FailLimitReached:
		return http.StatusConflict, "promotion_exhausted", "That promotion has reached its redemption limit."
	case promo.FailAlreadyRedeemed:
		return http.StatusConflict, "already_redeemed", "You have already redeemed this code."
	default:
		return http.StatusUnprocessableEntity, "redeem_failed", "The code could not be redeemed."
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
