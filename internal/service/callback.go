package service

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"matatu/internal/domain"
)

// CallbackRecord is the subset of a provider callback the reconciler uses.
type CallbackRecord struct {
	ProviderRef string
	SessionID   string
	Reference   string
	Status      string
	Receipt     string
}

// Provider payloads vary in field names; each list is searched in order.
var (
	providerRefFields = []string{"providerReference", "providerRefId", "transactionId", "providerReferenceId", "transactionReference"}
	sessionFields     = []string{"checkoutRequestId", "requestId", "checkoutRequest"}
	referenceFields   = []string{"reference", "referenceId"}
	statusFields      = []string{"status", "transactionStatus", "resultCode"}
	receiptFields     = []string{"receiptNumber", "mpesaReceiptNumber"}
)

// ExtractCallback pulls identifiers and status out of a raw callback body.
// It returns false if raw is not a JSON object. metadata may be an object
// or a JSON-encoded string.
func ExtractCallback(raw []byte) (*CallbackRecord, bool) {
	body, ok := decodeObject(raw)
	if !ok {
		return nil, false
	}

	var meta map[string]any
	switch m := body["metadata"].(type) {
	case map[string]any:
		meta = m
	case string:
		meta, _ = decodeObject([]byte(m))
	}

	rec := &CallbackRecord{
		ProviderRef: firstField(body, providerRefFields),
		SessionID:   firstField(body, sessionFields),
		Reference:   firstField(meta, referenceFields),
		Status:      firstField(body, statusFields),
		Receipt:     firstField(body, receiptFields),
	}
	if rec.Reference == "" {
		rec.Reference = firstField(body, []string{"reference"})
	}

	return rec, true
}

func decodeObject(raw []byte) (map[string]any, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var out map[string]any
	if err := dec.Decode(&out); err != nil || out == nil {
		return nil, false
	}
	return out, true
}

// firstField returns the first non-empty string or number among keys.
func firstField(obj map[string]any, keys []string) string {
	for _, k := range keys {
		switch v := obj[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case json.Number:
			return v.String()
		}
	}
	return ""
}

// NormalizeCallbackStatus maps a provider status string onto a payment
// status. Unrecognized strings stay pending.
func NormalizeCallbackStatus(raw string) domain.PaymentStatus {
	s := strings.ToLower(strings.TrimSpace(raw))

	switch {
	case s == "":
		return domain.PaymentStatusPending
	case strings.Contains(s, "unsuccess"),
		strings.Contains(s, "fail"),
		strings.Contains(s, "error"),
		strings.Contains(s, "cancel"):
		return domain.PaymentStatusFailed
	case strings.Contains(s, "success"), s == "0":
		return domain.PaymentStatusReceived
	}

	return domain.PaymentStatusPending
}

const referencePrefix = "trip-"

// PaymentReference builds the reference sent with a charge,
// trip-<tripID>-<unixMillis>.
func PaymentReference(tripID string, unixMillis int64) string {
	return referencePrefix + tripID + "-" + strconv.FormatInt(unixMillis, 10)
}

// TripIDFromReference recovers the trip id from a payment reference. The
// trip id may itself contain dashes; the last segment is the timestamp.
func TripIDFromReference(ref string) (string, bool) {
	if !strings.HasPrefix(ref, referencePrefix) {
		return "", false
	}
	rest := ref[len(referencePrefix):]

	i := strings.LastIndexByte(rest, '-')
	if i <= 0 || i == len(rest)-1 {
		return "", false
	}
	if _, err := strconv.ParseInt(rest[i+1:], 10, 64); err != nil {
		return "", false
	}

	return rest[:i], true
}
