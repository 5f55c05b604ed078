package handler

import (
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/verdantlabs/storefront/internal/domain/auth"
)

// requireAPIKey authenticates back-office requests via the api_key header.
// The raw key is HMAC-SHA256 hashed under the server pepper, looked up, and
// compared in constant time.
func (h *Handler) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawKey := r.Header.Get("api_key")
		if rawKey == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		hexHash := auth.HashKey(rawKey, string(h.pepper))
		info, err := h.apikeys.FindByHash(r.Context(), hexHash)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		// Constant-time comparison guards against timing side-channels even
		// though the lookup already succeeded: the stored hash could differ
		// from what we computed if the repository returns a stale row.
		computed, err := hex.DecodeString(hexHash)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		stored, err := hex.DecodeString(info.KeyHash)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if subtle.ConstantTimeCompare(computed, stored) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		next.ServeHTTP(w, r)
	})
}
