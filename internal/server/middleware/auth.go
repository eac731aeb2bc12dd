package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/BunsDev/shareconomy-nft-factory/internal/crypto"
)

// maxAdminBody bounds how much request body the signature check will buffer.
const maxAdminBody = 1 << 20

// AdminAuth returns middleware that authenticates administrative requests
// with the shared-secret HMAC scheme. The signature covers
// timestamp+method+path+body; the admin address travels in a header and must
// match the configured registry owner. The request body is buffered and
// restored so downstream handlers can decode it normally.
func AdminAuth(auth *crypto.HMACAuth, owner common.Address, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			addr := r.Header.Get(crypto.HeaderAdminAddress)
			ts := r.Header.Get(crypto.HeaderAdminTimestamp)
			sig := r.Header.Get(crypto.HeaderAdminSignature)

			if addr == "" || ts == "" || sig == "" {
				writeUnauthorized(w, "missing admin authentication headers")
				return
			}
			if !common.IsHexAddress(addr) || common.HexToAddress(addr) != owner {
				writeUnauthorized(w, "unknown admin address")
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, maxAdminBody))
			if err != nil {
				writeUnauthorized(w, "unreadable request body")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			if err := auth.Verify(r.Method, r.URL.Path, string(body), ts, sig, time.Now()); err != nil {
				logger.WarnContext(r.Context(), "admin auth rejected",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				writeUnauthorized(w, "invalid admin signature")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// writeUnauthorized sends a 401 response with a JSON error body.
func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + msg + `"}`))
}
