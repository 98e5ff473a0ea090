package chain

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"
)

// Providers signal an oversized or throttled eth_getLogs request with a mix
// of JSON-RPC codes, HTTP 429, and free-form messages. IsRateLimited folds
// them into one answer so callers can shrink the range instead of failing.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}

	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusTooManyRequests {
		return true
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		switch rpcErr.ErrorCode() {
		case -32005, -32016, -32614:
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "limit") ||
		strings.Contains(msg, "too many requests") ||
		strings.Contains(msg, "block range")
}
