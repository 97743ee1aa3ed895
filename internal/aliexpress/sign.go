package aliexpress

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// sign computes the HMAC-SHA256 signature the affiliate API expects: the
// parameters sorted by key, joined as k=v with '&', digested with the app
// secret and hex-encoded in upper case.
func sign(secret string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strings.Join(pairs, "&")))
	return strings.ToUpper(hex.EncodeToString(mac.Sum(nil)))
}
