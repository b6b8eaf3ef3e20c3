package report

import (
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// HashQR encodes a manifest digest as a PNG QR code. The digest may carry a
// "sha256:" prefix; only its hex digits are encoded.
func HashQR(hash string, size int) ([]byte, error) {
	digest := hexDigits(strings.TrimPrefix(strings.TrimSpace(hash), "sha256:"))
	if digest == "" {
		return nil, fmt.Errorf("manifest hash is empty")
	}
	if size <= 0 {
		size = 128
	}
	return qrcode.Encode("sha256:"+digest, qrcode.Medium, size)
}

func hexDigits(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
