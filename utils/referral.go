package utils

import (
	"bytes"
	"crypto/rand"
	"encoding/base32"
	"encoding/base64"
	"fmt"
	"image/png"
	"net/url"
	"strings"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
)

const (
	defaultCodePrefix = "REF"
	codeRandomLength  = 6
	// QRCodeSize is the edge length in pixels of generated referral QR codes.
	QRCodeSize = 300
)

// GenerateReferralCode returns a code of the form {PREFIX}-{RANDOM}, where
// PREFIX is up to four letters taken from label and RANDOM is six base32
// characters, e.g. "YOGA-K3DQ7A".
func GenerateReferralCode(label string) (string, error) {
	randomBytes := make([]byte, 4)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", err
	}
	randomStr := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(randomBytes)
	randomStr = randomStr[:codeRandomLength]

	return codePrefix(label) + "-" + randomStr, nil
}

func codePrefix(label string) string {
	prefix := strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' {
			return r - 'a' + 'A'
		}
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return -1
	}, label)
	if len(prefix) < 2 {
		return defaultCodePrefix
	}
	if len(prefix) > 4 {
		prefix = prefix[:4]
	}
	return prefix
}

// ReferralLink is the public signup link carrying a referral code.
func ReferralLink(baseURL, code string) string {
	return strings.TrimRight(baseURL, "/") + "/r/" + url.PathEscape(code)
}

// ReferralQRCodePNG renders content as a square QR code PNG.
func ReferralQRCodePNG(content string, size int) ([]byte, error) {
	code, err := qr.Encode(content, qr.M, qr.Auto)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	code, err = barcode.Scale(code, size, size)
	if err != nil {
		return nil, fmt.Errorf("scale qr: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, code); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// ReferralQRCodeDataURL renders content as a base64 PNG data URL for
// embedding in JSON responses.
func ReferralQRCodeDataURL(content string, size int) (string, error) {
	raw, err := ReferralQRCodePNG(content, size)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(raw), nil
}
