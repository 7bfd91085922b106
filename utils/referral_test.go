package utils

import (
	"bytes"
	"image/png"
	"regexp"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateReferralCode(t *testing.T) {
	pattern := regexp.MustCompile(`^[A-Z0-9]{2,4}-[A-Z2-7]{6}$`)

	tests := []struct {
		label  string
		prefix string
	}{
		{"yoga studio", "YOGA"},
		{"Ab", "AB"},
		{"x", "REF"},
		{"", "REF"},
		{"été 42", "T42"},
	}
	for _, tt := range tests {
		code, err := GenerateReferralCode(tt.label)
		require.NoError(t, err)
		assert.Regexp(t, pattern, code)
		assert.True(t, strings.HasPrefix(code, tt.prefix+"-"), code)
	}

	a, _ := GenerateReferralCode("yoga")
	b, _ := GenerateReferralCode("yoga")
	assert.NotEqual(t, a, b)
}

func TestReferralLink(t *testing.T) {
	assert.Equal(t, "https://app.example.com/r/YOGA-ABC234", ReferralLink("https://app.example.com/", "YOGA-ABC234"))
}

func TestReferralQRCode(t *testing.T) {
	raw, err := ReferralQRCodePNG("https://app.example.com/r/YOGA-ABC234", QRCodeSize)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, QRCodeSize, img.Bounds().Dx())

	url, err := ReferralQRCodeDataURL("https://app.example.com/r/YOGA-ABC234", QRCodeSize)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "data:image/png;base64,"))
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "$12.50", FormatMoney(decimal.RequireFromString("12.5"), "USD"))
	assert.Equal(t, "-$3.00", FormatMoney(decimal.NewFromInt(-3), ""))
	assert.Equal(t, "9.99 CHF", FormatMoney(decimal.RequireFromString("9.99"), "chf"))
}

func TestFormatRate(t *testing.T) {
	assert.Equal(t, "15%", FormatRate(decimal.RequireFromString("0.15")))
	assert.Equal(t, "12.5%", FormatRate(decimal.RequireFromString("0.125")))
}
