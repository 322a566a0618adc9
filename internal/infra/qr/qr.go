package qr

import (
	"encoding/base64"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

const imageSize = 256

// DataURL encodes a pairing code as a PNG data URL the backend can put
// straight into an <img> tag.
func DataURL(code string) (string, error) {
	if code == "" {
		return "", fmt.Errorf("qr: empty code")
	}

	png, err := qrcode.Encode(code, qrcode.Medium, imageSize)
	if err != nil {
		return "", fmt.Errorf("qr: encode: %w", err)
	}

	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
