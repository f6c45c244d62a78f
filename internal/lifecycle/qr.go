package lifecycle

import (
	"encoding/base64"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// RenderFunc turns a pairing code into a displayable image.
type RenderFunc func(code string) (string, error)

// RenderPNG encodes code as a 256px PNG data URL.
func RenderPNG(code string) (string, error) {
	png, err := qrcode.Encode(code, qrcode.Medium, 256)
	if err != nil {
		return "", fmt.Errorf("encode qr: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
