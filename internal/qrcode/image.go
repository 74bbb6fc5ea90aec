package qrcode

import (
	"encoding/base64"
	"fmt"

	qr "github.com/skip2/go-qrcode"
)

// DefaultSize is the rendered edge length in pixels.
const DefaultSize = 300

// PNG renders text as a black-on-white QR code image.
func PNG(text string, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultSize
	}
	code, err := qr.New(text, qr.Medium)
	if err != nil {
		return nil, fmt.Errorf("build qr code: %w", err)
	}
	png, err := code.PNG(size)
	if err != nil {
		return nil, fmt.Errorf("render qr png: %w", err)
	}
	return png, nil
}

// DataURL renders text as a base64 PNG data URL suitable for an <img> src.
func DataURL(text string, size int) (string, error) {
	png, err := PNG(text, size)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
