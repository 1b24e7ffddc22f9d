package vcard

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/makiuchi-d/gozxing"
	zxqrcode "github.com/makiuchi-d/gozxing/qrcode"
	qrgen "github.com/skip2/go-qrcode"

	"github.com/majcheradam/BetterVCardTools/internal/config"
)

// QRCode renders serialized vCard text as a PNG QR image with the given
// pixel size. Size is clamped to the configured bounds; payloads past the
// QR capacity ceiling fail before encoding.
func QRCode(text string, size int) ([]byte, error) {
	if text == "" {
		return nil, fmt.Errorf("%s", config.ErrEmptyInput)
	}
	if len(text) > config.MaxQRPayloadSize {
		return nil, fmt.Errorf("%s (%d bytes)", config.ErrQRTooLarge, len(text))
	}
	if size < config.MinQRSize {
		size = config.MinQRSize
	}
	if size > config.MaxQRSize {
		size = config.MaxQRSize
	}

	qr, err := qrgen.New(text, qrgen.Medium)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrQREncode, err)
	}
	data, err := qr.PNG(size)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrQREncode, err)
	}
	return data, nil
}

// DecodeQR scans a QR PNG back into its vCard text.
func DecodeQR(data []byte) (string, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decode png: %w", err)
	}
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", fmt.Errorf("build bitmap: %w", err)
	}
	result, err := zxqrcode.NewQRCodeReader().Decode(bmp, nil)
	if err != nil {
		return "", fmt.Errorf("scan qr: %w", err)
	}
	return result.GetText(), nil
}
