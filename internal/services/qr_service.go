package services

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"

	"github.com/skip2/go-qrcode"
)

// QRService renders checkout links as QR codes for counter hand-off.
type QRService struct {
	size int
}

func NewQRService() *QRService {
	return &QRService{size: 256}
}

// Render returns the PNG of a QR code for url, base64 encoded.
func (s *QRService) Render(url string) (string, error) {
	if url == "" {
		return "", fmt.Errorf("%w: empty redirect url", ErrValidation)
	}

	qr, err := qrcode.New(url, qrcode.Medium)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(s.size)); err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
