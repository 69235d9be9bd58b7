package paymentlink

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"image/png"
	"net/url"
	"strconv"

	"github.com/skip2/go-qrcode"

	"github.com/ridebroker/backend/internal/models"
)

const qrSize = 256

// Generator builds checkout links for the commission payment and renders
// them as QR codes the rider can scan.
type Generator struct {
	base     *url.URL
	newNonce func() string
}

func NewGenerator(baseURL string) (*Generator, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse payment link base url: %w", err)
	}
	if base.Scheme != "https" && base.Scheme != "http" || base.Host == "" {
		return nil, fmt.Errorf("payment link base url must be absolute, got %q", baseURL)
	}
	return &Generator{base: base, newNonce: generateNonce}, nil
}

func (g *Generator) Generate(offerID string, amount int64) (models.PaymentLinkPayload, error) {
	if offerID == "" {
		return models.PaymentLinkPayload{}, fmt.Errorf("offer id is required")
	}
	if amount <= 0 {
		return models.PaymentLinkPayload{}, fmt.Errorf("amount must be positive")
	}

	link := *g.base
	q := link.Query()
	q.Set("offer", offerID)
	q.Set("amount", strconv.FormatInt(amount, 10))
	q.Set("ref", g.newNonce())
	link.RawQuery = q.Encode()

	image, err := renderQR(link.String())
	if err != nil {
		return models.PaymentLinkPayload{}, err
	}

	return models.PaymentLinkPayload{
		URL:     link.String(),
		Amount:  amount,
		QRImage: image,
	}, nil
}

func renderQR(content string) (string, error) {
	qr, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("encode qr: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(qrSize)); err != nil {
		return "", fmt.Errorf("render qr: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func generateNonce() string {
	b := make([]byte, 12)
	rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
