// Package qrgen renders ticket codes as QR images for printed door lists
// and offline scanning.
package qrgen

import (
	"errors"

	"github.com/skip2/go-qrcode"
)

type Generator struct {
	size int
}

func NewGenerator(size int) *Generator {
	if size <= 0 {
		size = 256
	}
	return &Generator{size: size}
}

// PNG encodes the ticket code as a QR PNG.
func (g *Generator) PNG(ticketCode string) ([]byte, error) {
	if ticketCode == "" {
		return nil, errors.New("empty ticket code")
	}
	return qrcode.Encode(ticketCode, qrcode.Medium, g.size)
}
