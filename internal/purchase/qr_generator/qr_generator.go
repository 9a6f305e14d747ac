package qr

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"ms-boxoffice/internal/models"

	"github.com/skip2/go-qrcode"
)

// Pass is the content scanned at the venue door.
type Pass struct {
	PurchaseID string    `json:"purchase_id"`
	UserID     string    `json:"user_id"`
	TicketID   string    `json:"ticket_id"`
	EventID    string    `json:"event_id"`
	TicketType string    `json:"ticket_type"`
	Quantity   int       `json:"quantity"`
	IssuedAt   time.Time `json:"issued_at"`
}

type QRGenerator struct {
	secret []byte
	size   int
}

func NewQRGenerator(secret string) *QRGenerator {
	hashed := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	return &QRGenerator{secret: hashed[:], size: 256}
}

// GeneratePassQR returns a PNG whose payload is the sealed pass for p.
func (q *QRGenerator) GeneratePassQR(p *models.Purchase) ([]byte, error) {
	token, err := q.Seal(Pass{
		PurchaseID: p.ID,
		UserID:     p.UserID,
		TicketID:   p.TicketID,
		EventID:    p.EventID,
		TicketType: p.TicketType,
		Quantity:   p.Quantity,
		IssuedAt:   time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(token, qrcode.Medium, q.size)
}

// Seal encrypts the pass with AES-GCM and returns it base64url encoded.
func (q *QRGenerator) Seal(pass Pass) (string, error) {
	data, err := json.Marshal(pass)
	if err != nil {
		return "", err
	}

	gcm, err := q.aead()
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := gcm.Seal(nonce, nonce, data, nil)
	return base64.URLEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal, rejecting tampered or foreign tokens.
func (q *QRGenerator) Open(token string) (*Pass, error) {
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("decode pass: %w", err)
	}

	gcm, err := q.aead()
	if err != nil {
		return nil, err
	}
	if len(raw) < gcm.NonceSize() {
		return nil, errors.New("pass too short")
	}

	nonce, ciphertext := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	data, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("open pass: %w", err)
	}

	var pass Pass
	if err := json.Unmarshal(data, &pass); err != nil {
		return nil, fmt.Errorf("decode pass: %w", err)
	}
	return &pass, nil
}

func (q *QRGenerator) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(q.secret)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
