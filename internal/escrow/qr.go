package escrow

import (
	"fmt"

	"ms-resale/internal/models"

	"github.com/skip2/go-qrcode"
)

const qrSize = 256

// PaymentReference is the text a buyer's banking app reads from the QR code.
func PaymentReference(t *models.Transaction, bankName, last4 string) string {
	ref := fmt.Sprintf("RESALE|ref=%s|amount=%s|currency=GEL", t.ID, t.Amount.StringFixed(2))
	if bankName != "" {
		ref += "|bank=" + bankName
	}
	if last4 != "" {
		ref += "|acct=****" + last4
	}
	return ref
}

// EncodeQR renders content as a PNG QR code.
func EncodeQR(content string) ([]byte, error) {
	return qrcode.Encode(content, qrcode.Medium, qrSize)
}
