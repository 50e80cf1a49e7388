package utils

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// GenerateReference generates a disbursement reference with the specified prefix and length
func GenerateReference(prefix string, length int) (string, error) {
	if length < len(prefix) || length > 32 {
		return "", fmt.Errorf("invalid reference length: %d", length)
	}

	// Generate random digits
	digits := make([]byte, length-len(prefix))
	_, err := rand.Read(digits)
	if err != nil {
		return "", fmt.Errorf("failed to generate random digits: %w", err)
	}

	var builder strings.Builder
	builder.WriteString(prefix)
	for _, b := range digits {
		digit := b%10 + '0' // Convert to ASCII digit
		builder.WriteByte(digit)
	}

	return builder.String(), nil
}

// SignDisbursement generates an HMAC over a disbursement's identifying fields
func SignDisbursement(reference, recipient string, amount uint64, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	data := fmt.Sprintf("%s|%s|%d", reference, recipient, amount)
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}

// SignReceipt generates an HMAC over a repayment receipt
func SignReceipt(loanID int64, borrower string, paid, refund uint64, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	data := fmt.Sprintf("%d|%s|%d|%d", loanID, borrower, paid, refund)
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}
