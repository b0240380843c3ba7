package auth

import (
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// HashPIN hashes a plaintext PIN for storage.
func HashPIN(pin string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("HashPIN: %w", err)
	}
	return string(hash), nil
}

// VerifyPIN compares a plaintext PIN against its stored hash.
func VerifyPIN(pin, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin)) == nil
}

// DecodePinBlock recovers the PIN from the demo wire encoding. The blob is an
// opaque pass-through token; base64 here is placeholder encoding, not a
// security mechanism.
func DecodePinBlock(blob string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(blob))
	if err != nil {
		return "", fmt.Errorf("DecodePinBlock: %w", err)
	}
	pin := string(raw)
	if pin == "" {
		return "", fmt.Errorf("DecodePinBlock: empty pin block")
	}
	return pin, nil
}

// EncodePinBlock is the inverse of DecodePinBlock, used by clients and tests.
func EncodePinBlock(pin string) string {
	return base64.StdEncoding.EncodeToString([]byte(pin))
}
