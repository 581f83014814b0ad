package util

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

const (
	tokenBytes  = 32
	handleBytes = 12

	inviteCodeLen = 12
	// Excludes 0/O, 1/I/L and other visually ambiguous characters so codes
	// survive being read aloud or hand-typed.
	inviteCodeChars = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
)

// NewSessionToken returns 256 bits of randomness in a URL-safe, unpadded
// encoding. Uniqueness is not enforced by storage; entropy is the defense.
func NewSessionToken() (string, error) {
	bytes := make([]byte, tokenBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

// NewInviteCode returns a 12-character human-transcribable code.
func NewInviteCode() (string, error) {
	code := make([]byte, inviteCodeLen)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(inviteCodeChars))))
		if err != nil {
			return "", fmt.Errorf("generate invite code: %w", err)
		}
		code[i] = inviteCodeChars[n.Int64()]
	}
	return string(code), nil
}

// NewPublicHandle returns a short non-guessable identifier safe to expose in
// portal URLs.
func NewPublicHandle() (string, error) {
	bytes := make([]byte, handleBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("generate public handle: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

// HashSecret computes the one-way digest under which secrets are stored.
// Raw tokens and invite codes are never persisted, only this digest.
func HashSecret(secret string) string {
	hash := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(hash[:])
}

// ContentDigest hashes a contract's title and body as they stand at signing
// time. A later edit to either makes the stored digest stop matching.
func ContentDigest(title, body string) string {
	h := sha256.New()
	h.Write([]byte(title))
	h.Write([]byte{0})
	h.Write([]byte(body))
	return hex.EncodeToString(h.Sum(nil))
}

func ConstantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// MaskCode renders a credential for logs without exposing it.
func MaskCode(code string) string {
	if len(code) <= 4 {
		return "****"
	}
	return code[:4] + "-****"
}
