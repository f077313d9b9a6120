package crypto

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"math/big"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const referenceAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GenerateReference returns PREFIX-YYMMDD-XXXXXX using an unambiguous
// alphabet, e.g. AIR-261019-7KQ2MZ.
func GenerateReference(prefix string, now time.Time) (string, error) {
	const n = 6
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(referenceAlphabet))))
		if err != nil {
			return "", fmt.Errorf("failed to generate reference: %w", err)
		}
		b[i] = referenceAlphabet[idx.Int64()]
	}
	return fmt.Sprintf("%s-%s-%s", strings.ToUpper(prefix), now.UTC().Format("060102"), b), nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(bytes), nil
}

func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// SignSHA256 returns the hex HMAC-SHA256 of body, as sent by Meta in
// X-Hub-Signature-256 (without the "sha256=" prefix).
func SignSHA256(secret string, body []byte) string {
	return sign(sha256.New, secret, body)
}

// SignSHA512 returns the hex HMAC-SHA512 of body, as sent by Paystack in
// x-paystack-signature.
func SignSHA512(secret string, body []byte) string {
	return sign(sha512.New, secret, body)
}

// VerifySignature compares a hex signature in constant time.
func VerifySignature(expected, got string) bool {
	e, err1 := hex.DecodeString(expected)
	g, err2 := hex.DecodeString(got)
	if err1 != nil || err2 != nil {
		return false
	}
	return hmac.Equal(e, g)
}

func sign(h func() hash.Hash, secret string, body []byte) string {
	mac := hmac.New(h, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
