// Package passgen produces the two secrets attached to every access
// credential: a short gate password a visitor can read out at the booth,
// and an opaque token carried inside the QR code.
package passgen

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math/big"
	"strings"
)

// I and O are omitted; misread too easily as 1 and 0 on a phone screen.
const (
	letters = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	digits  = "0123456789"
)

const tokenBytes = 32

// Password returns a gate password in the form LLLL-DDDD, e.g. "KWRT-4821".
// Uniqueness is the store's job; callers retry on collision.
func Password() (string, error) {
	var b strings.Builder
	b.Grow(9)
	for i := 0; i < 4; i++ {
		c, err := pick(letters)
		if err != nil {
			return "", err
		}
		b.WriteByte(c)
	}
	b.WriteByte('-')
	for i := 0; i < 4; i++ {
		c, err := pick(digits)
		if err != nil {
			return "", err
		}
		b.WriteByte(c)
	}
	return b.String(), nil
}

// Token returns an unpredictable opaque identifier suitable as a QR
// symbol payload.
func Token() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func pick(alphabet string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
	if err != nil {
		return 0, fmt.Errorf("read random index: %w", err)
	}
	return alphabet[n.Int64()], nil
}
