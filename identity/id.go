package identity

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"math/big"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// CertificateIDPrefix is the prefix of every certificate id
const CertificateIDPrefix = "EDU"

const (
	base36Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	idSuffixLen    = 5
)

// NormalizeID brings a user supplied certificate id into its canonical form.
// Certificate ids compare case-insensitively.
func NormalizeID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// LooksLikeCertificateID reports whether the passed (normalized) id has the
// shape of an id produced by NewCertificateID
func LooksLikeCertificateID(id string) bool {
	parts := strings.Split(id, "-")
	if len(parts) != 3 || parts[0] != CertificateIDPrefix || len(parts[2]) != idSuffixLen {
		return false
	}
	if parts[1] == "" {
		return false
	}
	for _, c := range parts[1] {
		if c < '0' || c > '9' {
			return false
		}
	}
	for _, c := range parts[2] {
		if !strings.ContainsRune(base36Alphabet, c) {
			return false
		}
	}
	return true
}

func randomString(r io.Reader, alphabet string, n int) (string, error) {
	var sb strings.Builder
	sb.Grow(n)
	max := big.NewInt(int64(len(alphabet)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(r, max)
		if err != nil {
			return "", errors.Wrap(err, "could not read randomness")
		}
		sb.WriteByte(alphabet[idx.Int64()])
	}
	return sb.String(), nil
}

func randomHex(r io.Reader, n int) (string, error) {
	b := make([]byte, (n+1)/2)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", errors.Wrap(err, "could not read randomness")
	}
	return hex.EncodeToString(b)[:n], nil
}

func formatCertificateID(t time.Time, suffix string) string {
	return fmt.Sprintf("%s-%d-%s", CertificateIDPrefix, t.UnixMilli(), suffix)
}
