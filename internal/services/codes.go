package services

import (
	"crypto/rand"
	"math/big"
	"strings"

	"github.com/nimasrn/dv-referral-ledger/internal/model"
)

const maxCodeAttempts = 5

// randomString draws n characters uniformly from alphabet.
func randomString(alphabet string, n int) (string, error) {
	max := big.NewInt(int64(len(alphabet)))
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(alphabet[idx.Int64()])
	}
	return b.String(), nil
}

func generateReferralCode() (string, error) {
	return randomString(model.ReferralCodeAlphabet, model.ReferralCodeLength)
}

func generateTrackingID() (string, error) {
	s, err := randomString(model.TrackingIDAlphabet, model.TrackingIDLength)
	if err != nil {
		return "", err
	}
	return model.TrackingIDPrefix + s, nil
}

// NormalizeReferralCode upper-cases and trims user input.
func NormalizeReferralCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
