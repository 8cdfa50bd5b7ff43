package util

import (
	"crypto/rand"
	"math/big"
)

const upperAlphaNum = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RandomUpperAlphaNum returns n characters drawn from [A-Z0-9] with crypto/rand.
func RandomUpperAlphaNum(n int) (string, error) {
	b := make([]byte, n)
	max := big.NewInt(int64(len(upperAlphaNum)))
	for i := range b {
		num, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = upperAlphaNum[num.Int64()]
	}
	return string(b), nil
}
