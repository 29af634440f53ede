package tally

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Picker draws the saboteur index uniformly from [0, n)
type Picker interface {
	Pick(n int) (int, error)
}

// PickerFunc adapts a function to Picker
type PickerFunc func(n int) (int, error)

// Pick calls f(n)
func (f PickerFunc) Pick(n int) (int, error) {
	return f(n)
}

// CryptoPicker draws from crypto/rand. rand.Int rejects out-of-range samples,
// so every index is equally likely for any n.
type CryptoPicker struct{}

// Pick returns a uniform index in [0, n)
func (CryptoPicker) Pick(n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("pick from %d candidates", n)
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("draw random index: %w", err)
	}
	return int(v.Int64()), nil
}
