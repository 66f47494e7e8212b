package id

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

const alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ" // 62 chars

const base = uint64(len(alphabet))

var (
	// ErrInvalidCharacter is returned by Decode for input outside the alphabet.
	ErrInvalidCharacter = errors.New("invalid base62 character")
	// ErrOverflow is returned by Decode when the value does not fit in 64 bits.
	ErrOverflow = errors.New("base62 value overflows uint64")
)

// index maps a byte to its digit value, -1 when outside the alphabet.
var index = func() [256]int8 {
	var t [256]int8
	for i := range t {
		t[i] = -1
	}
	for i := 0; i < len(alphabet); i++ {
		t[alphabet[i]] = int8(i)
	}
	return t
}()

// Encode returns the base62 form of n, most-significant digit first.
// Encode(0) is "0".
func Encode(n uint64) string {
	if n == 0 {
		return alphabet[:1]
	}
	var buf [11]byte // 62^11 > 2^64
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = alphabet[n%base]
		n /= base
	}
	return string(buf[i:])
}

// Decode is the inverse of Encode. Leading zero digits are accepted.
func Decode(s string) (uint64, error) {
	if s == "" {
		return 0, fmt.Errorf("%w: empty input", ErrInvalidCharacter)
	}
	var n uint64
	for i := 0; i < len(s); i++ {
		d := index[s[i]]
		if d < 0 {
			return 0, fmt.Errorf("%w: %q at offset %d", ErrInvalidCharacter, s[i], i)
		}
		if n > (math.MaxUint64-uint64(d))/base {
			return 0, ErrOverflow
		}
		n = n*base + uint64(d)
	}
	return n, nil
}

// EncodeWithMinLength left-pads Encode(n) with '0' up to minLen characters.
func EncodeWithMinLength(n uint64, minLen int) string {
	enc := Encode(n)
	if pad := minLen - len(enc); pad > 0 {
		return strings.Repeat(alphabet[:1], pad) + enc
	}
	return enc
}

// IsValid reports whether s is non-empty and made only of alphabet characters.
func IsValid(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if index[s[i]] < 0 {
			return false
		}
	}
	return true
}

// Alphabet exposes the base62 alphabet.
func Alphabet() string { return alphabet }
