// Package generator creates random account passwords. Output is returned
// as a byte slice so callers can wipe it after use.
package generator

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
)

// Options selects the length and character classes of a generated password
type Options struct {
	Length         int
	Lower          bool
	Upper          bool
	Digits         bool
	Symbols        bool
	AvoidAmbiguous bool
}

// DefaultOptions returns the options used when a user leaves a password blank
func DefaultOptions() Options {
	return Options{
		Length:         20,
		Lower:          true,
		Upper:          true,
		Digits:         true,
		Symbols:        true,
		AvoidAmbiguous: true,
	}
}

const (
	lowerSet  = "abcdefghijklmnopqrstuvwxyz"
	upperSet  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digitSet  = "0123456789"
	symbolSet = "!@#$%^&*()-_=+[]{}|;:,.<>?~"
	ambiguous = "il1Lo0O"
)

var (
	errNoClasses = errors.New("no character class selected")
	errTooShort  = errors.New("password length is shorter than the number of character classes")
)

// GeneratePassword creates a random password with at least one character
// from every selected class
func GeneratePassword(opts Options) ([]byte, error) {
	sets := opts.charsets()
	if len(sets) == 0 {
		return nil, errNoClasses
	}
	if opts.Length < len(sets) {
		return nil, errTooShort
	}

	pool := strings.Join(sets, "")
	out := make([]byte, 0, opts.Length)
	for len(out) < opts.Length {
		set := pool
		if len(out) < len(sets) {
			set = sets[len(out)]
		}
		i, err := randIndex(len(set))
		if err != nil {
			return nil, err
		}
		out = append(out, set[i])
	}

	if err := shuffle(out); err != nil {
		return nil, err
	}
	return out, nil
}

func (o Options) charsets() []string {
	drop := func(set string) string {
		if !o.AvoidAmbiguous {
			return set
		}
		return strings.Map(func(r rune) rune {
			if strings.ContainsRune(ambiguous, r) {
				return -1
			}
			return r
		}, set)
	}

	var sets []string
	if o.Lower {
		sets = append(sets, drop(lowerSet))
	}
	if o.Upper {
		sets = append(sets, drop(upperSet))
	}
	if o.Digits {
		sets = append(sets, drop(digitSet))
	}
	if o.Symbols {
		sets = append(sets, symbolSet)
	}
	return sets
}

// shuffle is a Fisher-Yates shuffle over crypto/rand
func shuffle(b []byte) error {
	for i := len(b) - 1; i > 0; i-- {
		j, err := randIndex(i + 1)
		if err != nil {
			return err
		}
		b[i], b[j] = b[j], b[i]
	}
	return nil
}

// randIndex returns a uniform index in [0, n)
func randIndex(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}
