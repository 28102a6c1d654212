// Package keycode builds human-shareable access key codes of the form
// {PREFIX}{YY}-{RANDOM6}-{SPORT}, e.g. EV26-K7X9QM-SWI.
package keycode

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"regexp"
	"strings"
	"time"
	"unicode"
)

// Alphabet is the random segment alphabet. It leaves out 0, O, 1, I and l,
// giving 57^6 (about 34 billion) combinations per prefix.
const Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz23456789"

const (
	randomLength = 6
	filler       = 'X'
)

// MaxAttempts caps how many fresh batches are tried after a code collision.
const MaxAttempts = 5

// ErrRetriesExhausted is returned when every attempt collided.
var ErrRetriesExhausted = errors.New("access key code generation exhausted its retries")

// Pattern matches every code this package produces.
var Pattern = regexp.MustCompile(`^[A-Z]{2}\d{2}-[A-Za-z0-9]{6}-[A-Z0-9]{3}$`)

// Generator produces access key codes.
type Generator struct {
	random io.Reader
	now    func() time.Time
	max    *big.Int
}

// New returns a Generator backed by crypto/rand and the wall clock.
func New() *Generator {
	return NewWithSource(rand.Reader, time.Now)
}

// NewWithSource returns a Generator with an injected random source and clock.
func NewWithSource(random io.Reader, now func() time.Time) *Generator {
	return &Generator{
		random: random,
		now:    now,
		max:    big.NewInt(int64(len(Alphabet))),
	}
}

// Code builds one code for an event name and sport id.
func (g *Generator) Code(eventName, sportID string) (string, error) {
	random, err := g.randomSegment()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%02d-%s-%s", EventPrefix(eventName), g.now().Year()%100, random, SportCode(sportID)), nil
}

// Codes builds n distinct codes for one event and sport.
func (g *Generator) Codes(eventName, sportID string, n int) ([]string, error) {
	seen := make(map[string]struct{}, n)
	codes := make([]string, 0, n)
	for len(codes) < n {
		code, err := g.Code(eventName, sportID)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes, nil
}

func (g *Generator) randomSegment() (string, error) {
	var b strings.Builder
	b.Grow(randomLength)
	for i := 0; i < randomLength; i++ {
		n, err := rand.Int(g.random, g.max)
		if err != nil {
			return "", fmt.Errorf("failed to read random source: %w", err)
		}
		b.WriteByte(Alphabet[n.Int64()])
	}
	return b.String(), nil
}

// EventPrefix is the first two letters of the event name, upper-cased and
// padded with X.
func EventPrefix(eventName string) string {
	return segment(eventName, 2, func(r rune) bool { return r <= unicode.MaxASCII && unicode.IsLetter(r) })
}

// SportCode is the first three letters or digits of the sport id,
// upper-cased and padded with X.
func SportCode(sportID string) string {
	return segment(sportID, 3, func(r rune) bool {
		return r <= unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r))
	})
}

func segment(s string, n int, keep func(rune) bool) string {
	var b strings.Builder
	for _, r := range s {
		if b.Len() == n {
			break
		}
		if keep(r) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	for b.Len() < n {
		b.WriteRune(filler)
	}
	return b.String()
}
