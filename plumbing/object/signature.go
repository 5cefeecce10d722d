package object

import (
	"bytes"
	"fmt"
	"time"
)

// Signature is an author or committer line: a name, an email, and a
// timestamp carrying a fixed numeric UTC offset (never re-derived from the
// local zone on decode, so round-tripping a commit is exact).
type Signature struct {
	Name  string
	Email string
	When  time.Time
}

// Encode renders the signature the way it appears in a commit body:
// `<name> <email> <unix-seconds> <±HHMM>`.
func (s Signature) Encode() string {
	_, offset := s.When.Zone()
	sign := '+'
	if offset < 0 {
		sign = '-'
		offset = -offset
	}
	hh := offset / 3600
	mm := (offset % 3600) / 60
	return fmt.Sprintf("%s <%s> %d %c%02d%02d", s.Name, s.Email, s.When.Unix(), sign, hh, mm)
}

// ParseSignature parses a `<name> <email> <unix-seconds> <±HHMM>` line.
func ParseSignature(line string) (Signature, error) {
	lt := bytes.LastIndexByte([]byte(line), '<')
	gt := bytes.LastIndexByte([]byte(line), '>')
	if lt < 0 || gt < lt {
		return Signature{}, fmt.Errorf("malformed signature %q: missing email", line)
	}

	name := trimSpace(line[:lt])
	email := line[lt+1 : gt]

	rest := trimSpace(line[gt+1:])
	var sec int64
	var tz string
	if _, err := fmt.Sscanf(rest, "%d %s", &sec, &tz); err != nil {
		return Signature{}, fmt.Errorf("malformed signature %q: %w", line, err)
	}

	loc, err := parseTZOffset(tz)
	if err != nil {
		return Signature{}, fmt.Errorf("malformed signature %q: %w", line, err)
	}

	return Signature{
		Name:  name,
		Email: email,
		When:  time.Unix(sec, 0).In(loc),
	}, nil
}

func trimSpace(s string) string {
	for len(s) > 0 && (s[0] == ' ' || s[0] == '\t') {
		s = s[1:]
	}
	for len(s) > 0 && (s[len(s)-1] == ' ' || s[len(s)-1] == '\t') {
		s = s[:len(s)-1]
	}
	return s
}

// parseTZOffset parses a `±HHMM` offset into a fixed-offset time.Location.
func parseTZOffset(tz string) (*time.Location, error) {
	if len(tz) != 5 || (tz[0] != '+' && tz[0] != '-') {
		return nil, fmt.Errorf("invalid timezone offset %q", tz)
	}
	var hh, mm int
	if _, err := fmt.Sscanf(tz[1:3], "%d", &hh); err != nil {
		return nil, fmt.Errorf("invalid timezone offset %q: %w", tz, err)
	}
	if _, err := fmt.Sscanf(tz[3:5], "%d", &mm); err != nil {
		return nil, fmt.Errorf("invalid timezone offset %q: %w", tz, err)
	}
	offset := hh*3600 + mm*60
	if tz[0] == '-' {
		offset = -offset
	}
	return time.FixedZone(tz, offset), nil
}
