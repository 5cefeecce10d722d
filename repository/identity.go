package repository

import (
	"fmt"
	"os"
	"time"

	"github.com/strata-vcs/strata/plumbing/object"
)

// fallbackDateLayout is tried when a GIT_*_DATE value isn't RFC 2822.
const fallbackDateLayout = "2006-01-02 15:04:05 -0700"

// ErrIdentityNotConfigured is returned by LoadAuthor/LoadCommitter when the
// required name or email environment variable is unset.
type ErrIdentityNotConfigured struct {
	Var string
}

func (e *ErrIdentityNotConfigured) Error() string {
	return fmt.Sprintf("repository: %s not set", e.Var)
}

// LoadAuthor builds a Signature from GIT_AUTHOR_NAME, GIT_AUTHOR_EMAIL and
// GIT_AUTHOR_DATE, the same three environment variables real git consults
// before falling back to its own config. GIT_AUTHOR_DATE, if unset,
// defaults to the current time.
func LoadAuthor() (object.Signature, error) {
	return loadIdentity("GIT_AUTHOR_NAME", "GIT_AUTHOR_EMAIL", "GIT_AUTHOR_DATE")
}

// LoadCommitter builds a Signature from GIT_COMMITTER_NAME,
// GIT_COMMITTER_EMAIL and GIT_COMMITTER_DATE.
func LoadCommitter() (object.Signature, error) {
	return loadIdentity("GIT_COMMITTER_NAME", "GIT_COMMITTER_EMAIL", "GIT_COMMITTER_DATE")
}

func loadIdentity(nameVar, emailVar, dateVar string) (object.Signature, error) {
	name, ok := os.LookupEnv(nameVar)
	if !ok {
		return object.Signature{}, &ErrIdentityNotConfigured{Var: nameVar}
	}
	email, ok := os.LookupEnv(emailVar)
	if !ok {
		return object.Signature{}, &ErrIdentityNotConfigured{Var: emailVar}
	}

	when := time.Now()
	if raw, ok := os.LookupEnv(dateVar); ok {
		parsed, err := parseIdentityDate(raw)
		if err != nil {
			return object.Signature{}, fmt.Errorf("repository: %s: %w", dateVar, err)
		}
		when = parsed
	}

	return object.Signature{Name: name, Email: email, When: when}, nil
}

// parseIdentityDate tries RFC 2822 first (time.RFC1123Z's layout, the wire
// format git itself emits for these variables), then the space-separated
// "2006-01-02 15:04:05 -0700" form git also accepts from a user's shell.
func parseIdentityDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC1123Z, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(fallbackDateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized date format %q", raw)
	}
	return t, nil
}
