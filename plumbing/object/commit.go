package object

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"

	"github.com/strata-vcs/strata/plumbing"
)

// Commit is a named point in history: the tree it snapshots, the parent(s)
// it extends, and who made it. Parents is an ordered slice rather than a
// fixed 0-2 arity so that octopus merges (>2 parents) round-trip through
// Encode/Decode unchanged, even though nothing in this core constructs one
// (see SPEC_FULL.md §11, Open Questions).
type Commit struct {
	Hash      plumbing.ObjectID
	Tree      plumbing.ObjectID
	Parents   []plumbing.ObjectID
	Author    Signature
	Committer Signature
	Message   string
}

// Type implements Object.
func (c *Commit) Type() plumbing.ObjectType { return plumbing.CommitObject }

// ID implements Object.
func (c *Commit) ID() plumbing.ObjectID { return c.Hash }

// NumParents returns len(c.Parents); a root commit has zero.
func (c *Commit) NumParents() int { return len(c.Parents) }

// FirstParent returns the first parent and true, or the zero ObjectID and
// false for a root commit. Revision's Parent() operator uses exactly this.
func (c *Commit) FirstParent() (plumbing.ObjectID, bool) {
	if len(c.Parents) == 0 {
		return plumbing.ZeroOID, false
	}
	return c.Parents[0], true
}

// Encode renders the commit body: `tree`, repeated `parent` lines, `author`,
// `committer`, a blank line, then the message verbatim.
func (c *Commit) Encode() []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "tree %s\n", c.Tree)
	for _, p := range c.Parents {
		fmt.Fprintf(&buf, "parent %s\n", p)
	}
	fmt.Fprintf(&buf, "author %s\n", c.Author.Encode())
	fmt.Fprintf(&buf, "committer %s\n", c.Committer.Encode())
	buf.WriteByte('\n')
	buf.WriteString(c.Message)
	return buf.Bytes()
}

// DecodeCommit parses a commit body.
func DecodeCommit(id plumbing.ObjectID, body []byte) (*Commit, error) {
	c := &Commit{Hash: id}

	r := bufio.NewReader(bytes.NewReader(body))
	for {
		line, err := r.ReadString('\n')
		if err != nil && line == "" {
			break
		}
		line = strings.TrimSuffix(line, "\n")
		if line == "" {
			break
		}

		sp := strings.IndexByte(line, ' ')
		if sp < 0 {
			return nil, fmt.Errorf("corrupt commit %s: malformed header line %q", id, line)
		}
		key, value := line[:sp], line[sp+1:]

		switch key {
		case "tree":
			oid, err := plumbing.FromHex(value)
			if err != nil {
				return nil, fmt.Errorf("corrupt commit %s: invalid tree oid: %w", id, err)
			}
			c.Tree = oid
		case "parent":
			oid, err := plumbing.FromHex(value)
			if err != nil {
				return nil, fmt.Errorf("corrupt commit %s: invalid parent oid: %w", id, err)
			}
			c.Parents = append(c.Parents, oid)
		case "author":
			sig, err := ParseSignature(value)
			if err != nil {
				return nil, fmt.Errorf("corrupt commit %s: %w", id, err)
			}
			c.Author = sig
		case "committer":
			sig, err := ParseSignature(value)
			if err != nil {
				return nil, fmt.Errorf("corrupt commit %s: %w", id, err)
			}
			c.Committer = sig
		}
	}

	rest, err := peekRemainder(r)
	if err != nil {
		return nil, fmt.Errorf("corrupt commit %s: %w", id, err)
	}
	c.Message = rest

	if c.Tree.IsZero() {
		return nil, fmt.Errorf("corrupt commit %s: missing tree", id)
	}

	return c, nil
}

func peekRemainder(r *bufio.Reader) (string, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return "", err
	}
	return buf.String(), nil
}
