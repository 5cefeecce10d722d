// Package repository bundles the object database, staging area, reference
// store, and workspace into the one handle a command-level caller drives:
// resolve a revision, diff two trees, plan and apply a migration, or build
// and record a new commit.
package repository

import (
	"fmt"

	"github.com/go-git/go-billy/v5"

	"github.com/strata-vcs/strata/diff"
	"github.com/strata-vcs/strata/index"
	"github.com/strata-vcs/strata/plumbing"
	"github.com/strata-vcs/strata/plumbing/object"
	"github.com/strata-vcs/strata/plumbing/revision"
	"github.com/strata-vcs/strata/storage/filesystem"
	"github.com/strata-vcs/strata/worktree"
)

// metadataDir is the conventional name of the repository's own storage
// area within the workspace, mirroring ".git".
const metadataDir = ".strata"

// Repository is the data-plane handle a command builds once and drives:
// every subsystem's public surface, wired to one on-disk (or in-memory,
// for tests) root.
type Repository struct {
	Database  *filesystem.Database
	Index     *index.Index
	Refs      *filesystem.RefStore
	Workspace *worktree.Workspace

	resolver *revision.Resolver
}

// Open wires a Repository rooted at root within fs: the metadata directory
// holds the object database, index, and refs; everything else is the
// working tree.
func Open(fs billy.Filesystem, root string) *Repository {
	metaRoot := fs.Join(root, metadataDir)
	db := filesystem.NewDatabase(fs, fs.Join(metaRoot, "objects"))
	refs := filesystem.NewRefStore(fs, metaRoot)
	idx := index.New(fs, metaRoot, "index")
	ws := worktree.New(fs, root)

	return &Repository{
		Database:  db,
		Index:     idx,
		Refs:      refs,
		Workspace: ws,
		resolver:  &revision.Resolver{Refs: refs, Objects: db},
	}
}

// Init points a freshly created repository's HEAD at refs/heads/branch
// before it exists, the same unborn-branch bootstrap real git performs at
// `git init` time.
func (r *Repository) Init(branch string) error {
	return r.Refs.SetHEAD(branch, fmt.Sprintf("ref: refs/heads/%s\n", branch))
}

// Resolve parses and resolves a revision expression against Refs and
// Database, ref-first with an abbreviated-OID fallback.
func (r *Repository) Resolve(rev string) (plumbing.ObjectID, error) {
	return r.resolver.ResolveString(rev)
}

// StatusScanner returns a worktree.StatusScanner reading through this
// repository's Workspace, Database, and Refs.
func (r *Repository) StatusScanner() *worktree.StatusScanner {
	return worktree.NewStatusScanner(r.Workspace, r.Database, r.Refs)
}

// Migration returns a worktree.Migration writing into this repository's
// Workspace and Index, reading blobs through Database.
func (r *Repository) Migration() *worktree.Migration {
	return worktree.NewMigration(r.Workspace, r.Index, r.Database)
}

// Checkout diffs HEAD's tree against target, plans the migration, and (if
// conflict-free) applies it, advancing HEAD to target.
func (r *Repository) Checkout(target plumbing.ObjectID) error {
	head, ok, err := r.Refs.ReadHEAD()
	if err != nil {
		return err
	}
	if !ok {
		head = plumbing.ZeroOID
	}

	changes, err := diff.Compare(r.Database, head, target)
	if err != nil {
		return fmt.Errorf("repository: diff HEAD against target: %w", err)
	}

	migration := r.Migration()
	plan, err := migration.PlanChanges(changes)
	if err != nil {
		return err
	}
	if err := migration.Apply(plan); err != nil {
		return err
	}

	if err := r.Index.WriteUpdates(); err != nil {
		return fmt.Errorf("repository: write index: %w", err)
	}
	return r.Refs.UpdateHEAD(target)
}

// CommitOptions carries the pieces of a commit that aren't derived from the
// repository's own state (message, and optionally a pre-resolved identity
// for tests that don't want to touch the process environment).
type CommitOptions struct {
	Message   string
	Author    *object.Signature
	Committer *object.Signature
}

// CreateCommit builds a tree from the current index, a commit object
// pointing at it (with HEAD, if any, as its sole parent), stores both, and
// advances HEAD to the new commit.
func (r *Repository) CreateCommit(opts CommitOptions) (plumbing.ObjectID, error) {
	treeOID, err := WriteTree(r.Database, r.Index.Entries())
	if err != nil {
		return plumbing.ZeroOID, fmt.Errorf("repository: write tree: %w", err)
	}

	author, err := resolveSignature(opts.Author, LoadAuthor)
	if err != nil {
		return plumbing.ZeroOID, err
	}
	committer, err := resolveSignature(opts.Committer, LoadCommitter)
	if err != nil {
		return plumbing.ZeroOID, err
	}

	var parents []plumbing.ObjectID
	head, ok, err := r.Refs.ReadHEAD()
	if err != nil {
		return plumbing.ZeroOID, err
	}
	if ok {
		parents = append(parents, head)
	}

	commit := &object.Commit{
		Tree:      treeOID,
		Parents:   parents,
		Author:    author,
		Committer: committer,
		Message:   opts.Message,
	}

	oid, err := r.Database.Store(commit)
	if err != nil {
		return plumbing.ZeroOID, fmt.Errorf("repository: store commit: %w", err)
	}

	if err := r.Refs.UpdateHEAD(oid); err != nil {
		return plumbing.ZeroOID, err
	}
	return oid, nil
}

func resolveSignature(given *object.Signature, load func() (object.Signature, error)) (object.Signature, error) {
	if given != nil {
		return *given, nil
	}
	return load()
}
