package ps

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/filemode"
	"github.com/go-git/go-git/v6/plumbing/object"

	"github.com/nickyhof/ShopQL/core"
)

// treeChange sets Path to Blob, or removes Path when Blob is the zero hash.
type treeChange struct {
	Path string
	Blob plumbing.Hash
}

// writeBlob stores data as a blob without touching the worktree.
func (p *Persistence) writeBlob(data []byte) (plumbing.Hash, error) {
	obj := p.repo.Storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	obj.SetSize(int64(len(data)))

	w, err := obj.Writer()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to open blob: %w", err)
	}
	_, err = w.Write(data)
	if closeErr := w.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to write blob: %w", err)
	}

	return p.repo.Storer.SetEncodedObject(obj)
}

// headTreeHash is the root tree of HEAD, or the zero hash before the first
// commit.
func (p *Persistence) headTreeHash() (plumbing.Hash, error) {
	head, err := p.repo.Head()
	if err != nil {
		return plumbing.ZeroHash, nil
	}

	commit, err := p.repo.CommitObject(head.Hash())
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to get head commit: %w", err)
	}
	return commit.TreeHash, nil
}

func (p *Persistence) treeEntries(hash plumbing.Hash) (map[string]object.TreeEntry, error) {
	entries := make(map[string]object.TreeEntry)
	if hash.IsZero() {
		return entries, nil
	}

	tree, err := object.GetTree(p.repo.Storer, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to get tree: %w", err)
	}
	for _, entry := range tree.Entries {
		entries[entry.Name] = entry
	}
	return entries, nil
}

// gitSortName is the name git sorts a tree entry by: directories compare as
// if they ended in a slash.
func gitSortName(entry object.TreeEntry) string {
	if entry.Mode == filemode.Dir {
		return entry.Name + "/"
	}
	return entry.Name
}

// writeTree stores entries as one tree object.
func (p *Persistence) writeTree(entries map[string]object.TreeEntry) (plumbing.Hash, error) {
	tree := &object.Tree{Entries: make([]object.TreeEntry, 0, len(entries))}
	for _, entry := range entries {
		tree.Entries = append(tree.Entries, entry)
	}
	slices.SortFunc(tree.Entries, func(a, b object.TreeEntry) int {
		return strings.Compare(gitSortName(a), gitSortName(b))
	})

	obj := p.repo.Storer.NewEncodedObject()
	if err := tree.Encode(obj); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to encode tree: %w", err)
	}
	hash, err := p.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to store tree: %w", err)
	}
	return hash, nil
}

// applyChanges rewrites the tree rooted at root, recursing once per
// directory touched. A tree left empty comes back as the zero hash.
func (p *Persistence) applyChanges(root plumbing.Hash, changes []treeChange) (plumbing.Hash, error) {
	if len(changes) == 0 {
		return root, nil
	}

	entries, err := p.treeEntries(root)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	nested := make(map[string][]treeChange)
	var dirs []string
	for _, change := range changes {
		dir, rest, found := strings.Cut(change.Path, "/")
		if !found {
			if change.Blob.IsZero() {
				delete(entries, dir)
			} else {
				entries[dir] = object.TreeEntry{Name: dir, Mode: filemode.Regular, Hash: change.Blob}
			}
			continue
		}
		if _, seen := nested[dir]; !seen {
			dirs = append(dirs, dir)
		}
		nested[dir] = append(nested[dir], treeChange{Path: rest, Blob: change.Blob})
	}

	for _, dir := range dirs {
		var current plumbing.Hash
		if existing, ok := entries[dir]; ok && existing.Mode == filemode.Dir {
			current = existing.Hash
		}

		updated, err := p.applyChanges(current, nested[dir])
		if err != nil {
			return plumbing.ZeroHash, err
		}
		if updated.IsZero() {
			delete(entries, dir)
		} else {
			entries[dir] = object.TreeEntry{Name: dir, Mode: filemode.Dir, Hash: updated}
		}
	}

	if len(entries) == 0 {
		return plumbing.ZeroHash, nil
	}
	return p.writeTree(entries)
}

// writeCommit records tree as a new commit on the current branch and moves
// the branch to it.
func (p *Persistence) writeCommit(tree plumbing.Hash, identity core.Identity, message string) (Transaction, error) {
	if tree.IsZero() {
		empty, err := p.writeTree(nil)
		if err != nil {
			return Transaction{}, err
		}
		tree = empty
	}

	signature := object.Signature{Name: identity.Name, Email: identity.Email, When: time.Now()}
	commit := &object.Commit{
		Author:    signature,
		Committer: signature,
		Message:   message,
		TreeHash:  tree,
	}

	branch := plumbing.Master
	if head, err := p.repo.Head(); err == nil {
		commit.ParentHashes = []plumbing.Hash{head.Hash()}
		if head.Name().IsBranch() {
			branch = head.Name()
		}
	}

	obj := p.repo.Storer.NewEncodedObject()
	if err := commit.Encode(obj); err != nil {
		return Transaction{}, fmt.Errorf("failed to encode commit: %w", err)
	}
	hash, err := p.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return Transaction{}, fmt.Errorf("failed to store commit: %w", err)
	}

	if err := p.repo.Storer.SetReference(plumbing.NewHashReference(branch, hash)); err != nil {
		return Transaction{}, fmt.Errorf("failed to update %s: %w", branch.Short(), err)
	}

	return Transaction{
		Id:      hash.String(),
		When:    signature.When,
		Author:  identity.String(),
		Message: message,
	}, nil
}

// checkoutHead brings an on-disk worktree in line with HEAD so the record
// files can be browsed. Memory repositories are read through the object
// store only.
func (p *Persistence) checkoutHead() error {
	if p.isMemoryMode {
		return nil
	}

	wt, err := p.repo.Worktree()
	if err != nil {
		return err
	}
	head, err := p.repo.Head()
	if err != nil {
		return err
	}
	tree, err := p.headTree()
	if err != nil {
		return err
	}

	// A hard reset to an empty tree fails trying to remove the base
	// directory, so clear the files by hand.
	if tree == nil || len(tree.Entries) == 0 {
		infos, err := wt.Filesystem.ReadDir("/")
		if err != nil {
			return nil
		}
		for _, info := range infos {
			if info.Name() != ".git" {
				wt.Filesystem.Remove(info.Name())
			}
		}
		return nil
	}

	return wt.Reset(&git.ResetOptions{Mode: git.HardReset, Commit: head.Hash()})
}

// headTree returns the tree of the HEAD commit, or nil when there are no
// commits yet.
func (p *Persistence) headTree() (*object.Tree, error) {
	if !p.IsInitialized() {
		return nil, ErrNotInitialized
	}

	hash, err := p.headTreeHash()
	if err != nil || hash.IsZero() {
		return nil, err
	}

	tree, err := object.GetTree(p.repo.Storer, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to get tree: %w", err)
	}
	return tree, nil
}

// dirTree returns the tree at dir in HEAD. A missing directory, or a
// repository without commits, yields nil.
func (p *Persistence) dirTree(dir string) (*object.Tree, error) {
	tree, err := p.headTree()
	if err != nil || tree == nil {
		return nil, err
	}
	if dir == "" || dir == "." {
		return tree, nil
	}

	sub, err := tree.Tree(dir)
	if err != nil {
		return nil, nil
	}
	return sub, nil
}

func (p *Persistence) readBlob(hash plumbing.Hash) ([]byte, error) {
	blob, err := object.GetBlob(p.repo.Storer, hash)
	if err != nil {
		return nil, err
	}
	r, err := blob.Reader()
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// Entry is a file or directory name in a HEAD tree.
type Entry struct {
	Name  string
	IsDir bool
}

// ListEntries lists the names directly inside dir in tree order. A missing
// directory lists as empty.
func (p *Persistence) ListEntries(dir string) ([]Entry, error) {
	tree, err := p.dirTree(dir)
	if err != nil || tree == nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(tree.Entries))
	for _, entry := range tree.Entries {
		entries = append(entries, Entry{Name: entry.Name, IsDir: entry.Mode == filemode.Dir})
	}
	return entries, nil
}

// ReadFiles returns the name and contents of every file directly inside
// dir, in tree order. Subdirectories are skipped.
func (p *Persistence) ReadFiles(dir string) ([]string, [][]byte, error) {
	tree, err := p.dirTree(dir)
	if err != nil || tree == nil {
		return nil, nil, err
	}

	var (
		names    []string
		contents [][]byte
	)
	for _, entry := range tree.Entries {
		if entry.Mode == filemode.Dir {
			continue
		}
		data, err := p.readBlob(entry.Hash)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read %s/%s: %w", dir, entry.Name, err)
		}
		names = append(names, entry.Name)
		contents = append(contents, data)
	}
	return names, contents, nil
}
