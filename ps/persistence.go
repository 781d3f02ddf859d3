package ps

import (
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-git/go-billy/v6"
	"github.com/go-git/go-billy/v6/memfs"
	"github.com/go-git/go-billy/v6/osfs"
	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing/cache"
	"github.com/go-git/go-git/v6/storage"
	"github.com/go-git/go-git/v6/storage/filesystem"
	"github.com/go-git/go-git/v6/storage/memory"
)

const dotGitDir = ".git"

var (
	ErrNotInitialized = errors.New("persistence layer not initialized")
	ErrNoChanges      = errors.New("no operations to commit")
)

// Persistence stores collections of JSON records in a git repository. Each
// write is one commit.
type Persistence struct {
	repo         *git.Repository
	mu           sync.RWMutex
	isMemoryMode bool
}

// IsInitialized reports whether p wraps an open repository.
func (p *Persistence) IsInitialized() bool {
	return p != nil && p.repo != nil
}

func (p *Persistence) ensureInitialized() error {
	if !p.IsInitialized() {
		return ErrNotInitialized
	}
	return nil
}

// NewMemoryPersistence starts an empty repository held entirely in memory.
func NewMemoryPersistence() (*Persistence, error) {
	repo, err := git.Init(memory.NewStorage(), git.WithWorkTree(memfs.New()))
	if err != nil {
		return nil, err
	}
	return &Persistence{repo: repo, isMemoryMode: true}, nil
}

// NewFilePersistence opens the repository in baseDir, initializing one when
// baseDir has no .git directory yet.
func NewFilePersistence(baseDir string) (*Persistence, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, err
	}

	worktree := osfs.New(baseDir)
	dotGit, err := worktree.Chroot(dotGitDir)
	if err != nil {
		return nil, err
	}

	repo, err := openOrInit(fileStorage(dotGit), worktree, filepath.Join(baseDir, dotGitDir))
	if err != nil {
		return nil, err
	}
	return &Persistence{repo: repo}, nil
}

func fileStorage(dotGit billy.Filesystem) storage.Storer {
	return filesystem.NewStorageWithOptions(dotGit, cache.NewObjectLRUDefault(),
		filesystem.Options{ExclusiveAccess: true})
}

func openOrInit(storer storage.Storer, worktree billy.Filesystem, gitDir string) (*git.Repository, error) {
	if _, err := os.Stat(gitDir); errors.Is(err, os.ErrNotExist) {
		return git.Init(storer, git.WithWorkTree(worktree))
	}
	return git.Open(storer, worktree)
}
