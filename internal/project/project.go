// Package project resolves the local directory being pushed and owns its
// `.pushbox/` metadata: the run journal, log files, and the run lock that
// keeps concurrent pushes of the same tree apart.
package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	"github.com/pushbox/pushbox/internal/utils"
)

const (
	// MetadataDirName is the per-project state directory. It is never
	// transferred.
	MetadataDirName = ".pushbox"

	// IgnoreFileName holds gitignore-style exclusion rules at the project
	// root. Unlike the metadata dir it is part of the tree and transfers.
	IgnoreFileName = ".pushignore"

	logsDir     = "logs"
	lockFile    = "push.lock"
	journalFile = "journal.db"
	logFile     = "push.log"
)

var ErrProjectLocked = errors.New("project locked by another push")

// Project is the local source tree plus the paths of its pushbox state.
type Project struct {
	Root        string
	MetadataDir string
	LogsDir     string
	JournalPath string
	LogFilePath string
	IgnorePath  string

	flock *flock.Flock
}

func New(rootDir string) (*Project, error) {
	root, err := utils.ResolvePath(rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", rootDir, err)
	}

	metadataDir := filepath.Join(root, MetadataDirName)
	lockFilePath := filepath.Join(metadataDir, lockFile)

	return &Project{
		Root:        root,
		MetadataDir: metadataDir,
		LogsDir:     filepath.Join(metadataDir, logsDir),
		JournalPath: filepath.Join(metadataDir, journalFile),
		LogFilePath: filepath.Join(metadataDir, logsDir, logFile),
		IgnorePath:  filepath.Join(root, IgnoreFileName),
		flock:       flock.New(lockFilePath),
	}, nil
}

// Setup creates the metadata directories. It does not take the run lock;
// read-only commands like history need the layout without excluding a
// concurrent push.
func (p *Project) Setup() error {
	for _, dir := range []string{p.MetadataDir, p.LogsDir} {
		if err := utils.EnsureDir(dir); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// Lock takes the project run lock so other pushbox instances cannot push the
// same tree concurrently.
func (p *Project) Lock() error {
	if err := utils.EnsureDir(p.MetadataDir); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", p.MetadataDir, err)
	}

	locked, err := p.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to lock project: %w", err)
	}
	if !locked {
		return ErrProjectLocked
	}

	return nil
}

func (p *Project) Unlock() error {
	// if this process doesn't hold the lock, leave the lock file alone
	if !p.flock.Locked() {
		return nil
	}

	if err := p.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to unlock project: %w", err)
	}

	return os.Remove(p.flock.Path())
}

// RelPath returns the root-relative, forward-slash form of absPath, the shape
// exclusion rules match against.
func (p *Project) RelPath(absPath string) (string, error) {
	relPath, err := filepath.Rel(p.Root, absPath)
	if err != nil {
		return "", err
	}
	return NormPath(relPath), nil
}

// NormPath cleans a path, replaces backslashes with slashes, and trims
// leading slashes.
func NormPath(path string) string {
	path = filepath.Clean(path)
	path = strings.ReplaceAll(path, "\\", "/")
	path = strings.TrimLeft(path, "/")
	return path
}
