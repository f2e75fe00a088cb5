package credential

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"syscall"

	"github.com/mkrupp/localauth/internal/infra/logging"
)

var (
	ErrInvalidKey           = errors.New("invalid key")
	ErrBytesWrittenMismatch = errors.New("bytes written mismatch")
)

//nolint:gochecknoglobals
var validKey = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// FileSystemStoreConfig holds configuration for the filesystem-based store.
type FileSystemStoreConfig struct {
	// Basedir is the directory holding one file per key
	Basedir string `env:"BASEDIR" default:"var/storage/credentials"`
}

// FileSystemStore implements Store by keeping each key in its own JSON file.
// Writes go to a temporary file that is renamed into place, and a flock on a
// sibling lock file serialises access across processes.
type FileSystemStore struct {
	cfg FileSystemStoreConfig
	log logging.Logger
	m   *sync.Mutex
}

var _ Store = (*FileSystemStore)(nil)

// NewFileSystemStore creates the base directory if needed and returns a store rooted there.
func NewFileSystemStore(ctx context.Context, cfg FileSystemStoreConfig) (*FileSystemStore, error) {
	store := &FileSystemStore{
		cfg: cfg,
		log: logging.GetLogger("repo.credential.filesystem_store").With(
			logging.Group("store", "basedir", cfg.Basedir),
		),
		m: new(sync.Mutex),
	}

	if err := store.initStorage(ctx); err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	return store, nil
}

// GetFilename returns the file backing key.
func (s *FileSystemStore) GetFilename(key string) string {
	return filepath.Join(s.cfg.Basedir, key+".json")
}

// Load implements Store.Load.
func (s *FileSystemStore) Load(ctx context.Context, key string) (value []byte, err error) {
	filename := s.GetFilename(key)

	defer func() {
		log := s.log.With(logging.Group("entry", "key", key, "filename", filename))
		if err != nil {
			log.ErrorContext(ctx, "load failed", "error", err)
		} else {
			log.DebugContext(ctx, "loaded", "size", len(value))
		}
	}()

	if !validKey.MatchString(key) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	release, err := s.flock(ctx, filename, syscall.LOCK_SH)
	if err != nil {
		return nil, fmt.Errorf("flock: %w", err)
	}
	defer release()

	value, err = os.ReadFile(filename)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("read file: %w", err)
	}

	return value, nil
}

// Save implements Store.Save.
func (s *FileSystemStore) Save(ctx context.Context, key string, value []byte) (err error) {
	filename := s.GetFilename(key)

	defer func() {
		log := s.log.With(logging.Group("entry", "key", key, "filename", filename))
		if err != nil {
			log.ErrorContext(ctx, "save failed", "error", err)
		} else {
			log.DebugContext(ctx, "saved", "size", len(value))
		}
	}()

	if !validKey.MatchString(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	s.m.Lock()
	defer s.m.Unlock()

	release, err := s.flock(ctx, filename, syscall.LOCK_EX)
	if err != nil {
		return fmt.Errorf("flock: %w", err)
	}
	defer release()

	tmp, err := os.CreateTemp(filepath.Dir(filename), filepath.Base(filename)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}

	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	n, err := tmp.Write(value)
	if err != nil {
		_ = tmp.Close()

		return fmt.Errorf("write: %w", err)
	} else if n != len(value) {
		_ = tmp.Close()

		return fmt.Errorf("%w: expected %d, got %d", ErrBytesWrittenMismatch, len(value), n)
	}

	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()

		return fmt.Errorf("sync: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}

	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("chmod: %w", err)
	}

	if err := os.Rename(tmp.Name(), filename); err != nil {
		return fmt.Errorf("rename: %w", err)
	}

	return nil
}

// Close implements Store.Close.
func (s *FileSystemStore) Close() error {
	return nil
}

func (s *FileSystemStore) initStorage(ctx context.Context) (err error) {
	defer func() {
		if err != nil {
			s.log.ErrorContext(ctx, "init storage failed", "error", err)
		} else {
			s.log.DebugContext(ctx, "init storage")
		}
	}()

	if err := os.MkdirAll(s.cfg.Basedir, 0o700); err != nil {
		return fmt.Errorf("mkdir all: %w", err)
	}

	return nil
}

func (s *FileSystemStore) flock(ctx context.Context, filename string, mode int) (release func(), err error) {
	lockfile := filename + ".lock"
	log := s.log.With(logging.Group("entry", "lockfile", lockfile))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "lock failed", "error", err)
		} else {
			log.DebugContext(ctx, "lock acquired")
		}
	}()

	file, err := os.OpenFile(lockfile, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	if err := syscall.Flock(int(file.Fd()), mode); err != nil {
		_ = file.Close()

		return nil, fmt.Errorf("flock: %w", err)
	}

	return func() {
		_ = syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
		_ = file.Close()

		log.DebugContext(ctx, "lock released")
	}, nil
}
