package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Local stores files on disk under baseDir/<userID>/<filename>.
type Local struct {
	baseDir string
}

func NewLocal(baseDir string) (*Local, error) {
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve upload dir, %w", err)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir, %w", err)
	}

	return &Local{baseDir: abs}, nil
}

// namespace returns the directory holding one user's files.
func (l *Local) namespace(userID string) string {
	return filepath.Join(l.baseDir, userID)
}

// resolve joins the owner's namespace with name and confirms the result
// didn't escape it. Defense in depth on top of the filename validator.
func (l *Local) resolve(userID, name string) (string, error) {
	ns := l.namespace(userID)
	p := filepath.Clean(filepath.Join(ns, name))
	if !strings.HasPrefix(p, ns+string(filepath.Separator)) {
		return "", ErrUnsafeName
	}
	return p, nil
}

func (l *Local) Put(ctx context.Context, userID, filename string, r io.Reader, size int64, contentType string) (*StoredFile, error) {
	p, err := l.resolve(userID, filename)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(l.namespace(userID), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create user namespace, %w", err)
	}

	dst, err := os.Create(p)
	if err != nil {
		return nil, fmt.Errorf("failed to create file, %w", err)
	}
	defer dst.Close()

	written, err := io.Copy(dst, r)
	if err != nil {
		os.Remove(p)
		return nil, fmt.Errorf("failed to write file, %w", err)
	}

	stat, err := dst.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file, %w", err)
	}

	return &StoredFile{
		Filename:    filename,
		Size:        written,
		ContentType: contentType,
		Location:    p,
		CreatedAt:   stat.ModTime(),
	}, nil
}

func (l *Local) List(ctx context.Context, userID string) ([]StoredFile, error) {
	entries, err := os.ReadDir(l.namespace(userID))
	if err != nil {
		if os.IsNotExist(err) {
			return []StoredFile{}, nil
		}
		return nil, fmt.Errorf("failed to read user namespace, %w", err)
	}

	files := make([]StoredFile, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}

		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s, %w", e.Name(), err)
		}

		files = append(files, StoredFile{
			Filename:  e.Name(),
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
		})
	}

	return files, nil
}

func (l *Local) Delete(ctx context.Context, userID, filename string) error {
	p, err := l.resolve(userID, filename)
	if err != nil {
		return err
	}

	stat, err := os.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to stat file, %w", err)
	}

	if !stat.Mode().IsRegular() {
		return ErrNotFound
	}

	if err := os.Remove(p); err != nil {
		return fmt.Errorf("failed to remove file, %w", err)
	}

	return nil
}
