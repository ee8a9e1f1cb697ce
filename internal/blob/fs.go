package blob

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FSStore guarda blobs como archivos bajo Root.
type FSStore struct {
	root string
	keys KeyOptions
}

// NewFS crea el backend; la raíz debe existir.
func NewFS(root string, keys KeyOptions) (*FSStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("blob: fs root: %w", err)
	}
	st, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("blob: fs root: %w", err)
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("blob: fs root %s is not a directory", abs)
	}
	return &FSStore{root: abs, keys: keys}, nil
}

func (s *FSStore) Name() string { return "fs" }

func (s *FSStore) Delete(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.path(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return fmt.Errorf("blob: fs delete: %w", err)
	}
	return nil
}

// path resuelve la ruta y rechaza claves que escapen de la raíz.
func (s *FSStore) path(ref string) (string, error) {
	key, err := KeyFromRef(ref, s.keys)
	if err != nil {
		return "", err
	}
	p := filepath.Join(s.root, filepath.FromSlash(key))
	if p != s.root && !strings.HasPrefix(p, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s escapes root", ErrInvalidKey, ref)
	}
	return p, nil
}
