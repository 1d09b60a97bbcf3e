package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"videoEditor/worker/domain"
)

// Local stores objects as plain files under a root directory. URLs are paths
// under the API server's download route.
type Local struct {
	root        string
	downloadURL string
}

func NewLocal(root, downloadURL string) (*Local, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, domain.NewError(domain.KindStorage, "create storage root %s: %v", root, err)
	}
	return &Local{root: root, downloadURL: strings.TrimSuffix(downloadURL, "/")}, nil
}

func (l *Local) path(ref string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(ref))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid reference %q", ref)
	}
	return filepath.Join(l.root, clean), nil
}

func (l *Local) Write(ctx context.Context, key string, r io.Reader) (string, error) {
	dest, err := l.path(key)
	if err != nil {
		return "", domain.NewError(domain.KindStorage, "write %s: %v", key, err)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", domain.NewError(domain.KindStorage, "write %s: %v", key, err)
	}
	f, err := os.Create(dest)
	if err != nil {
		return "", domain.NewError(domain.KindStorage, "write %s: %v", key, err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		os.Remove(dest)
		return "", domain.NewError(domain.KindStorage, "write %s: %v", key, err)
	}
	return key, nil
}

func (l *Local) Read(ctx context.Context, ref string) (io.ReadCloser, error) {
	p, err := l.path(ref)
	if err != nil {
		return nil, domain.NewError(domain.KindStorage, "read %s: %v", ref, err)
	}
	f, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, domain.NewError(domain.KindStorage, "read %s: %v", ref, err)
	}
	return f, nil
}

func (l *Local) ResolveURL(ctx context.Context, ref string, ttl time.Duration) (string, error) {
	p, err := l.path(ref)
	if err != nil {
		return "", domain.NewError(domain.KindStorage, "resolve %s: %v", ref, err)
	}
	if _, err := os.Stat(p); err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", domain.NewError(domain.KindStorage, "resolve %s: %v", ref, err)
	}
	return l.downloadURL + "/" + path.Base(filepath.ToSlash(ref)), nil
}

func (l *Local) Delete(ctx context.Context, ref string) error {
	p, err := l.path(ref)
	if err != nil {
		return domain.NewError(domain.KindStorage, "delete %s: %v", ref, err)
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return domain.NewError(domain.KindStorage, "delete %s: %v", ref, err)
	}
	return nil
}

// FilePath maps a published filename back to its on-disk location for the
// download route. The filename is flattened to its base first so a crafted
// name cannot escape the outputs directory.
func (l *Local) FilePath(filename string) string {
	return filepath.Join(l.root, "outputs", filepath.Base(filename))
}
