package vi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/tools/txtar"
)

// SourceExt is appended to import locators that have no extension.
const SourceExt = ".vi"

// DefaultHTTPTimeout bounds a single URL import fetch.
const DefaultHTTPTimeout = 15 * time.Second

// Loader returns the source text stored at a canonical location. A missing
// source is reported with an error wrapping ErrNotFound.
type Loader interface {
	Load(ctx context.Context, location string) (string, error)
}

// FileLoader reads sources from the local file system.
type FileLoader struct{}

func (FileLoader) Load(ctx context.Context, location string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	b, err := os.ReadFile(location)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%s: %w", location, ErrNotFound)
	}
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// HTTPLoader fetches sources from http and https URLs.
type HTTPLoader struct {
	Client *http.Client
}

// NewHTTPLoader returns an HTTPLoader whose requests time out after timeout.
func NewHTTPLoader(timeout time.Duration) *HTTPLoader {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	return &HTTPLoader{Client: &http.Client{Timeout: timeout}}
}

func (l *HTTPLoader) Load(ctx context.Context, location string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return "", err
	}
	resp, err := l.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", fmt.Errorf("%s: %w", location, ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("%s: http %d", location, resp.StatusCode)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ArchiveLoader serves sources from an in-memory txtar archive. File names
// are matched after cleaning, relative to the archive root.
type ArchiveLoader struct {
	files map[string]string
}

// NewArchiveLoader indexes the files of a.
func NewArchiveLoader(a *txtar.Archive) *ArchiveLoader {
	l := &ArchiveLoader{files: make(map[string]string, len(a.Files))}
	for _, f := range a.Files {
		l.files[path.Clean(filepath.ToSlash(f.Name))] = string(f.Data)
	}
	return l
}

// ParseArchive builds an ArchiveLoader from txtar-formatted data.
func ParseArchive(data []byte) *ArchiveLoader {
	return NewArchiveLoader(txtar.Parse(data))
}

func (l *ArchiveLoader) Load(ctx context.Context, location string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	src, ok := l.files[path.Clean(filepath.ToSlash(location))]
	if !ok {
		return "", fmt.Errorf("%s: %w", location, ErrNotFound)
	}
	return src, nil
}

// SchemeLoader sends URL locations to Remote and everything else to Local.
type SchemeLoader struct {
	Local  Loader
	Remote Loader
}

// DefaultLoader reads local files and fetches URLs with the given timeout.
func DefaultLoader(timeout time.Duration) *SchemeLoader {
	return &SchemeLoader{Local: FileLoader{}, Remote: NewHTTPLoader(timeout)}
}

func (l *SchemeLoader) Load(ctx context.Context, location string) (string, error) {
	if isURL(location) {
		if l.Remote == nil {
			return "", fmt.Errorf("%s: remote imports are disabled", location)
		}
		return l.Remote.Load(ctx, location)
	}
	return l.Local.Load(ctx, location)
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// resolveLocation turns an import locator into a canonical location relative
// to the importing file.
func resolveLocation(importer, locator string) (string, error) {
	switch {
	case isURL(locator):
		u, err := url.Parse(locator)
		if err != nil {
			return "", fmt.Errorf("invalid import url: %w", err)
		}
		if path.Ext(u.Path) == "" {
			u.Path = strings.TrimSuffix(u.Path, "/") + SourceExt
		}
		return u.String(), nil

	case isURL(importer):
		base, err := url.Parse(importer)
		if err != nil {
			return "", fmt.Errorf("invalid importer url: %w", err)
		}
		ref, err := url.Parse(filepath.ToSlash(locator))
		if err != nil {
			return "", fmt.Errorf("invalid import path: %w", err)
		}
		u := base.ResolveReference(ref)
		if path.Ext(u.Path) == "" {
			u.Path += SourceExt
		}
		return u.String(), nil
	}

	loc := filepath.FromSlash(strings.ReplaceAll(locator, `\`, "/"))
	if !filepath.IsAbs(loc) && importer != "" {
		loc = filepath.Join(filepath.Dir(importer), loc)
	}
	loc = filepath.Clean(loc)
	if filepath.Ext(loc) == "" {
		loc += SourceExt
	}
	return loc, nil
}
