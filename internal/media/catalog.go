// Package media indexes the knowledge-base images and documents shipped
// alongside the bot.
package media

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Kinds of media served by the catalog.
const (
	KindImages    = "images"
	KindDocuments = "documents"
	KindVideos    = "videos"
)

// DefaultProduct is the image name used for the product picture.
const DefaultProduct = "unigrow"

// ErrNotFound is returned for unknown kinds and missing files.
var ErrNotFound = errors.New("media not found")

// Item describes one file.
type Item struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
	URL      string    `json:"url"`
}

// Metadata lists every file per kind.
type Metadata struct {
	Images    []Item `json:"images"`
	Documents []Item `json:"documents"`
	Videos    []Item `json:"videos"`
}

// Catalog reads media from dir/{images,documents,videos}.
type Catalog struct {
	dir    string
	logger *slog.Logger
}

// NewCatalog creates a Catalog rooted at dir. The directory may not exist yet.
func NewCatalog(dir string, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{dir: dir, logger: logger}
}

// URL is the public path of a media file.
func URL(kind, name string) string {
	return "/media/" + kind + "/" + name
}

// ProductImageURL returns the public URL of <product>.png when the file exists.
func (c *Catalog) ProductImageURL(product string) (string, bool) {
	name := product + ".png"
	if _, err := c.Path(KindImages, name); err != nil {
		c.logger.Warn("product image not found", "name", name)
		return "", false
	}
	return URL(KindImages, name), true
}

// Document returns the path of a document when it exists.
func (c *Catalog) Document(name string) (string, bool) {
	p, err := c.Path(KindDocuments, name)
	if err != nil {
		c.logger.Warn("document not found", "name", name)
		return "", false
	}
	return p, true
}

// Path resolves a file of the given kind. Names containing path separators
// are rejected.
func (c *Catalog) Path(kind, name string) (string, error) {
	if !validKind(kind) || name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", ErrNotFound
	}
	p := filepath.Join(c.dir, kind, name)
	info, err := os.Stat(p)
	if err != nil || info.IsDir() {
		return "", ErrNotFound
	}
	return p, nil
}

// Images lists the image file names.
func (c *Catalog) Images() ([]string, error) {
	return c.names(KindImages)
}

// Documents lists the document file names.
func (c *Catalog) Documents() ([]string, error) {
	return c.names(KindDocuments)
}

// Metadata returns name, size and modification time for every file.
func (c *Catalog) Metadata() (Metadata, error) {
	var md Metadata
	var err error
	if md.Images, err = c.items(KindImages); err != nil {
		return Metadata{}, err
	}
	if md.Documents, err = c.items(KindDocuments); err != nil {
		return Metadata{}, err
	}
	if md.Videos, err = c.items(KindVideos); err != nil {
		return Metadata{}, err
	}
	return md, nil
}

func (c *Catalog) names(kind string) ([]string, error) {
	items, err := c.items(kind)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(items))
	for _, it := range items {
		names = append(names, it.Name)
	}
	return names, nil
}

func (c *Catalog) items(kind string) ([]Item, error) {
	entries, err := os.ReadDir(filepath.Join(c.dir, kind))
	if errors.Is(err, fs.ErrNotExist) {
		return []Item{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", kind, err)
	}

	items := make([]Item, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s/%s: %w", kind, e.Name(), err)
		}
		items = append(items, Item{
			Name:     e.Name(),
			Size:     info.Size(),
			Modified: info.ModTime(),
			URL:      URL(kind, e.Name()),
		})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items, nil
}

func validKind(kind string) bool {
	switch kind {
	case KindImages, KindDocuments, KindVideos:
		return true
	}
	return false
}
