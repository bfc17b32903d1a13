// Package archive exports approved reports as compressed MessagePack
// bundles. Bundles are self-describing: a manifest travels with the
// rows so a bundle can be inspected without the live database.
package archive

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/facility-logbook/backend/internal/models"
)

// BundleVersion guards against reading bundles written by a newer format.
const BundleVersion = 1

const bundleExt = ".msgpack.gz"

// Manifest describes what a bundle contains.
type Manifest struct {
	Version     int       `msgpack:"version" json:"version"`
	GeneratedAt time.Time `msgpack:"generatedAt" json:"generatedAt"`
	GeneratedBy string    `msgpack:"generatedBy" json:"generatedBy"`
	From        time.Time `msgpack:"from" json:"from"`
	To          time.Time `msgpack:"to" json:"to"`
	Count       int       `msgpack:"count" json:"count"`
	Types       []string  `msgpack:"types" json:"types"`
}

// Bundle is the on-disk unit: one manifest plus its report rows.
type Bundle struct {
	Manifest Manifest        `msgpack:"manifest"`
	Reports  []models.Report `msgpack:"reports"`
}

// Info describes a stored bundle file.
type Info struct {
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
}

// Filename is the canonical bundle file name for the manifest's
// generation time.
func (b *Bundle) Filename() string {
	return fmt.Sprintf("reports_%s%s", b.Manifest.GeneratedAt.UTC().Format("20060102_150405"), bundleExt)
}

// Encode writes the bundle to w in its wire format.
func (b *Bundle) Encode(w io.Writer) error {
	gz := gzip.NewWriter(w)
	if err := msgpack.NewEncoder(gz).Encode(b); err != nil {
		return fmt.Errorf("encode bundle: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("finish bundle: %w", err)
	}
	return nil
}

// NewBundle assembles a bundle from report rows, filling the manifest.
func NewBundle(reports []models.Report, from, to time.Time, generatedBy string, now time.Time) *Bundle {
	typeSet := make(map[string]struct{})
	for _, r := range reports {
		typeSet[string(r.ReportType)] = struct{}{}
	}
	types := make([]string, 0, len(typeSet))
	for t := range typeSet {
		types = append(types, t)
	}
	sort.Strings(types)

	return &Bundle{
		Manifest: Manifest{
			Version:     BundleVersion,
			GeneratedAt: now,
			GeneratedBy: generatedBy,
			From:        from,
			To:          to,
			Count:       len(reports),
			Types:       types,
		},
		Reports: reports,
	}
}

// Write stores the bundle in dir and returns its file info. File names
// are derived from the generation time so listings sort naturally.
func Write(dir string, b *Bundle) (*Info, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	name := b.Filename()
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create bundle file: %w", err)
	}
	defer f.Close()

	if err := b.Encode(f); err != nil {
		os.Remove(path)
		return nil, err
	}

	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return &Info{Name: name, Size: st.Size(), CreatedAt: b.Manifest.GeneratedAt}, nil
}

// Read loads a bundle back from disk.
func Read(path string) (*Bundle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("open bundle: %w", err)
	}
	defer gz.Close()

	var b Bundle
	if err := msgpack.NewDecoder(gz).Decode(&b); err != nil {
		return nil, fmt.Errorf("decode bundle: %w", err)
	}
	if b.Manifest.Version > BundleVersion {
		return nil, fmt.Errorf("bundle version %d is newer than supported %d", b.Manifest.Version, BundleVersion)
	}
	return &b, nil
}

// List enumerates bundles in dir, newest first.
func List(dir string) ([]Info, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []Info
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), bundleExt) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, Info{
			Name:      e.Name(),
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name > out[j].Name })
	return out, nil
}

// Resolve maps a bundle name to its path inside dir, rejecting names
// that try to escape it.
func Resolve(dir, name string) (string, error) {
	if name == "" || strings.Contains(name, "/") || strings.Contains(name, "\\") || strings.Contains(name, "..") {
		return "", fmt.Errorf("invalid bundle name %q", name)
	}
	if !strings.HasSuffix(name, bundleExt) {
		return "", fmt.Errorf("not a bundle file: %q", name)
	}
	return filepath.Join(dir, name), nil
}
