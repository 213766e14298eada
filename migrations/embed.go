// Package migrations embeds the sparkify warehouse schema and applies it with golang-migrate.
//
// Migration files follow the 001_name.up.sql / 001_name.down.sql convention and are
// validated before every state-changing operation: names, up/down pairing, a gap-free
// sequence starting at 001, and content checksums.
package migrations

import (
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
)

const (
	directionUp   = "up"
	directionDown = "down"
)

var (
	// ErrNoMigrations is returned when the catalog holds no migration files.
	ErrNoMigrations = errors.New("no embedded migration files found")

	// ErrInvalidFilename is returned for a .sql file that does not follow 001_name.(up|down).sql.
	ErrInvalidFilename = errors.New("invalid migration filename")

	// ErrUnpairedMigration is returned when an up file has no down file or vice versa.
	ErrUnpairedMigration = errors.New("unpaired migration")

	// ErrSequenceGap is returned when versions do not start at 001 or skip a number.
	ErrSequenceGap = errors.New("gap in migration sequence")

	// ErrChecksumMismatch is returned when a file changed after it was first validated.
	ErrChecksumMismatch = errors.New("migration checksum mismatch")
)

//go:embed *.sql
var embeddedMigrations embed.FS

// filenamePattern matches 001_create_dimension_tables.up.sql.
var filenamePattern = regexp.MustCompile(`^(\d{3})_([a-zA-Z0-9_]+)\.(up|down)\.sql$`)

type (
	// Catalog is a validated set of migration files.
	Catalog struct {
		fsys      fs.FS
		checksums map[string]string
	}

	// File describes one parsed migration file.
	File struct {
		Version   int
		Name      string
		Direction string
		Filename  string
	}
)

// NewCatalog returns a catalog over fsys. A nil fsys uses the embedded schema.
func NewCatalog(fsys fs.FS) *Catalog {
	if fsys == nil {
		fsys = embeddedMigrations
	}

	return &Catalog{
		fsys:      fsys,
		checksums: make(map[string]string),
	}
}

// FS returns the file system the catalog reads from.
func (c *Catalog) FS() fs.FS {
	return c.fsys
}

// Files lists the .sql files in lexicographic order, which is also apply order.
// Files with other extensions are ignored; badly named .sql files are an error.
func (c *Catalog) Files() ([]File, error) {
	entries, err := fs.ReadDir(c.fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var files []File

	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".sql" {
			continue
		}

		file, err := parseFilename(entry.Name())
		if err != nil {
			return nil, err
		}

		files = append(files, file)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Filename < files[j].Filename })

	return files, nil
}

// Content returns the SQL of a migration file.
func (c *Catalog) Content(filename string) ([]byte, error) {
	return fs.ReadFile(c.fsys, filename)
}

// LatestVersion returns the highest version in the catalog, or 0 if it is empty.
func (c *Catalog) LatestVersion() int {
	files, err := c.Files()
	if err != nil {
		return 0
	}

	latest := 0

	for _, file := range files {
		latest = max(latest, file.Version)
	}

	return latest
}

// Validate checks naming, pairing, sequence and, after the first call, checksums.
func (c *Catalog) Validate() error {
	files, err := c.Files()
	if err != nil {
		return err
	}

	if len(files) == 0 {
		return ErrNoMigrations
	}

	if err := validatePairing(files); err != nil {
		return err
	}

	if err := validateSequence(files); err != nil {
		return err
	}

	sums := make(map[string]string, len(files))

	for _, file := range files {
		content, err := c.Content(file.Filename)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", file.Filename, err)
		}

		sum := sha256.Sum256(content)
		sums[file.Filename] = hex.EncodeToString(sum[:])

		if previous, seen := c.checksums[file.Filename]; seen && previous != sums[file.Filename] {
			return fmt.Errorf("%w: %s", ErrChecksumMismatch, file.Filename)
		}
	}

	c.checksums = sums

	return nil
}

func parseFilename(filename string) (File, error) {
	matches := filenamePattern.FindStringSubmatch(filename)
	if matches == nil {
		return File{}, fmt.Errorf("%w: %s (expected 001_name.up.sql or 001_name.down.sql)",
			ErrInvalidFilename, filename)
	}

	version, err := strconv.Atoi(matches[1])
	if err != nil {
		return File{}, fmt.Errorf("%w: %s: %w", ErrInvalidFilename, filename, err)
	}

	return File{
		Version:   version,
		Name:      matches[2],
		Direction: matches[3],
		Filename:  filename,
	}, nil
}

func validatePairing(files []File) error {
	directions := make(map[string]map[string]bool)

	for _, file := range files {
		key := fmt.Sprintf("%03d_%s", file.Version, file.Name)
		if directions[key] == nil {
			directions[key] = make(map[string]bool)
		}

		directions[key][file.Direction] = true
	}

	keys := make([]string, 0, len(directions))
	for key := range directions {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	for _, key := range keys {
		switch {
		case !directions[key][directionUp]:
			return fmt.Errorf("%w: %s has no up migration", ErrUnpairedMigration, key)
		case !directions[key][directionDown]:
			return fmt.Errorf("%w: %s has no down migration", ErrUnpairedMigration, key)
		}
	}

	return nil
}

func validateSequence(files []File) error {
	seen := make(map[int]bool)

	var versions []int

	for _, file := range files {
		if !seen[file.Version] {
			seen[file.Version] = true
			versions = append(versions, file.Version)
		}
	}

	sort.Ints(versions)

	for i, version := range versions {
		if want := i + 1; version != want {
			return fmt.Errorf("%w: expected %03d, found %03d", ErrSequenceGap, want, version)
		}
	}

	return nil
}
