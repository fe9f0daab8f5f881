// Package packaging turns built cartridges into .imscc zip archives.
//
// Archives are deterministic: the manifest is always the first entry,
// payload files follow in manifest order, and every entry carries the same
// pinned timestamp. Identical input bytes produce identical archive bytes.
package packaging

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cartwright/pkg/cartridge"
	"cartwright/pkg/errors"
)

// zipEpoch pins entry timestamps. Without it every run stamps wall-clock
// time into the archive and byte-identical output is impossible. 1980-01-01
// is the earliest date the zip format can represent.
var zipEpoch = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

// Artifact is a finished cartridge archive ready to persist or stream.
type Artifact struct {
	Name  string   // suggested filename derived from the course title
	Data  []byte   // complete zip archive
	Paths []string // entry paths in archive order, manifest first
}

// Archive serializes the manifest and zips it together with the package
// payload files. The manifest is written first at [cartridge.ManifestPath];
// payload files follow in package order.
//
// Archive paths are checked for collisions once more before writing. The
// manifest builder cannot emit colliding paths, but a collision slipping
// through would silently drop a file inside the zip, so the writer refuses
// with a PACKAGING_ERROR naming both owners instead.
func Archive(pkg *cartridge.Package) (*Artifact, error) {
	manifest, err := cartridge.Serialize(pkg.Manifest)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	write := func(path string, data []byte) error {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     path,
			Method:   zip.Deflate,
			Modified: zipEpoch,
		})
		if err != nil {
			return errors.Wrap(errors.ErrCodePackaging, err, "failed to add %s to archive", path)
		}
		if _, err := w.Write(data); err != nil {
			return errors.Wrap(errors.ErrCodePackaging, err, "failed to write %s to archive", path)
		}
		return nil
	}

	if err := write(cartridge.ManifestPath, manifest); err != nil {
		return nil, err
	}

	owners := map[string]string{cartridge.ManifestPath: pkg.Manifest.Identifier}
	paths := []string{cartridge.ManifestPath}
	for _, f := range pkg.Files {
		if other, ok := owners[f.Path]; ok {
			return nil, errors.New(errors.ErrCodePackaging,
				"resources %s and %s share archive path %q", other, f.Resource, f.Path)
		}
		owners[f.Path] = f.Resource

		if err := write(f.Path, f.Data); err != nil {
			return nil, err
		}
		paths = append(paths, f.Path)
	}

	if err := zw.Close(); err != nil {
		return nil, errors.Wrap(errors.ErrCodePackaging, err, "failed to finalize archive")
	}

	return &Artifact{
		Name:  Filename(pkg.Manifest.Title),
		Data:  buf.Bytes(),
		Paths: paths,
	}, nil
}

// Read reconstructs an artifact from archive bytes, recovering the entry
// paths from the zip directory. Callers serving a cached archive use it to
// hand out the same Artifact shape a fresh build would produce.
func Read(name string, data []byte) (*Artifact, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodePackaging, err, "failed to read archive %s", name)
	}
	paths := make([]string, len(zr.File))
	for i, f := range zr.File {
		paths[i] = f.Name
	}
	return &Artifact{Name: name, Data: data, Paths: paths}, nil
}

// Save writes the artifact to path atomically. Bytes land in a temp file in
// the destination directory and are renamed into place only once fully
// written, so an interrupted run never leaves a partial archive at path.
func Save(a *Artifact, path string) error {
	if err := errors.ValidateOutputPath(path); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(errors.ErrCodePackaging, err, "failed to create output directory %s", dir)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, a.Data, 0644); err != nil {
		return errors.Wrap(errors.ErrCodePackaging, err, "failed to write %s", tmpPath)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath) // cleanup on failure
		return errors.Wrap(errors.ErrCodePackaging, err, "failed to move archive to %s", path)
	}

	return nil
}

// Filename derives a download filename from a course title. Spaces become
// underscores and path separators are flattened, matching the name importing
// users see: "Intro to Go" becomes "Intro_to_Go.imscc".
func Filename(title string) string {
	name := strings.TrimSpace(title)
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	if name == "" {
		name = "package"
	}
	return name + ".imscc"
}
