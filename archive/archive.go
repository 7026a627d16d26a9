package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Extract unpacks src into dest, dispatching on the archive's file
// extension. stripComponents removes that many leading path elements
// from every entry, the way tar --strip-components does.
func Extract(src, dest string, stripComponents int) error {
	switch {
	case strings.HasSuffix(src, ".tar.gz") || strings.HasSuffix(src, ".tgz"):
		return extractTarGz(src, dest, stripComponents)
	case strings.HasSuffix(src, ".tar"):
		return extractTar(src, dest, stripComponents)
	case strings.HasSuffix(src, ".zip"):
		return extractZip(src, dest, stripComponents)
	default:
		return errors.Errorf("unsupported archive format: %s", src)
	}
}

func extractTarGz(src, dest string, stripComponents int) error {
	f, err := os.Open(src)
	if err != nil {
		return errors.Wrapf(err, "failed to open archive %s", src)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "failed to read gzip header of %s", src)
	}
	defer gz.Close()

	return extractTarStream(tar.NewReader(gz), src, dest, stripComponents)
}

func extractTar(src, dest string, stripComponents int) error {
	f, err := os.Open(src)
	if err != nil {
		return errors.Wrapf(err, "failed to open archive %s", src)
	}
	defer f.Close()

	return extractTarStream(tar.NewReader(f), src, dest, stripComponents)
}

func extractTarStream(tr *tar.Reader, src, dest string, stripComponents int) error {
	if err := os.MkdirAll(dest, 0755); err != nil {
		return errors.Wrapf(err, "failed to create %s", dest)
	}

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "failed to read archive %s", src)
		}

		name, ok := stripPath(hdr.Name, stripComponents)
		if !ok {
			continue
		}

		path, err := securePath(dest, name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(path, os.FileMode(hdr.Mode)|0700); err != nil {
				return errors.Wrapf(err, "failed to create directory %s", path)
			}
		case tar.TypeReg:
			if err := writeRegularFile(path, tr, os.FileMode(hdr.Mode)); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := checkLinkTarget(dest, name, hdr.Linkname); err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return errors.Wrapf(err, "failed to create directory for %s", path)
			}
			os.Remove(path)
			if err := os.Symlink(hdr.Linkname, path); err != nil {
				return errors.Wrapf(err, "failed to create symlink %s", path)
			}
		case tar.TypeXGlobalHeader:
			// pax metadata, nothing to materialize
		default:
			// hard links, devices and the like are skipped; source
			// tarballs for native builds don't carry anything we need
			// beyond files, dirs and symlinks
		}
	}
}

func extractZip(src, dest string, stripComponents int) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return errors.Wrapf(err, "failed to open archive %s", src)
	}
	defer r.Close()

	if err := os.MkdirAll(dest, 0755); err != nil {
		return errors.Wrapf(err, "failed to create %s", dest)
	}

	for _, file := range r.File {
		name, ok := stripPath(file.Name, stripComponents)
		if !ok {
			continue
		}

		path, err := securePath(dest, name)
		if err != nil {
			return err
		}

		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(path, file.Mode()|0700); err != nil {
				return errors.Wrapf(err, "failed to create directory %s", path)
			}
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return errors.Wrapf(err, "failed to open %s in %s", file.Name, src)
		}
		err = writeRegularFile(path, rc, file.Mode())
		rc.Close()
		if err != nil {
			return err
		}
	}

	return nil
}

func writeRegularFile(path string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrapf(err, "failed to create directory for %s", path)
	}

	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode.Perm()|0600)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}

	_, err = io.Copy(out, r)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}

	return nil
}

// stripPath drops stripComponents leading elements from an archive
// entry name. Entries shallower than the strip depth produce nothing.
func stripPath(name string, stripComponents int) (string, bool) {
	name = filepath.Clean(filepath.FromSlash(name))
	if stripComponents == 0 {
		return name, name != "."
	}

	parts := strings.Split(name, string(os.PathSeparator))
	if len(parts) <= stripComponents {
		return "", false
	}
	return filepath.Join(parts[stripComponents:]...), true
}

// securePath joins name under dest and rejects entries that would
// escape it (zip-slip).
func securePath(dest, name string) (string, error) {
	path := filepath.Join(dest, name)
	if !strings.HasPrefix(path, filepath.Clean(dest)+string(os.PathSeparator)) {
		return "", errors.Errorf("archive entry %s escapes destination directory", name)
	}
	return path, nil
}

// checkLinkTarget rejects symlinks whose target resolves outside dest.
func checkLinkTarget(dest, name, linkname string) error {
	if filepath.IsAbs(linkname) {
		return errors.Errorf("archive symlink %s has absolute target %s", name, linkname)
	}

	resolved := filepath.Join(dest, filepath.Dir(name), linkname)
	if !strings.HasPrefix(resolved, filepath.Clean(dest)+string(os.PathSeparator)) {
		return errors.Errorf("archive symlink %s escapes destination directory", name)
	}

	return nil
}
