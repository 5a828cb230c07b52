package bundle

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// fingerprint returns the first eight hex digits of the content hash.
func fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:8]
}

// fingerprintedName inserts "-<hash>" between a file's name and its
// extensions: location.plush.html -> location-3f9a1c2b.plush.html.
func fingerprintedName(filename string, data []byte) string {
	name, ext := filename, ""
	if i := strings.Index(filename, "."); i > 0 {
		name, ext = filename[:i], filename[i:]
	}
	return name + "-" + fingerprint(data) + ext
}

func copyFile(src, dst string) error {
	input, err := os.ReadFile(src)
	if err != nil {
		return errors.WithStack(err)
	}

	if err := os.MkdirAll(filepath.Dir(dst), os.ModePerm); err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(os.WriteFile(dst, input, 0644))
}

// copyTree copies every regular file under src into dst. A missing src is
// not an error.
func copyTree(src, dst string) (int, error) {
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return 0, nil
	}

	copied := 0
	err := filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		copied++
		return copyFile(path, filepath.Join(dst, rel))
	})
	return copied, errors.WithStack(err)
}

// writeFingerprinted copies src into dir under its fingerprinted name and
// returns the new path.
func writeFingerprinted(src, dir string) (string, error) {
	data, err := os.ReadFile(src)
	if err != nil {
		return "", errors.WithStack(err)
	}
	dst := filepath.Join(dir, fingerprintedName(filepath.Base(src), data))
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return "", errors.WithStack(err)
	}
	return dst, errors.WithStack(os.WriteFile(dst, data, 0644))
}
