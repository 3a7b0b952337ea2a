// Package avatar stores uploaded profile pictures as square JPEG thumbnails.
package avatar

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
)

// URLPrefix is where cmd/api serves the avatar directory.
const URLPrefix = "/avatars/"

var ErrBadImage = errors.New("avatar: cannot decode image")

type Store struct {
	dir  string
	size int
}

func NewStore(dir string, size int) *Store {
	if size <= 0 {
		size = 256
	}
	return &Store{dir: dir, size: size}
}

// Save decodes r, crops it to a centered square of the configured size and
// writes it under a content-addressed name. It returns the public path.
func (s *Store) Save(r io.Reader) (string, error) {
	im, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadImage, err)
	}
	out := imaging.Fill(im, s.size, s.size, imaging.Center, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return "", err
	}
	h := sha256.Sum256(buf.Bytes())
	name := hex.EncodeToString(h[:16]) + ".jpg"

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", err
	}
	dst := filepath.Join(s.dir, name)
	if _, err := os.Stat(dst); err == nil {
		// same picture uploaded before
		return URLPrefix + name, nil
	}
	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", err
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return URLPrefix + name, nil
}
