package fingerprint

import (
	"crypto/sha256"
	"io"
	"os"
	"reposync/internal/model"
)

// Of returns the content digest and mtime of path, or the absent value if
// the file cannot be read.
func Of(path string) model.Fingerprint {
	f, err := os.Open(path)
	if err != nil {
		return model.Fingerprint{}
	}

	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		return model.Fingerprint{}
	}

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return model.Fingerprint{}
	}

	return model.Fingerprint{
		Digest:  h.Sum(nil),
		ModTime: info.ModTime().UnixMilli(),
		Present: true,
	}
}

// Equal reports whether both fingerprints are present with the same digest.
// Modification times are ignored.
func Equal(a, b model.Fingerprint) bool {
	return a.SameContent(b)
}
