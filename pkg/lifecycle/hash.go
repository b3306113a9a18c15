package lifecycle

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
)

// HashFile computes the MD5 and SHA-256 of the file content in a single
// streaming pass and returns them hex-encoded together with the byte count.
func HashFile(path string) (md5Hex, sha256Hex string, size int64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", "", 0, &HashError{Path: path, Cause: err}
	}
	defer f.Close()

	md5Hash := md5.New()
	shaHash := sha256.New()

	size, err = io.Copy(io.MultiWriter(md5Hash, shaHash), f)
	if err != nil {
		return "", "", 0, &HashError{Path: path, Cause: err}
	}

	return hex.EncodeToString(md5Hash.Sum(nil)), hex.EncodeToString(shaHash.Sum(nil)), size, nil
}

// HashPath hashes the path string itself. It is the fallback identity for
// records whose file cannot be read at ingestion.
func HashPath(path string) (md5Hex, sha256Hex string) {
	m := md5.Sum([]byte(path))
	s := sha256.Sum256([]byte(path))
	return hex.EncodeToString(m[:]), hex.EncodeToString(s[:])
}
