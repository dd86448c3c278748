package input

import (
	"archive/zip"
	"bufio"
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ansible-policy/gatekeeper/internal/errs"
)

// eofMarker is the jobdata stream's terminal JSON line (§6: "Runner
// jobdata format").
type eofMarker struct {
	EOF bool `json:"eof"`
}

// ReadJobdataZip reads a newline-separated jobdata stream up to and
// including its trailing {"eof": true} line and returns the decoded
// ZIP payload bytes.
func ReadJobdataZip(r io.Reader) ([]byte, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)

	var zipLine string
	for scanner.Scan() {
		line := scanner.Text()
		var marker eofMarker
		if json.Unmarshal([]byte(line), &marker) == nil && marker.EOF {
			break
		}
		zipLine = line
	}
	if err := scanner.Err(); err != nil {
		return nil, errs.New(errs.KindScan, "jobdata", err)
	}
	if zipLine == "" {
		return nil, errs.Newf(errs.KindScan, "jobdata", "no zip payload line found before eof marker")
	}

	decoded, err := base64.StdEncoding.DecodeString(zipLine)
	if err != nil {
		return nil, errs.New(errs.KindScan, "jobdata", err)
	}
	return decoded, nil
}

// Acquire extracts a ZIP payload into a freshly allocated temporary
// directory and returns it along with a release function that removes
// the directory. Callers must `defer release()` immediately, giving
// the scoped acquire/release shape used for the teacher's SQLite
// connection lifecycle and crash-log rotation: guaranteed cleanup on
// every exit path regardless of how evaluation of the extracted
// project proceeds.
func Acquire(zipData []byte) (dir string, release func(), err error) {
	dir, err = os.MkdirTemp("", "ansible-policy-jobdata-*")
	if err != nil {
		return "", nil, errs.New(errs.KindScan, "jobdata", err)
	}
	release = func() { _ = os.RemoveAll(dir) }

	if err := extractZip(zipData, dir); err != nil {
		release()
		return "", nil, errs.New(errs.KindScan, "jobdata", err)
	}
	return dir, release, nil
}

func extractZip(data []byte, dest string) error {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return err
	}
	for _, f := range r.File {
		path := filepath.Join(dest, f.Name)
		if !isWithin(dest, path) {
			return errs.Newf(errs.KindScan, f.Name, "zip entry escapes extraction directory")
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(path, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := extractZipFile(f, path); err != nil {
			return err
		}
	}
	return nil
}

func extractZipFile(f *zip.File, path string) error {
	src, err := f.Open()
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode())
	if err != nil {
		return err
	}
	defer func() { _ = dst.Close() }()

	_, err = io.Copy(dst, src)
	return err
}

func isWithin(base, target string) bool {
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
