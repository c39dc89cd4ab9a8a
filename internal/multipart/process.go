package multipart

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// UploadPolicy decides what happens to a part carrying a filename.
type UploadPolicy int

const (
	// PolicyAllow stages file uploads to disk. The default.
	PolicyAllow UploadPolicy = iota
	// PolicyReject fails the request outright on the first file part.
	PolicyReject
	// PolicyIgnore discards file part bytes while still consuming the stream.
	PolicyIgnore
)

// ContentTooLarge mirrors the bodystream sentinel so callers can map it to
// a 413 response the same way.
type ContentTooLarge struct {
	Limit int64
}

func (e *ContentTooLarge) Error() string {
	return fmt.Sprintf("multipart: content exceeds limit of %d bytes", e.Limit)
}

// Rejected is returned when PolicyReject encounters a file upload part.
var Rejected = errors.New("multipart: file upload rejected by policy")

// FileInfo describes one staged (or otherwise disposed-of) file upload.
type FileInfo struct {
	FieldName   string
	Filename    string
	ContentType string
	Path        string // empty if the part was ignored rather than staged
	Size        int64
}

// Options configures Process.
type Options struct {
	Policy               UploadPolicy
	MaxFileSize          int64 // 0 = unlimited
	MaxRequestSize       int64 // 0 = unlimited; must be >= MaxFileSize when both set
	MaxFieldSize         int64 // 0 = unlimited, per spec §9 open question (c)
	TempDir              string
	FilenamePrefix       string
	FilenameSuffix       string
	DeleteTemporaryFiles bool
}

// Result is the outcome of Process: accumulated form parameters, staged
// file descriptors, and (if DeleteTemporaryFiles is set) a cleanup func
// that removes every staged file regardless of success or failure.
type Result struct {
	Parameters map[string][]string
	Files      []FileInfo
	cleanup    []string
}

// Cleanup removes every staged temporary file. Safe to call even when
// DeleteTemporaryFiles was false (it is then a no-op).
func (r *Result) Cleanup() {
	for _, path := range r.cleanup {
		_ = os.Remove(path)
	}
}

// Process drains body as a multipart/form-data stream, routing each part
// to the parameter map or to a staged file per opt.Policy.
func Process(body io.Reader, boundary string, opt Options) (*Result, error) {
	scanner := NewScanner(body, boundary)
	result := &Result{Parameters: make(map[string][]string)}

	var totalBytes int64

	for {
		part, err := scanner.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return result, err
		}

		if part.Filename == "" {
			data, n, err := readLimited(part.Body, opt.MaxFieldSize)
			totalBytes += n
			if err != nil {
				return result, err
			}
			if opt.MaxRequestSize > 0 && totalBytes > opt.MaxRequestSize {
				return result, &ContentTooLarge{Limit: opt.MaxRequestSize}
			}
			result.Parameters[part.FieldName] = append(result.Parameters[part.FieldName], string(data))
			continue
		}

		switch opt.Policy {
		case PolicyReject:
			return result, Rejected
		case PolicyIgnore:
			n, err := io.Copy(io.Discard, part.Body)
			totalBytes += n
			if err != nil {
				return result, err
			}
			result.Files = append(result.Files, FileInfo{
				FieldName:   part.FieldName,
				Filename:    part.Filename,
				ContentType: part.Headers.Get("Content-Type"),
			})
		default: // PolicyAllow
			info, n, err := stageFile(part, opt)
			totalBytes += n
			if err != nil {
				return result, err
			}
			if opt.MaxRequestSize > 0 && totalBytes > opt.MaxRequestSize {
				if opt.DeleteTemporaryFiles {
					_ = os.Remove(info.Path)
				}
				return result, &ContentTooLarge{Limit: opt.MaxRequestSize}
			}
			result.Files = append(result.Files, info)
			if opt.DeleteTemporaryFiles {
				result.cleanup = append(result.cleanup, info.Path)
			}
		}
	}

	return result, nil
}

func readLimited(r io.Reader, limit int64) ([]byte, int64, error) {
	if limit <= 0 {
		data, err := io.ReadAll(r)
		return data, int64(len(data)), err
	}
	lr := io.LimitReader(r, limit+1)
	data, err := io.ReadAll(lr)
	if err != nil {
		return data, int64(len(data)), err
	}
	if int64(len(data)) > limit {
		return data, int64(len(data)), &ContentTooLarge{Limit: limit}
	}
	return data, int64(len(data)), nil
}

func stageFile(part *Part, opt Options) (FileInfo, int64, error) {
	dir := opt.TempDir
	if dir == "" {
		dir = os.TempDir()
	}
	name := opt.FilenamePrefix + uuid.NewString() + opt.FilenameSuffix
	path := filepath.Join(dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return FileInfo{}, 0, err
	}
	defer f.Close()

	var src io.Reader = part.Body
	if opt.MaxFileSize > 0 {
		src = io.LimitReader(part.Body, opt.MaxFileSize+1)
	}

	n, err := io.Copy(f, src)
	if err != nil {
		os.Remove(path)
		return FileInfo{}, n, err
	}
	if opt.MaxFileSize > 0 && n > opt.MaxFileSize {
		os.Remove(path)
		// Drain whatever remains of the part so the scanner can find
		// the next boundary.
		_, _ = io.Copy(io.Discard, part.Body)
		return FileInfo{}, n, &ContentTooLarge{Limit: opt.MaxFileSize}
	}

	return FileInfo{
		FieldName:   part.FieldName,
		Filename:    part.Filename,
		ContentType: part.Headers.Get("Content-Type"),
		Path:        path,
		Size:        n,
	}, n, nil
}
