// Package upload validates files offered for attachment.
package upload

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// AllowedExtensions lists the file extensions accepted for upload, lowercase
// and without the dot.
var AllowedExtensions = []string{
	"png", "jpg", "jpeg", "gif", "webp",
	"pdf",
	"xls", "xlsx", "csv",
	"txt", "log",
}

var (
	// ErrExecutable rejects executables outright.
	ErrExecutable = errors.New("executable files (.exe) cannot be uploaded")
	// ErrExtension rejects any other extension outside the allow-list.
	ErrExtension = errors.New("file type not allowed")
)

// Ext returns the lowercase extension of name without the dot, or "" when
// name has none.
func Ext(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx == -1 {
		return ""
	}
	return strings.ToLower(name[idx+1:])
}

// Check returns nil when name may be uploaded.
func Check(name string) error {
	ext := Ext(name)
	if ext == "exe" {
		return ErrExecutable
	}
	if !slices.Contains(AllowedExtensions, ext) {
		return fmt.Errorf("%w: %s", ErrExtension, name)
	}
	return nil
}

// Partition splits names into accepted and rejected, preserving order. The
// returned error describes the first rejected name, or is nil when all pass.
func Partition(names []string) (accepted, rejected []string, err error) {
	for _, n := range names {
		if cerr := Check(n); cerr != nil {
			if err == nil {
				err = cerr
			}
			rejected = append(rejected, n)
			continue
		}
		accepted = append(accepted, n)
	}
	return accepted, rejected, err
}

// Accept returns the accept attribute value for a file input.
func Accept() string {
	dotted := make([]string, len(AllowedExtensions))
	for i, e := range AllowedExtensions {
		dotted[i] = "." + e
	}
	return strings.Join(dotted, ",")
}

// FormatSize renders a byte count as KB below one megabyte, MB above.
func FormatSize(bytes int64) string {
	kb := float64(bytes) / 1024
	if kb < 1024 {
		return fmt.Sprintf("%.0fKB", kb)
	}
	return fmt.Sprintf("%.1fMB", kb/1024)
}
