package safeio

import (
	"bytes"
	"io"
	"os"
	"strings"

	"jdsx/internal/errs"
)

// Role is the shape a path must have to be accepted.
type Role int

const (
	RoleFile Role = iota
	RoleDir
	RoleAny
)

// DEX magic headers for format versions 035 and 036.
var dexMagics = [][]byte{
	[]byte("dex\n035\x00"),
	[]byte("dex\n036\x00"),
}

const dexMagicLen = 8

// RequireExists checks that path exists, has the shape role asks for and,
// for files, can be opened for reading. what names the path in messages.
func RequireExists(path string, role Role, what string) error {
	const op = "require"
	if strings.TrimSpace(path) == "" {
		return errs.Newf(errs.InvalidArgument, op, "%s cannot be empty", what)
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &errs.Error{Code: errs.MissingArtifact, Op: op, Message: what + " does not exist", Path: path}
		}
		return &errs.Error{Code: errs.MissingArtifact, Op: op, Message: what + " is not accessible", Path: path, Cause: err}
	}
	switch {
	case role == RoleFile && !info.Mode().IsRegular():
		return &errs.Error{Code: errs.MissingArtifact, Op: op, Message: what + " is not a regular file", Path: path}
	case role == RoleDir && !info.IsDir():
		return &errs.Error{Code: errs.MissingArtifact, Op: op, Message: what + " is not a directory", Path: path}
	case role == RoleAny && !info.IsDir() && !info.Mode().IsRegular():
		return &errs.Error{Code: errs.MissingArtifact, Op: op, Message: what + " is neither a file nor a directory", Path: path}
	}
	if info.IsDir() {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return &errs.Error{Code: errs.MissingArtifact, Op: op, Message: what + " is not readable", Path: path, Cause: err}
	}
	return f.Close()
}

// RequireNonEmpty checks that path is a non-empty file or a directory with
// at least one entry.
func RequireNonEmpty(path, what string) error {
	const op = "require"
	info, err := os.Stat(path)
	if err != nil {
		return &errs.Error{Code: errs.MissingArtifact, Op: op, Message: what + " was not produced", Path: path}
	}
	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil || len(entries) == 0 {
			return &errs.Error{Code: errs.MissingArtifact, Op: op, Message: what + " is an empty directory", Path: path}
		}
		return nil
	}
	if info.Size() == 0 {
		return &errs.Error{Code: errs.MissingArtifact, Op: op, Message: what + " is empty", Path: path}
	}
	return nil
}

// IsValidDex reports whether the first 8 bytes of path are a DEX magic
// header. It never fails: unreadable or short files are simply not DEX.
func IsValidDex(path string) bool {
	if strings.TrimSpace(path) == "" {
		return false
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	header := make([]byte, dexMagicLen)
	if _, err := io.ReadFull(f, header); err != nil {
		return false
	}
	for _, magic := range dexMagics {
		if bytes.Equal(header, magic) {
			return true
		}
	}
	return false
}
