package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PathValidator confines generated documents to the configured output directory
type PathValidator struct {
	outputDirectory string
}

// NewPathValidator creates a new path validator for the given output directory
func NewPathValidator(outputDirectory string) (*PathValidator, error) {
	if outputDirectory == "" {
		return nil, fmt.Errorf("output directory cannot be empty")
	}
	return &PathValidator{outputDirectory: outputDirectory}, nil
}

// OutputDirectory returns the configured output directory
func (v *PathValidator) OutputDirectory() string {
	return v.outputDirectory
}

// EnsureDirectory creates the output directory if it does not exist
func (v *PathValidator) EnsureDirectory() error {
	info, err := os.Stat(v.outputDirectory)
	if os.IsNotExist(err) {
		return os.MkdirAll(v.outputDirectory, 0o750)
	}
	if err != nil {
		return fmt.Errorf("cannot access output directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("output path is not a directory: %s", v.outputDirectory)
	}
	return nil
}

// ResolveOutput turns a user-supplied document name into an absolute path inside the
// output directory. Names may not contain directories; ".pdf" is appended when missing.
func (v *PathValidator) ResolveOutput(name string) (string, error) {
	name = SanitizeName(name)
	if name == "" {
		return "", fmt.Errorf("output name cannot be empty")
	}
	if name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("output name must be a plain file name: %s", name)
	}
	if !strings.EqualFold(filepath.Ext(name), ".pdf") {
		name += ".pdf"
	}

	path, err := filepath.Abs(filepath.Join(v.outputDirectory, name))
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	if err := v.ValidatePath(path); err != nil {
		return "", err
	}
	return path, nil
}

// ValidatePath checks that a path lies within the output directory
func (v *PathValidator) ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}

	isWithin, err := v.IsPathWithinDirectory(path)
	if err != nil {
		return fmt.Errorf("path validation failed: %w", err)
	}
	if !isWithin {
		return fmt.Errorf("path is outside output directory: %s", path)
	}
	return nil
}

// IsPathWithinDirectory checks if a path is within the output directory, resolving
// symlinks on both sides
func (v *PathValidator) IsPathWithinDirectory(path string) (bool, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false, fmt.Errorf("failed to resolve path: %w", err)
	}
	absDir, err := filepath.Abs(v.outputDirectory)
	if err != nil {
		return false, fmt.Errorf("failed to resolve output directory: %w", err)
	}

	cleanPath := filepath.Clean(absPath)
	cleanDir := filepath.Clean(absDir)

	realPath := cleanPath
	if info, err := os.Lstat(cleanPath); err == nil && info.Mode()&os.ModeSymlink != 0 {
		if resolved, err := filepath.EvalSymlinks(cleanPath); err == nil {
			realPath = resolved
		}
	}
	realDir := cleanDir
	if resolved, err := filepath.EvalSymlinks(cleanDir); err == nil {
		realDir = resolved
	}

	within := func(p string) bool {
		for _, dir := range []string{cleanDir, realDir} {
			if p == dir || strings.HasPrefix(p, dir+string(filepath.Separator)) {
				return true
			}
		}
		return false
	}
	return within(cleanPath) && within(realPath), nil
}

// SanitizeName removes null bytes and surrounding whitespace from a file name
func SanitizeName(name string) string {
	return strings.TrimSpace(strings.ReplaceAll(name, "\x00", ""))
}
