package util

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	controlChars = regexp.MustCompile(`[\x00-\x1f\x7f]`)
	invalidChars = regexp.MustCompile(`[\\/:*?"<>|]`)
	dashRuns     = regexp.MustCompile(`-+`)
)

// EnsureWritableDir creates dir if needed and checks that files can be
// written into it.
func EnsureWritableDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("directory path cannot be empty")
	}
	cleanPath := filepath.Clean(dir)

	info, err := os.Stat(cleanPath)
	switch {
	case err == nil && !info.IsDir():
		return fmt.Errorf("path exists but is not a directory: %s", cleanPath)
	case os.IsNotExist(err):
		if err := os.MkdirAll(cleanPath, 0755); err != nil {
			return fmt.Errorf("cannot create directory: %w", err)
		}
	case err != nil:
		return fmt.Errorf("cannot access path: %w", err)
	}

	if err := checkWritePermission(cleanPath); err != nil {
		return fmt.Errorf("no write permission for directory: %w", err)
	}
	return nil
}

// checkWritePermission checks if we have write permission to a directory
func checkWritePermission(dirPath string) error {
	tempFile := filepath.Join(dirPath, ".oilspill_temp_check")
	file, err := os.Create(tempFile)
	if err != nil {
		return err
	}
	file.Close()
	os.Remove(tempFile)
	return nil
}

// SanitizeFileName removes characters that cannot be used in file names on
// Windows, macOS or Linux and strips any directory components. The
// extension is kept.
func SanitizeFileName(name string) string {
	// Only the last path element is kept, whatever separator the client used.
	name = strings.ReplaceAll(name, "\\", "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}

	safeName := controlChars.ReplaceAllString(name, "")
	safeName = invalidChars.ReplaceAllString(safeName, "-")

	// Remove leading/trailing spaces and dots (Windows doesn't allow these)
	safeName = strings.Trim(safeName, " .")
	safeName = dashRuns.ReplaceAllString(safeName, "-")
	safeName = strings.Trim(safeName, "-")

	// Handle reserved names on Windows (CON, PRN, AUX, NUL, COM1-9, LPT1-9)
	base := strings.TrimSuffix(safeName, filepath.Ext(safeName))
	if reservedNames[strings.ToUpper(base)] {
		safeName = base + "_" + filepath.Ext(safeName)
	}
	if safeName == "" || strings.HasPrefix(safeName, ".") {
		safeName = "upload" + safeName
	}
	return safeName
}

var reservedNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}
