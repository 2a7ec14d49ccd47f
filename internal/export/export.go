// Package export writes the user registry as CSV.
// File writes are atomic (temp+rename) so a crash never leaves a half file.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"tokgrab/internal/httputil"
	"tokgrab/internal/media"
)

// Header is the CSV column order.
var Header = []string{"id", "username", "first_name", "last_name", "language_code", "joined_at"}

// DefaultFilename is used for exports sent through the bot.
const DefaultFilename = "user_data.csv"

// WriteCSV writes users with a header row.
func WriteCSV(w io.Writer, users []media.User) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, u := range users {
		if err := cw.Write(record(u)); err != nil {
			return fmt.Errorf("writing user %d: %w", u.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}
	return nil
}

// Bytes renders users as an in-memory CSV document.
func Bytes(users []media.User) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, users); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFile writes users to filename inside dir and returns the final path.
func WriteFile(dir, filename string, users []media.User) (string, error) {
	path, err := httputil.SafePath(dir, filename)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", fmt.Errorf("creating export dir: %w", err)
	}

	// Atomic write: temp file + rename
	tmpFile, err := os.CreateTemp(filepath.Dir(path), "export-*.tmp")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if err := WriteCSV(tmpFile, users); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return "", err
	}

	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("renaming export file: %w", err)
	}

	return path, nil
}

func record(u media.User) []string {
	joined := ""
	if !u.JoinedAt.IsZero() {
		joined = u.JoinedAt.UTC().Format(time.RFC3339)
	}
	return []string{
		strconv.FormatInt(u.ID, 10),
		u.Username,
		u.FirstName,
		u.LastName,
		u.LanguageCode,
		joined,
	}
}
