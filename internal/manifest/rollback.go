package manifest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Document is a parsed rollback manifest.
type Document struct {
	Header  Header
	Entries []Entry
}

// Read parses a manifest file: one header line followed by operation
// entries.
func Read(path string) (*Document, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	doc := &Document{}
	first := true
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if first {
			if err := json.Unmarshal([]byte(text), &doc.Header); err != nil {
				return nil, fmt.Errorf("manifest line %d: decode header: %w", line, err)
			}
			if doc.Header.Type != "header" {
				return nil, fmt.Errorf("manifest line %d: expected header, got %q", line, doc.Header.Type)
			}
			if doc.Header.SchemaVersion != schemaVersion {
				return nil, fmt.Errorf("manifest schema %q not supported", doc.Header.SchemaVersion)
			}
			first = false
			continue
		}
		var entry Entry
		if err := json.Unmarshal([]byte(text), &entry); err != nil {
			return nil, fmt.Errorf("manifest line %d: decode entry: %w", line, err)
		}
		doc.Entries = append(doc.Entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	if first {
		return nil, fmt.Errorf("manifest %s is empty", path)
	}
	return doc, nil
}

// RollbackResult summarizes a replay.
type RollbackResult struct {
	Restored int
	Skipped  int
	Errors   []string
}

// Rollback replays a manifest in reverse chronological order, undoing
// only applied rename entries: the destination moves back to the
// source, then any backed up collision victim returns to the
// destination. Entries whose destination no longer exists are skipped.
func Rollback(path string) (*RollbackResult, error) {
	doc, err := Read(path)
	if err != nil {
		return nil, err
	}

	result := &RollbackResult{}
	for i := len(doc.Entries) - 1; i >= 0; i-- {
		entry := doc.Entries[i]
		if entry.Status != "applied" || entry.Op != "rename" {
			continue
		}

		if _, err := os.Stat(entry.DstAfter); err != nil {
			result.Skipped++
			continue
		}
		if err := os.Rename(entry.DstAfter, entry.SrcBefore); err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("%s: restore failed: %v", entry.SrcBefore, err))
			continue
		}
		result.Restored++

		if entry.BackupPath == "" {
			continue
		}
		if _, err := os.Stat(entry.BackupPath); err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("%s: backup %s missing", entry.DstAfter, entry.BackupPath))
			continue
		}
		if err := os.Rename(entry.BackupPath, entry.DstAfter); err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("%s: backup restore failed: %v", entry.DstAfter, err))
		}
	}
	return result, nil
}
