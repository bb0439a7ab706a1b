package manifest

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

const schemaVersion = "1.0"

// Header is the first line of every rollback manifest.
type Header struct {
	Type              string     `json:"type"`
	SchemaVersion     string     `json:"schema_version"`
	ReportID          string     `json:"report_id"`
	PlanID            string     `json:"plan_id"`
	GeneratedAt       string     `json:"generated_at"`
	Root              string     `json:"root"`
	Mode              string     `json:"mode"`
	CollisionStrategy string     `json:"collision_strategy"`
	System            SystemInfo `json:"system"`
}

// SystemInfo captures the environment an apply ran under, so a later
// rollback can reason about case sensitivity.
type SystemInfo struct {
	OS                string `json:"os"`
	FSCaseInsensitive bool   `json:"fs_case_insensitive"`
}

// Entry is one recorded filesystem operation. Pre and Post carry stat
// snapshots embedded as JSON strings, matching the on-disk format
// rollback tooling already reads.
type Entry struct {
	TS                string `json:"ts"`
	Op                string `json:"op"`
	SrcBefore         string `json:"src_before"`
	DstAfter          string `json:"dst_after"`
	Status            string `json:"status"`
	CollisionStrategy string `json:"collision_strategy"`
	Reason            string `json:"reason,omitempty"`
	BackupPath        string `json:"backup_path,omitempty"`
	Pre               string `json:"pre,omitempty"`
	Post              string `json:"post,omitempty"`
}

// Writer appends a rollback manifest under <root>/.namegnome/rollbacks.
// Every line is flushed and fsynced before Append returns: a crash
// mid-apply must never lose the record of an already applied rename.
type Writer struct {
	path          string
	file          *os.File
	header        Header
	headerWritten bool
}

// NewWriter prepares the manifest file for one apply run. Directory
// creation failure, including a failed write probe, is returned as an
// error before any rename happens.
func NewWriter(root, reportID, planID, mode, collisionStrategy string) (*Writer, error) {
	rollbackDir := filepath.Join(root, ".namegnome", "rollbacks")
	if err := os.MkdirAll(rollbackDir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create rollback directory %s: %w", rollbackDir, err)
	}
	probe := filepath.Join(rollbackDir, ".probe_"+randomHex(8))
	if err := os.WriteFile(probe, []byte("probe"), 0o644); err != nil {
		return nil, fmt.Errorf("rollback directory %s is not writable: %w", rollbackDir, err)
	}
	_ = os.Remove(probe)

	return &Writer{
		path: filepath.Join(rollbackDir, reportID+".jsonl"),
		header: Header{
			Type:              "header",
			SchemaVersion:     schemaVersion,
			ReportID:          reportID,
			PlanID:            planID,
			GeneratedAt:       time.Now().UTC().Format(time.RFC3339),
			Root:              root,
			Mode:              mode,
			CollisionStrategy: collisionStrategy,
			System: SystemInfo{
				OS:                runtime.GOOS,
				FSCaseInsensitive: CaseInsensitiveFS(root),
			},
		},
	}, nil
}

// Path reports where the manifest is written.
func (w *Writer) Path() string { return w.path }

// Append records one operation, writing the header first when needed.
func (w *Writer) Append(entry Entry) error {
	if !w.headerWritten {
		if err := w.writeLine(w.header); err != nil {
			return err
		}
		w.headerWritten = true
	}
	return w.writeLine(entry)
}

func (w *Writer) writeLine(value any) error {
	if w.file == nil {
		file, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			return fmt.Errorf("open manifest: %w", err)
		}
		w.file = file
	}
	line, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode manifest line: %w", err)
	}
	if _, err := w.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write manifest line: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("sync manifest: %w", err)
	}
	return nil
}

// Close closes the manifest file. Safe on a writer that never wrote.
func (w *Writer) Close() error {
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// CaseInsensitiveFS probes whether the filesystem holding dir folds
// case: it creates a lowercase file and stats the uppercase spelling.
func CaseInsensitiveFS(dir string) bool {
	name := "case_probe_" + randomHex(8)
	lower := filepath.Join(dir, "."+name+"a")
	upper := filepath.Join(dir, "."+name+"A")
	if err := os.WriteFile(lower, []byte("probe"), 0o644); err != nil {
		return false
	}
	defer os.Remove(lower)
	_, err := os.Stat(upper)
	return err == nil
}

// StatJSON renders a file's size, mtime, and inode as a compact JSON
// string for manifest pre/post fields. Missing files yield "{}".
func StatJSON(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return "{}"
	}
	stats := map[string]any{
		"size":  info.Size(),
		"mtime": info.ModTime().UTC().Format(time.RFC3339),
	}
	if inode, ok := inodeOf(info); ok {
		stats["inode"] = inode
	}
	encoded, err := json.Marshal(stats)
	if err != nil {
		return "{}"
	}
	return string(encoded)
}

func randomHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return strings.Repeat("0", n*2)
	}
	return hex.EncodeToString(buf)
}
