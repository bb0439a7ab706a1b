package apply

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"namegnome/internal/fileutil"
	"namegnome/internal/logging"
	"namegnome/internal/manifest"
	"namegnome/internal/media"
)

// Status is the terminal state of one plan item.
type Status string

const (
	StatusApplied          Status = "applied"
	StatusSkippedCollision Status = "skipped_collision"
	StatusFailed           Status = "failed"
	StatusNoop             Status = "noop"
)

// CollisionStrategy decides what happens when the destination exists.
type CollisionStrategy string

const (
	CollisionBackup    CollisionStrategy = "backup"
	CollisionOverwrite CollisionStrategy = "overwrite"
	CollisionSkip      CollisionStrategy = "skip"
)

// Mode controls batch behavior when an item fails.
type Mode string

const (
	ModeTransactional   Mode = "transactional"
	ModeContinueOnError Mode = "continue_on_error"
	ModeDryRun          Mode = "dry_run"
)

// Outcome is the result of applying one rename.
type Outcome struct {
	Src        string
	Dst        string
	Status     Status
	Op         string
	Reason     string
	BackupPath string
	Pre        string
	Post       string
}

// Report summarizes an apply batch.
type Report struct {
	TotalItems   int
	Applied      int
	Skipped      int
	Failed       int
	Noop         int
	ReportID     string
	ManifestPath string
	Errors       []string
}

// Options configures one apply batch.
type Options struct {
	Root        string
	PlanID      string
	Mode        Mode
	OnCollision CollisionStrategy
}

func (o Options) validate() error {
	switch o.Mode {
	case ModeTransactional, ModeContinueOnError, ModeDryRun:
	default:
		return fmt.Errorf("unsupported apply mode %q", o.Mode)
	}
	switch o.OnCollision {
	case CollisionBackup, CollisionOverwrite, CollisionSkip:
	default:
		return fmt.Errorf("unsupported collision strategy %q", o.OnCollision)
	}
	if strings.TrimSpace(o.Root) == "" {
		return fmt.Errorf("apply root required")
	}
	return nil
}

// Engine executes reviewed plans against the filesystem, recording
// every terminal outcome in a rollback manifest before returning it.
type Engine struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewEngine builds an Engine.
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{
		logger: logging.NewComponentLogger(logger, "apply"),
		now:    time.Now,
	}
}

// ApplyPlan applies items under one rollback manifest. A second
// concurrent batch against the same root fails fast on the advisory
// lock. In transactional mode the batch stops at the first failure;
// already applied renames stay applied and stay in the manifest.
func (e *Engine) ApplyPlan(ctx context.Context, items []media.PlanItem, opts Options) (*Report, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	lockDir := filepath.Join(opts.Root, ".namegnome")
	if err := os.MkdirAll(lockDir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create state directory %s: %w", lockDir, err)
	}
	lock := flock.New(filepath.Join(lockDir, "apply.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire apply lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("another apply is already running against %s", opts.Root)
	}
	defer func() {
		_ = lock.Unlock()
	}()

	reportID := uuid.NewString()
	writer, err := manifest.NewWriter(opts.Root, reportID, opts.PlanID, string(opts.Mode), string(opts.OnCollision))
	if err != nil {
		return nil, err
	}
	defer writer.Close()

	report := &Report{
		TotalItems:   len(items),
		ReportID:     reportID,
		ManifestPath: writer.Path(),
	}

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		outcome, err := e.renameWithRollback(item.SrcPath, item.DstPath, writer, opts.OnCollision, opts.Mode == ModeDryRun)
		if err != nil {
			// Manifest write trouble: the filesystem state is no longer
			// fully recorded, so the batch stops regardless of mode.
			return report, err
		}

		e.logger.Info("apply item",
			logging.String(logging.FieldPath, outcome.Src),
			logging.String("dst", outcome.Dst),
			logging.String("status", string(outcome.Status)))

		switch outcome.Status {
		case StatusApplied:
			report.Applied++
		case StatusSkippedCollision:
			report.Skipped++
		case StatusNoop:
			report.Noop++
		case StatusFailed:
			report.Failed++
			if outcome.Reason != "" {
				report.Errors = append(report.Errors, fmt.Sprintf("%s: %s", item.SrcPath, outcome.Reason))
			}
			if opts.Mode == ModeTransactional {
				return report, nil
			}
		}
	}
	return report, nil
}

// renameWithRollback performs one rename with collision handling. The
// returned error is reserved for manifest write failures; everything
// else becomes a failed Outcome.
func (e *Engine) renameWithRollback(src, dst string, writer *manifest.Writer, strategy CollisionStrategy, dryRun bool) (Outcome, error) {
	outcome := Outcome{Src: src, Dst: dst, Op: "rename"}
	outcome.Pre = manifest.StatJSON(src)

	record := func() error {
		entry := manifest.Entry{
			TS:                e.now().UTC().Format(time.RFC3339),
			Op:                outcome.Op,
			SrcBefore:         src,
			DstAfter:          dst,
			Status:            string(outcome.Status),
			CollisionStrategy: string(strategy),
			Reason:            outcome.Reason,
			BackupPath:        outcome.BackupPath,
		}
		if outcome.Status == StatusApplied {
			entry.Pre = outcome.Pre
			entry.Post = outcome.Post
		}
		return writer.Append(entry)
	}
	fail := func(reason string) (Outcome, error) {
		outcome.Status = StatusFailed
		outcome.Reason = reason
		return outcome, record()
	}

	if dryRun {
		outcome.Op = "noop"
		outcome.Status = StatusNoop
		outcome.Reason = "dry_run_mode"
		return outcome, record()
	}

	if _, err := os.Lstat(src); err != nil {
		return fail("source file does not exist")
	}

	if _, err := os.Lstat(dst); err == nil && !caseOnlyChange(src, dst) {
		switch strategy {
		case CollisionSkip:
			outcome.Status = StatusSkippedCollision
			outcome.Reason = "destination exists"
			return outcome, record()
		case CollisionBackup:
			backupPath := backupPathFor(dst)
			if err := os.MkdirAll(filepath.Dir(backupPath), 0o755); err != nil {
				return fail(fmt.Sprintf("failed to backup existing file: %v", err))
			}
			if err := moveFile(dst, backupPath); err != nil {
				return fail(fmt.Sprintf("failed to backup existing file: %v", err))
			}
			outcome.BackupPath = backupPath
		case CollisionOverwrite:
			if err := os.Remove(dst); err != nil {
				return fail(fmt.Sprintf("failed to remove existing file: %v", err))
			}
		}
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fail(fmt.Sprintf("failed to create destination directory: %v", err))
	}

	if caseOnlyChange(src, dst) && manifest.CaseInsensitiveFS(filepath.Dir(src)) {
		temp := dst + ".tmpcase_" + randomHex(4)
		if err := os.Rename(src, temp); err != nil {
			return fail(fmt.Sprintf("failed case change rename: %v", err))
		}
		if err := os.Rename(temp, dst); err != nil {
			// Put the file back under its original name.
			_ = os.Rename(temp, src)
			return fail(fmt.Sprintf("failed case change rename: %v", err))
		}
	} else {
		if err := os.Rename(src, dst); err != nil {
			if !isCrossDevice(err) {
				return fail(fmt.Sprintf("rename failed: %v", err))
			}
			if err := fileutil.CopyFileSynced(src, dst); err != nil {
				return fail(fmt.Sprintf("failed cross-device move: %v", err))
			}
			if err := os.Remove(src); err != nil {
				return fail(fmt.Sprintf("failed cross-device move: %v", err))
			}
		}
	}

	outcome.Status = StatusApplied
	outcome.Post = manifest.StatJSON(dst)
	return outcome, record()
}

// moveFile renames and falls back to a synced copy across filesystems.
func moveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !isCrossDevice(err) {
		return err
	}
	if err := fileutil.CopyFileSynced(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

func caseOnlyChange(src, dst string) bool {
	return src != dst && strings.EqualFold(src, dst)
}

func isCrossDevice(err error) bool {
	var linkErr *os.LinkError
	if errors.As(err, &linkErr) {
		return errors.Is(linkErr.Err, syscall.EXDEV)
	}
	return errors.Is(err, syscall.EXDEV)
}

// backupPathFor places collision victims under a backups directory
// next to the destination, with a unique suffix between stem and
// extension.
func backupPathFor(dst string) string {
	dir := filepath.Dir(dst)
	ext := filepath.Ext(dst)
	stem := strings.TrimSuffix(filepath.Base(dst), ext)
	return filepath.Join(dir, ".namegnome", "backups", stem+".bak"+randomHex(4)+ext)
}

func randomHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return strings.Repeat("0", n*2)
	}
	return hex.EncodeToString(buf)
}
