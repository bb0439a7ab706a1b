package apply

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofrs/flock"

	"namegnome/internal/manifest"
	"namegnome/internal/media"
)

func newHeldLock(t *testing.T, root string) func() {
	t.Helper()
	lock := flock.New(filepath.Join(root, ".namegnome", "apply.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		t.Fatal(err)
	}
	if !locked {
		t.Fatal("could not take the lock for the test")
	}
	return func() { _ = lock.Unlock() }
}

func mustPlanItem(t *testing.T, src, dst string) media.PlanItem {
	t.Helper()
	item, err := media.NewPlanItem(src, dst, "matched", 0.95, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	return item
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func defaultOptions(root string) Options {
	return Options{
		Root:        root,
		PlanID:      "pln_test",
		Mode:        ModeContinueOnError,
		OnCollision: CollisionBackup,
	}
}

func TestApplyPlanRenames(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "downloads", "show.s01e01.mkv")
	dst := filepath.Join(root, "tv", "Show", "Season 01", "Show - S01E01 - One.mkv")
	writeFile(t, src, "episode")

	engine := NewEngine(nil)
	report, err := engine.ApplyPlan(context.Background(), []media.PlanItem{mustPlanItem(t, src, dst)}, defaultOptions(root))
	if err != nil {
		t.Fatal(err)
	}
	if report.Applied != 1 || report.Failed != 0 {
		t.Fatalf("report = %+v", report)
	}
	content, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "episode" {
		t.Fatalf("content = %q", content)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatal("source should be gone")
	}

	doc, err := manifest.Read(report.ManifestPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Entries) != 1 {
		t.Fatalf("entries = %+v", doc.Entries)
	}
	entry := doc.Entries[0]
	if entry.Op != "rename" || entry.Status != "applied" {
		t.Fatalf("entry = %+v", entry)
	}
	if !strings.Contains(entry.Pre, `"size":7`) || !strings.Contains(entry.Post, `"size":7`) {
		t.Fatalf("entry stats = %q / %q", entry.Pre, entry.Post)
	}
}

func TestApplyPlanDryRunTouchesNothing(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "downloads", "a.mkv")
	dst := filepath.Join(root, "tv", "a.mkv")
	writeFile(t, src, "content")

	opts := defaultOptions(root)
	opts.Mode = ModeDryRun

	engine := NewEngine(nil)
	report, err := engine.ApplyPlan(context.Background(), []media.PlanItem{mustPlanItem(t, src, dst)}, opts)
	if err != nil {
		t.Fatal(err)
	}
	if report.Noop != 1 || report.Applied != 0 {
		t.Fatalf("report = %+v", report)
	}
	if _, err := os.Stat(src); err != nil {
		t.Fatal("source must be untouched")
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Fatal("destination must not exist")
	}

	doc, err := manifest.Read(report.ManifestPath)
	if err != nil {
		t.Fatal(err)
	}
	entry := doc.Entries[0]
	if entry.Op != "noop" || entry.Status != "noop" || entry.Reason != "dry_run_mode" {
		t.Fatalf("entry = %+v", entry)
	}
}

func TestApplyPlanMissingSourceFails(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "downloads", "missing.mkv")
	dst := filepath.Join(root, "tv", "missing.mkv")

	engine := NewEngine(nil)
	report, err := engine.ApplyPlan(context.Background(), []media.PlanItem{mustPlanItem(t, src, dst)}, defaultOptions(root))
	if err != nil {
		t.Fatal(err)
	}
	if report.Failed != 1 {
		t.Fatalf("report = %+v", report)
	}
	if len(report.Errors) != 1 || !strings.Contains(report.Errors[0], "source file does not exist") {
		t.Fatalf("errors = %v", report.Errors)
	}
}

func TestApplyPlanBackupPreservesCollisionVictim(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "downloads", "new.mkv")
	dst := filepath.Join(root, "tv", "Show - S01E01.mkv")
	writeFile(t, src, "new version")
	writeFile(t, dst, "old version")

	engine := NewEngine(nil)
	report, err := engine.ApplyPlan(context.Background(), []media.PlanItem{mustPlanItem(t, src, dst)}, defaultOptions(root))
	if err != nil {
		t.Fatal(err)
	}
	if report.Applied != 1 {
		t.Fatalf("report = %+v", report)
	}

	doc, err := manifest.Read(report.ManifestPath)
	if err != nil {
		t.Fatal(err)
	}
	backupPath := doc.Entries[0].BackupPath
	if backupPath == "" {
		t.Fatalf("entry = %+v", doc.Entries[0])
	}
	if !strings.Contains(backupPath, filepath.Join(".namegnome", "backups")) {
		t.Fatalf("backup path = %q", backupPath)
	}
	if !strings.Contains(filepath.Base(backupPath), ".bak") || !strings.HasSuffix(backupPath, ".mkv") {
		t.Fatalf("backup path = %q", backupPath)
	}

	backed, err := os.ReadFile(backupPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(backed) != "old version" {
		t.Fatalf("backup content = %q", backed)
	}
	replaced, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(replaced) != "new version" {
		t.Fatalf("dst content = %q", replaced)
	}

	// The backup makes the apply fully recoverable.
	result, err := manifest.Rollback(report.ManifestPath)
	if err != nil {
		t.Fatal(err)
	}
	if result.Restored != 1 || len(result.Errors) != 0 {
		t.Fatalf("rollback = %+v", result)
	}
	original, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(original) != "old version" {
		t.Fatalf("restored content = %q", original)
	}
	if _, err := os.Stat(src); err != nil {
		t.Fatal("source must be back after rollback")
	}
}

func TestApplyPlanSkipCollision(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "downloads", "new.mkv")
	dst := filepath.Join(root, "tv", "existing.mkv")
	writeFile(t, src, "new")
	writeFile(t, dst, "existing")

	opts := defaultOptions(root)
	opts.OnCollision = CollisionSkip

	engine := NewEngine(nil)
	report, err := engine.ApplyPlan(context.Background(), []media.PlanItem{mustPlanItem(t, src, dst)}, opts)
	if err != nil {
		t.Fatal(err)
	}
	if report.Skipped != 1 || report.Applied != 0 {
		t.Fatalf("report = %+v", report)
	}
	content, _ := os.ReadFile(dst)
	if string(content) != "existing" {
		t.Fatalf("dst content = %q", content)
	}
	if _, err := os.Stat(src); err != nil {
		t.Fatal("source must remain on skip")
	}
}

func TestApplyPlanOverwriteCollision(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "downloads", "new.mkv")
	dst := filepath.Join(root, "tv", "existing.mkv")
	writeFile(t, src, "new")
	writeFile(t, dst, "existing")

	opts := defaultOptions(root)
	opts.OnCollision = CollisionOverwrite

	engine := NewEngine(nil)
	report, err := engine.ApplyPlan(context.Background(), []media.PlanItem{mustPlanItem(t, src, dst)}, opts)
	if err != nil {
		t.Fatal(err)
	}
	if report.Applied != 1 {
		t.Fatalf("report = %+v", report)
	}
	content, _ := os.ReadFile(dst)
	if string(content) != "new" {
		t.Fatalf("dst content = %q", content)
	}
}

func TestApplyPlanTransactionalStopsAtFirstFailure(t *testing.T) {
	root := t.TempDir()
	missing := filepath.Join(root, "downloads", "missing.mkv")
	present := filepath.Join(root, "downloads", "present.mkv")
	writeFile(t, present, "content")

	opts := defaultOptions(root)
	opts.Mode = ModeTransactional

	items := []media.PlanItem{
		mustPlanItem(t, missing, filepath.Join(root, "tv", "missing.mkv")),
		mustPlanItem(t, present, filepath.Join(root, "tv", "present.mkv")),
	}

	engine := NewEngine(nil)
	report, err := engine.ApplyPlan(context.Background(), items, opts)
	if err != nil {
		t.Fatal(err)
	}
	if report.Failed != 1 || report.Applied != 0 {
		t.Fatalf("report = %+v", report)
	}
	if _, err := os.Stat(present); err != nil {
		t.Fatal("second item must not run after a transactional failure")
	}
}

func TestApplyPlanContinueOnErrorKeepsGoing(t *testing.T) {
	root := t.TempDir()
	missing := filepath.Join(root, "downloads", "missing.mkv")
	present := filepath.Join(root, "downloads", "present.mkv")
	writeFile(t, present, "content")

	items := []media.PlanItem{
		mustPlanItem(t, missing, filepath.Join(root, "tv", "missing.mkv")),
		mustPlanItem(t, present, filepath.Join(root, "tv", "present.mkv")),
	}

	engine := NewEngine(nil)
	report, err := engine.ApplyPlan(context.Background(), items, defaultOptions(root))
	if err != nil {
		t.Fatal(err)
	}
	if report.Failed != 1 || report.Applied != 1 {
		t.Fatalf("report = %+v", report)
	}
}

func TestApplyPlanRejectsConcurrentBatch(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, ".namegnome"), 0o755); err != nil {
		t.Fatal(err)
	}

	// Hold the lock the way a concurrent batch would.
	held := newHeldLock(t, root)
	defer held()

	engine := NewEngine(nil)
	_, err := engine.ApplyPlan(context.Background(), nil, defaultOptions(root))
	if err == nil || !strings.Contains(err.Error(), "another apply") {
		t.Fatalf("err = %v", err)
	}
}

func TestApplyPlanCaseOnlyRename(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "tv", "show - s01e01.mkv")
	dst := filepath.Join(root, "tv", "Show - S01E01.mkv")
	writeFile(t, src, "content")

	engine := NewEngine(nil)
	report, err := engine.ApplyPlan(context.Background(), []media.PlanItem{mustPlanItem(t, src, dst)}, defaultOptions(root))
	if err != nil {
		t.Fatal(err)
	}
	if report.Applied != 1 {
		t.Fatalf("report = %+v", report)
	}
	entries, err := os.ReadDir(filepath.Join(root, "tv"))
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	if len(names) != 1 || names[0] != "Show - S01E01.mkv" {
		t.Fatalf("names = %v", names)
	}
}

func TestCaseOnlyChange(t *testing.T) {
	if !caseOnlyChange("/tv/show.mkv", "/tv/Show.mkv") {
		t.Fatal("case difference not detected")
	}
	if caseOnlyChange("/tv/show.mkv", "/tv/show.mkv") {
		t.Fatal("identical paths are not a change")
	}
	if caseOnlyChange("/tv/show.mkv", "/tv/other.mkv") {
		t.Fatal("different names are not a case change")
	}
}

func TestBackupPathFor(t *testing.T) {
	path := backupPathFor("/tv/Show/Season 01/Show - S01E01.mkv")
	if filepath.Dir(path) != "/tv/Show/Season 01/.namegnome/backups" {
		t.Fatalf("path = %q", path)
	}
	base := filepath.Base(path)
	if !strings.HasPrefix(base, "Show - S01E01.bak") || !strings.HasSuffix(base, ".mkv") {
		t.Fatalf("base = %q", base)
	}
}

func TestApplyPlanValidatesOptions(t *testing.T) {
	engine := NewEngine(nil)
	if _, err := engine.ApplyPlan(context.Background(), nil, Options{Root: t.TempDir(), Mode: "yolo", OnCollision: CollisionBackup}); err == nil {
		t.Fatal("expected mode error")
	}
	if _, err := engine.ApplyPlan(context.Background(), nil, Options{Root: t.TempDir(), Mode: ModeDryRun, OnCollision: "rename"}); err == nil {
		t.Fatal("expected collision strategy error")
	}
}
