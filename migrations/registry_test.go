package migrations

import (
	"context"
	"io/fs"
	"testing"
)

func TestFilesystemsResolveBothDialects(t *testing.T) {
	filesystems, err := Filesystems()
	if err != nil {
		t.Fatalf("filesystems: %v", err)
	}
	if len(filesystems) != 2 {
		t.Fatalf("expected postgres and sqlite filesystems, got %d", len(filesystems))
	}
	byDialect := map[string]FilesystemSpec{}
	for _, fsys := range filesystems {
		byDialect[fsys.Dialect] = fsys
	}
	for _, dialect := range []string{DialectPostgres, DialectSQLite} {
		fsys, ok := byDialect[dialect]
		if !ok {
			t.Fatalf("missing %s filesystem", dialect)
		}
		matches, globErr := fs.Glob(fsys.FS, "*.up.sql")
		if globErr != nil || len(matches) == 0 {
			t.Fatalf("%s filesystem has no migrations: %v", dialect, globErr)
		}
	}
}

func TestRegisterInvokesPerDialect(t *testing.T) {
	seen := map[string]string{}
	reg, err := Register(context.Background(), func(_ context.Context, dialect string, sourceLabel string, fsys fs.FS) error {
		if fsys == nil {
			t.Fatalf("nil filesystem for %s", dialect)
		}
		seen[dialect] = sourceLabel
		return nil
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if reg.SourceLabel != "eventhub" {
		t.Fatalf("unexpected source label %q", reg.SourceLabel)
	}
	if len(seen) != 2 {
		t.Fatalf("expected both dialects registered, got %v", seen)
	}
	if seen[DialectSQLite] != "eventhub" || seen[DialectPostgres] != "eventhub" {
		t.Fatalf("unexpected source labels %v", seen)
	}
}

func TestRegisterHonorsValidationTargets(t *testing.T) {
	var dialects []string
	_, err := Register(context.Background(), func(_ context.Context, dialect string, _ string, _ fs.FS) error {
		dialects = append(dialects, dialect)
		return nil
	}, WithValidationTargets(DialectSQLite))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(dialects) != 1 || dialects[0] != DialectSQLite {
		t.Fatalf("expected only sqlite, got %v", dialects)
	}
}

func TestRegisterRequiresRegisterFunc(t *testing.T) {
	if _, err := Register(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil register function")
	}
}
