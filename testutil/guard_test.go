package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPredicates(t *testing.T) {
	cases := []struct {
		name string
		pred func(string) bool
		in   string
		want bool
	}{
		{"infra sqlite", InfraImportForbidden, "schoolcore/internal/infra/persistence/sqlite", true},
		{"infra blob", InfraImportForbidden, "schoolcore/internal/infra/blob/s3", true},
		{"infra facade", InfraImportForbidden, "schoolcore/internal/blob", false},
		{"internal", InternalImportForbidden, "schoolcore/internal/query", true},
		{"pkg", InternalImportForbidden, "schoolcore/pkg/domain", false},
		{"service", ServiceImportForbidden, "schoolcore/internal/core", true},
		{"cli", ServiceImportForbidden, "schoolcore/cmd/schoolctl", true},
		{"integrity", ServiceImportForbidden, "schoolcore/internal/integrity", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.pred(c.in); got != c.want {
				t.Fatalf("predicate(%q)=%v want %v", c.in, got, c.want)
			}
		})
	}
}

func TestAnyOf(t *testing.T) {
	pred := AnyOf(InfraImportForbidden, ServiceImportForbidden)
	if !pred("schoolcore/internal/core") || !pred("schoolcore/internal/infra/blob/fs") {
		t.Fatal("expected combined predicate to match both layers")
	}
	if pred("schoolcore/pkg/domain") {
		t.Fatal("domain should not match")
	}
	if AnyOf()("anything") {
		t.Fatal("empty AnyOf should match nothing")
	}
}

func writeFile(t *testing.T, dir, name, src string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestDirectImportViolations(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.go", "package tmp\nimport (\n\t\"fmt\"\n\t\"schoolcore/internal/infra/persistence/memory\"\n)\nvar _ = fmt.Sprint\nvar _ = memory.NewStore\n")
	// Test files and subdirectories are skipped.
	writeFile(t, dir, "a_test.go", "package tmp\nimport \"schoolcore/internal/infra/blob/s3\"\nvar _ = s3.New\n")
	if err := os.Mkdir(filepath.Join(dir, "sub.go"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeFile(t, dir, "notes.txt", "import \"schoolcore/internal/infra/x\"")

	viols, err := directImportViolations(dir, InfraImportForbidden)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(viols) != 1 || viols[0] != "schoolcore/internal/infra/persistence/memory (in a.go)" {
		t.Fatalf("unexpected violations %v", viols)
	}

	AssertNoDirectImports(t, dir, func(string) bool { return false }, "nothing forbidden")
}

func TestDirectImportViolationsErrors(t *testing.T) {
	if _, err := directImportViolations(filepath.Join(t.TempDir(), "missing"), InfraImportForbidden); err == nil {
		t.Fatal("expected error for a missing directory")
	}
	dir := t.TempDir()
	writeFile(t, dir, "bad.go", "not go at all")
	if _, err := directImportViolations(dir, InfraImportForbidden); err == nil {
		t.Fatal("expected parse error")
	}
}

type recordingFatal struct{ msg string }

func (r *recordingFatal) Fatalf(format string, args ...any) { r.msg = fmt.Sprintf(format, args...) }

func TestFailIfViolations(t *testing.T) {
	var r recordingFatal
	failIfViolations(&r, "clean", nil)
	if r.msg != "" {
		t.Fatalf("unexpected failure %q", r.msg)
	}
	failIfViolations(&r, "layering", []string{"a (in x.go)", "b (in y.go)"})
	if !strings.Contains(r.msg, "layering") || !strings.Contains(r.msg, "a (in x.go)\nb (in y.go)") {
		t.Fatalf("unexpected message %q", r.msg)
	}
}
