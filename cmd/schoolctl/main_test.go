package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"schoolcore/pkg/domain"
)

// harness runs schoolctl against a sqlite file and blob directory shared by
// every call of one test.
type harness struct {
	t   *testing.T
	dir string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("SCHOOLCORE_STORAGE_DRIVER", "sqlite")
	t.Setenv("SCHOOLCORE_SQLITE_PATH", filepath.Join(dir, "directory.db"))
	t.Setenv("SCHOOLCORE_BLOB_DRIVER", "fs")
	t.Setenv("SCHOOLCORE_BLOB_FS_ROOT", filepath.Join(dir, "blobs"))
	return &harness{t: t, dir: dir}
}

func (h *harness) execute(args ...string) (string, string, error) {
	h.t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd(&out, &errOut)
	base := []string{"--config", filepath.Join(h.dir, "absent.yaml"), "--log-level", "error"}
	root.SetArgs(append(base, args...))
	err := root.Execute()
	return out.String(), errOut.String(), err
}

func (h *harness) mustExecute(args ...string) string {
	h.t.Helper()
	out, errOut, err := h.execute(args...)
	if err != nil {
		h.t.Fatalf("schoolctl %s: %v\nstderr: %s", strings.Join(args, " "), err, errOut)
	}
	return out
}

func TestCLIDirectoryLifecycle(t *testing.T) {
	h := newHarness(t)
	h.mustExecute("school", "create", "A University")
	h.mustExecute("college", "create", "A University", "Literature")
	h.mustExecute("college", "create", "A University", "Science")
	h.mustExecute("college", "rename", "A University", "Literature", "Literature and Media")

	out := h.mustExecute("college", "list", "A University")
	if !strings.Contains(out, "Literature and Media") || !strings.Contains(out, "Science") || strings.Contains(out, "\tLiterature\n") {
		t.Fatalf("unexpected college list %q", out)
	}

	h.mustExecute("student", "create", "101", "Ame", "Johnson", "--school", "A University", "--college", "Literature and Media")
	h.mustExecute("student", "create", "102", "Michael", "Williams", "--school", "A University", "--college", "Science")
	if out := h.mustExecute("student", "fullname", "101"); out != "Johnson Ame\n" {
		t.Fatalf("unexpected full name %q", out)
	}

	_, _, err := h.execute("college", "delete", "A University", "Science")
	if !errors.Is(err, domain.ErrHasDependents) {
		t.Fatalf("expected has dependents, got %v", err)
	}
	h.mustExecute("college", "delete", "A University", "Science", "--cascade")
	if out := h.mustExecute("student", "list"); strings.Contains(out, "102") || !strings.Contains(out, "101: Johnson Ame (Literature and Media)") {
		t.Fatalf("unexpected student list %q", out)
	}

	_, _, err = h.execute("student", "create", "101", "Other", "Person", "--school", "A University")
	if !errors.Is(err, domain.ErrDuplicateID) {
		t.Fatalf("expected duplicate id, got %v", err)
	}

	out = h.mustExecute("student", "update", "101", "--last", "Davis", "--clear-college")
	if out != "101: Davis Ame\n" {
		t.Fatalf("unexpected update output %q", out)
	}
	if out := h.mustExecute("student", "show", "101"); out != "101: Davis Ame\n" {
		t.Fatalf("unexpected show output %q", out)
	}

	report := h.mustExecute("report")
	if !strings.Contains(report, "SCHOOL") || !strings.Contains(report, "Literature and Media") || !strings.Contains(report, "Davis Ame") {
		t.Fatalf("unexpected report %q", report)
	}

	h.mustExecute("school", "rename", "A University", "B University")
	h.mustExecute("student", "delete", "101")
	h.mustExecute("school", "delete", "B University")
	if out := h.mustExecute("school", "list"); out != "" {
		t.Fatalf("expected no schools, got %q", out)
	}
}

func TestCLIBackupRestore(t *testing.T) {
	h := newHarness(t)
	h.mustExecute("school", "create", "Kept")
	out := h.mustExecute("backup", "create")
	if !strings.HasPrefix(out, "wrote backups/") {
		t.Fatalf("unexpected backup output %q", out)
	}
	if list := h.mustExecute("backup", "list"); strings.Count(list, "backups/") != 1 {
		t.Fatalf("unexpected backup list %q", list)
	}
	h.mustExecute("school", "delete", "Kept")
	if out := h.mustExecute("backup", "restore"); out != "restored 1 schools, 0 colleges, 0 students\n" {
		t.Fatalf("unexpected restore output %q", out)
	}
	if out := h.mustExecute("school", "list"); !strings.Contains(out, "Kept") {
		t.Fatalf("expected restored school, got %q", out)
	}
}

func TestCLIDemoLeavesDirectoryEmpty(t *testing.T) {
	h := newHarness(t)
	metrics := filepath.Join(h.dir, "metrics.prom")
	out, errOut, err := h.execute("--driver", "memory", "--stats", "--metrics-textfile", metrics, "demo")
	if err != nil {
		t.Fatalf("demo: %v\n%s", err, errOut)
	}
	for _, want := range []string{
		"Updated colleges: College of Literature and Media, College of Science",
		"Full name of student 101: Davis Ame",
		"103: Brown Sara (College of Science)",
		"deleted school South University",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("demo output missing %q:\n%s", want, out)
		}
	}
	if !strings.Contains(errOut, `"school.create"`) {
		t.Fatalf("expected stats on stderr, got %q", errOut)
	}
	data, err := os.ReadFile(metrics)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if !strings.Contains(string(data), "schoolcore_directory_operations_total") {
		t.Fatalf("unexpected metrics file %q", data)
	}
	// Final report holds only the header.
	tail := out[strings.LastIndex(out, "5. Final state:"):]
	if strings.Count(tail, "\n") != 2 {
		t.Fatalf("expected an empty final report, got %q", tail)
	}
}

func TestCLIRejectsUnknownDriver(t *testing.T) {
	h := newHarness(t)
	_, _, err := h.execute("--driver", "cassandra", "school", "list")
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestCLITraceWritesSpans(t *testing.T) {
	h := newHarness(t)
	_, errOut, err := h.execute("--driver", "memory", "--trace", "school", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(errOut, `"operation":"school.list"`) {
		t.Fatalf("expected a trace line, got %q", errOut)
	}
}
