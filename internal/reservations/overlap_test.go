package reservations

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOverlap_ExactMatch(t *testing.T) {
	overlap, err := Overlap("", "app/api/routes.py", "app/api/routes.py")
	if err != nil {
		t.Fatal(err)
	}
	if !overlap {
		t.Error("exact match must always overlap")
	}
}

func TestOverlap_DirectoryAncestor(t *testing.T) {
	overlap, err := Overlap("", "app/**", "app/api/routes.py")
	if err != nil {
		t.Fatal(err)
	}
	if !overlap {
		t.Error("app/** should overlap a concrete file beneath app/")
	}
}

func TestOverlap_DisjointDirectories(t *testing.T) {
	overlap, err := Overlap("", "app/frontend/**", "app/backend/**")
	if err != nil {
		t.Fatal(err)
	}
	if overlap {
		t.Error("disjoint sibling directories must not overlap without a concrete shared file")
	}
}

func TestOverlap_ConcreteFileProbe(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "app", "api", "shared.py"), "x")

	overlap, err := Overlap(root, "app/api/*.py", "app/**/shared.py")
	if err != nil {
		t.Fatal(err)
	}
	if !overlap {
		t.Error("expected probe to find shared.py matching both patterns")
	}
}

func TestOverlap_ConcreteFileProbe_NoMatch(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "app", "api", "only_here.py"), "x")

	overlap, err := Overlap(root, "app/api/*.py", "docs/**/*.md")
	if err != nil {
		t.Fatal(err)
	}
	if overlap {
		t.Error("expected no overlap between unrelated pattern sets")
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
