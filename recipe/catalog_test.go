package recipe

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	apperrors "github.com/kbukum/runkit/errors"
	"github.com/kbukum/runkit/logger"
	"github.com/kbukum/runkit/observability"
)

func writeRecipes(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestCatalog_LoadDirs(t *testing.T) {
	dir := writeRecipes(t, map[string]string{
		"shout.yaml":       shoutYAML,
		"nested/clean.yml": "name: clean\nroot:\n  sequence:\n    - unit: trim\n    - unit: lower\n",
		"nested/both.yaml": "name: both\nroot:\n  sequence:\n    - recipe: clean\n    - recipe: shout\n",
		"README.md":        "not a recipe",
	})
	cat := NewCatalog(Builtins(), logger.NewNop())
	if err := cat.LoadDirs(dir); err != nil {
		t.Fatalf("LoadDirs: %v", err)
	}

	list := cat.List()
	if len(list) != 3 || list[0].Name != "both" || list[2].Name != "shout" {
		t.Fatalf("unexpected list %+v", list)
	}
	if list[2].Kind != KindSequence || list[2].Description == "" {
		t.Errorf("unexpected summary %+v", list[2])
	}

	u, err := cat.Get("both")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	got, err := u.Invoke(context.Background(), " Hi ")
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got != "HI" {
		t.Errorf("expected HI, got %v", got)
	}

	if h := cat.CheckHealth(context.Background()); h.Status != observability.HealthStatusUp {
		t.Errorf("expected up, got %+v", h)
	}
}

func TestCatalog_RecordsFailures(t *testing.T) {
	dir := writeRecipes(t, map[string]string{
		"good.yaml":    "name: good\nroot:\n  unit: trim\n",
		"broken.yaml":  "name: [oops\n",
		"missing.yaml": "name: missing\nroot:\n  unit: nope\n",
		"dup.yaml":     "name: good\nroot:\n  unit: upper\n",
	})
	cat := NewCatalog(Builtins(), logger.NewNop())
	if err := cat.LoadDirs(dir); err != nil {
		t.Fatalf("LoadDirs: %v", err)
	}
	if cat.Len() != 1 {
		t.Errorf("expected one recipe, got %d", cat.Len())
	}
	if n := len(cat.Failures()); n != 3 {
		t.Errorf("expected 3 failures, got %d: %v", n, cat.Failures())
	}

	h := cat.CheckHealth(context.Background())
	if h.Status != observability.HealthStatusDegraded || h.Details["failed"] != "3" {
		t.Errorf("expected degraded with 3 failures, got %+v", h)
	}
}

func TestCatalog_MissingDir(t *testing.T) {
	cat := NewCatalog(Builtins(), nil)
	if err := cat.LoadDirs(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Error("expected an error for a missing directory")
	}
}

func TestCatalog_AddAndGet(t *testing.T) {
	cat := NewCatalog(Builtins(), nil)
	r, err := Parse([]byte(shoutYAML))
	if err != nil {
		t.Fatal(err)
	}
	if err := cat.Add(r); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := cat.Add(r); !apperrors.HasCode(err, apperrors.ErrCodeAlreadyExists) {
		t.Errorf("expected ALREADY_EXISTS, got %v", err)
	}
	if _, err := cat.Get("nope"); !apperrors.HasCode(err, apperrors.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
	def, err := cat.Recipe("shout")
	if err != nil || def != r {
		t.Errorf("expected the added definition, got %v, %v", def, err)
	}
}
