package jsonstore_test

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/arthur-debert/nanotree/nanotree/query"
	"github.com/arthur-debert/nanotree/nanotree/storage"
	"github.com/arthur-debert/nanotree/nanotree/storage/jsonstore"
	"github.com/arthur-debert/nanotree/nanotree/storage/storagetest"
	"github.com/arthur-debert/nanotree/types"
)

func TestContractMemory(t *testing.T) {
	storagetest.Run(t, func(t *testing.T, opts types.Options) storage.Backend {
		s, err := jsonstore.NewMemory(opts)
		if err != nil {
			t.Fatalf("failed to create store: %v", err)
		}
		return s
	})
}

func TestContractFile(t *testing.T) {
	storagetest.Run(t, func(t *testing.T, opts types.Options) storage.Backend {
		s, err := jsonstore.Open(filepath.Join(t.TempDir(), "tree.json"), opts)
		if err != nil {
			t.Fatalf("failed to open store: %v", err)
		}
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestPersistence(t *testing.T) {
	file := filepath.Join(t.TempDir(), "tree.json")
	opts := storagetest.Options()

	s, err := jsonstore.Open(file, opts)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	ids := storagetest.Seed(t, s, map[string]string{"001": "a", "001001": "a1"})
	_ = s.Close()

	reopened, err := jsonstore.Open(file, opts)
	if err != nil {
		t.Fatalf("failed to reopen: %v", err)
	}
	rec, err := reopened.SelectByID(ids["001001"])
	if err != nil {
		t.Fatalf("failed to select: %v", err)
	}
	if rec.Path != "001001" || rec.Depth != 2 || rec.ParentID != ids["001"] {
		t.Errorf("unexpected record after reopen: %+v", rec)
	}
	if title, _ := rec.Get("title"); title != "a1" {
		t.Errorf("expected title a1, got %v", title)
	}
}

func TestFileLayoutUsesConfiguredNames(t *testing.T) {
	fs := jsonstore.NewMemFS()
	opts := storagetest.Options()
	opts.PathField = "mpath"
	opts.NumChildrenField = "kids"

	s, err := jsonstore.Open("/tree.json", opts,
		jsonstore.WithFileSystem(fs),
		jsonstore.WithFileLockFactory(jsonstore.NewMockFileLockFactory()))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	storagetest.Seed(t, s, map[string]string{"001": "a"})

	raw, ok := fs.Contents("/tree.json")
	if !ok {
		t.Fatal("expected tree file to be written")
	}
	var doc struct {
		Metadata storage.Metadata         `json:"metadata"`
		Rows     []map[string]interface{} `json:"rows"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("failed to parse file: %v", err)
	}
	if doc.Metadata.StepLength != 3 || doc.Metadata.Version != storage.FormatVersion {
		t.Errorf("unexpected metadata: %+v", doc.Metadata)
	}
	if len(doc.Rows) != 1 || doc.Rows[0]["mpath"] != "001" {
		t.Fatalf("unexpected rows: %v", doc.Rows)
	}
	if _, ok := doc.Rows[0]["kids"]; !ok {
		t.Errorf("expected kids column, got %v", doc.Rows[0])
	}
	if fs.Exists("/tree.json.tmp") {
		t.Errorf("temp file left behind")
	}
}

func TestFailedCommitLeavesStateUntouched(t *testing.T) {
	fs := jsonstore.NewMemFS()
	opts := storagetest.Options()
	s, err := jsonstore.Open("/tree.json", opts,
		jsonstore.WithFileSystem(fs),
		jsonstore.WithFileLockFactory(jsonstore.NewMockFileLockFactory()))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	storagetest.Seed(t, s, map[string]string{"001": "a", "002": "b"})
	before, _ := fs.Contents("/tree.json")

	fs.FailCommits(errors.New("disk full"))

	tx, err := s.Begin(context.Background())
	if err != nil {
		t.Fatalf("failed to begin: %v", err)
	}
	if _, err := tx.RewritePathPrefix("002", "003", opts.StepLength); err != nil {
		t.Fatalf("failed to rewrite: %v", err)
	}
	if err := tx.Commit(); err == nil {
		t.Fatal("expected commit to fail")
	}

	if _, err := s.SelectByPath("002"); err != nil {
		t.Errorf("in-memory state changed after failed commit: %v", err)
	}
	after, _ := fs.Contents("/tree.json")
	if string(before) != string(after) {
		t.Errorf("file changed after failed commit")
	}
	if fs.Exists("/tree.json.tmp") {
		t.Errorf("temp file left behind")
	}

	// The store recovers once the disk does
	fs.FailCommits(nil)
	tx, err = s.Begin(context.Background())
	if err != nil {
		t.Fatalf("failed to begin after failed commit: %v", err)
	}
	_ = tx.Rollback()
}

func TestCommitFaults(t *testing.T) {
	testCases := []struct {
		name    string
		op      jsonstore.FSOp
		removes int
	}{
		{"temp file write", jsonstore.OpWrite, 0},
		{"rename over tree file", jsonstore.OpRename, 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fs := jsonstore.NewMemFS()
			opts := storagetest.Options()
			s, err := jsonstore.Open("/tree.json", opts,
				jsonstore.WithFileSystem(fs),
				jsonstore.WithFileLockFactory(jsonstore.NewMockFileLockFactory()))
			if err != nil {
				t.Fatalf("failed to open store: %v", err)
			}
			storagetest.Seed(t, s, map[string]string{"003": "c", "001": "a", "002": "b", "001001": "a1"})

			// Rows are written in path order
			raw, _ := fs.Contents("/tree.json")
			var doc struct {
				Rows []map[string]interface{} `json:"rows"`
			}
			if err := json.Unmarshal(raw, &doc); err != nil {
				t.Fatalf("failed to parse file: %v", err)
			}
			var paths []string
			for _, row := range doc.Rows {
				p, _ := row[opts.PathField].(string)
				paths = append(paths, p)
			}
			if got := strings.Join(paths, " "); got != "001 001001 002 003" {
				t.Errorf("expected rows in path order, got %s", got)
			}

			rewrite := func(oldPrefix, newPrefix string) error {
				tx, err := s.Begin(context.Background())
				if err != nil {
					return err
				}
				if _, err := tx.RewritePathPrefix(oldPrefix, newPrefix, opts.StepLength); err != nil {
					_ = tx.Rollback()
					return err
				}
				return tx.Commit()
			}

			// The first commit gets through, the second one breaks
			fs.Fail(tc.op, 1, errors.New("disk full"))
			if err := rewrite("003", "004"); err != nil {
				t.Fatalf("failed to commit before the fault: %v", err)
			}
			saved, _ := fs.Contents("/tree.json")
			removes := fs.Calls(jsonstore.OpRemove)

			if err := rewrite("004", "005"); err == nil {
				t.Fatal("expected commit to fail")
			}
			if _, err := s.SelectByPath("004"); err != nil {
				t.Errorf("in-memory state changed after failed commit: %v", err)
			}
			if after, _ := fs.Contents("/tree.json"); string(after) != string(saved) {
				t.Errorf("tree file changed after failed commit")
			}
			if fs.Exists("/tree.json.tmp") {
				t.Errorf("temp file left behind")
			}
			if got := fs.Calls(jsonstore.OpRemove) - removes; got != tc.removes {
				t.Errorf("expected %d temp file removals, got %d", tc.removes, got)
			}

			fs.Fail(tc.op, 0, nil)
			if err := rewrite("004", "005"); err != nil {
				t.Fatalf("failed to commit after healing: %v", err)
			}
		})
	}
}

func TestBeginSeesOtherWriters(t *testing.T) {
	fs := jsonstore.NewMemFS()
	locks := jsonstore.NewMockFileLockFactory()
	opts := storagetest.Options()

	open := func() *jsonstore.Store {
		s, err := jsonstore.Open("/tree.json", opts, jsonstore.WithFileSystem(fs), jsonstore.WithFileLockFactory(locks))
		if err != nil {
			t.Fatalf("failed to open store: %v", err)
		}
		return s
	}
	a, b := open(), open()

	storagetest.Seed(t, a, map[string]string{"001": "a"})

	tx, err := b.Begin(context.Background())
	if err != nil {
		t.Fatalf("failed to begin: %v", err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.SelectByPath("001"); err != nil {
		t.Errorf("transaction did not reload the file: %v", err)
	}
}

func TestBeginHonorsLockErrors(t *testing.T) {
	locks := jsonstore.NewMockFileLockFactory()
	s, err := jsonstore.Open("/tree.json", storagetest.Options(),
		jsonstore.WithFileSystem(jsonstore.NewMemFS()),
		jsonstore.WithFileLockFactory(locks))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}

	locks.Lock("/tree.json.lock").LockErr = errors.New("lock broken")
	if _, err := s.Begin(context.Background()); err == nil {
		t.Fatal("expected begin to fail when the lock cannot be taken")
	}

	// The in-process writer slot was released
	locks.Lock("/tree.json.lock").LockErr = nil
	tx, err := s.Begin(context.Background())
	if err != nil {
		t.Fatalf("failed to begin: %v", err)
	}
	if !locks.Lock("/tree.json.lock").IsLocked() {
		t.Errorf("expected file lock to be held during the transaction")
	}
	_ = tx.Rollback()
	if locks.Lock("/tree.json.lock").IsLocked() {
		t.Errorf("expected file lock to be released after rollback")
	}
}

func TestBeginWaitsForWriter(t *testing.T) {
	s, err := jsonstore.NewMemory(storagetest.Options())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	tx, err := s.Begin(context.Background())
	if err != nil {
		t.Fatalf("failed to begin: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := s.Begin(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected second writer to time out, got %v", err)
	}

	// Readers are not blocked by the open transaction
	if _, err := s.Count(query.Query{}); err != nil {
		t.Errorf("read blocked by transaction: %v", err)
	}

	_ = tx.Rollback()
	tx, err = s.Begin(context.Background())
	if err != nil {
		t.Fatalf("failed to begin after rollback: %v", err)
	}
	_ = tx.Rollback()
}

func TestCorruptFile(t *testing.T) {
	fs := jsonstore.NewMemFS()
	_ = fs.WriteFile("/tree.json", []byte(`{"rows": [{"id": "x"}]}`), 0644)

	_, err := jsonstore.Open("/tree.json", storagetest.Options(),
		jsonstore.WithFileSystem(fs),
		jsonstore.WithFileLockFactory(jsonstore.NewMockFileLockFactory()))
	if !errors.Is(err, types.ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}

func TestEncodingMismatch(t *testing.T) {
	fs := jsonstore.NewMemFS()
	locks := jsonstore.NewMockFileLockFactory()
	opts := storagetest.Options()

	s, err := jsonstore.Open("/tree.json", opts, jsonstore.WithFileSystem(fs), jsonstore.WithFileLockFactory(locks))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	storagetest.Seed(t, s, map[string]string{"001": "a"})

	opts.Alphabet = "0123456789"
	_, err = jsonstore.Open("/tree.json", opts, jsonstore.WithFileSystem(fs), jsonstore.WithFileLockFactory(locks))
	if !errors.Is(err, types.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}
