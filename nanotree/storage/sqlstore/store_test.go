package sqlstore_test

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/arthur-debert/nanotree/nanotree/storage"
	"github.com/arthur-debert/nanotree/nanotree/storage/sqlstore"
	"github.com/arthur-debert/nanotree/nanotree/storage/storagetest"
	"github.com/arthur-debert/nanotree/types"
)

func openMemory(t *testing.T, opts types.Options) storage.Backend {
	t.Helper()
	s, err := sqlstore.Open(":memory:", opts)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestContract(t *testing.T) {
	storagetest.Run(t, openMemory)
}

func TestContractOnFile(t *testing.T) {
	storagetest.Run(t, func(t *testing.T, opts types.Options) storage.Backend {
		t.Helper()
		s, err := sqlstore.Open(filepath.Join(t.TempDir(), "tree.db"), opts)
		if err != nil {
			t.Fatalf("failed to open store: %v", err)
		}
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestReopenKeepsRows(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "tree.db")
	opts := storagetest.Options()

	s, err := sqlstore.Open(dbPath, opts)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	ids := storagetest.Seed(t, s, map[string]string{"001": "a", "001001": "a1"})
	if err := s.Close(); err != nil {
		t.Fatalf("failed to close: %v", err)
	}

	s, err = sqlstore.Open(dbPath, opts)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer func() { _ = s.Close() }()

	rec, err := s.SelectByID(ids["001001"])
	if err != nil {
		t.Fatalf("failed to select: %v", err)
	}
	if rec.Path != "001001" || rec.ParentID != ids["001"] {
		t.Errorf("unexpected record after reopen: %+v", rec)
	}
}

func TestReopenWithOtherEncodingFails(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "tree.db")
	opts := storagetest.Options()

	s, err := sqlstore.Open(dbPath, opts)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	_ = s.Close()

	opts.StepLength = 4
	_, err = sqlstore.Open(dbPath, opts)
	if !errors.Is(err, types.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	if !strings.Contains(err.Error(), "step length 3") {
		t.Errorf("error should name the stored encoding, got %v", err)
	}
}

func TestReopenWithNewOrderByFieldFails(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "tree.db")
	opts := storagetest.Options()

	s, err := sqlstore.Open(dbPath, opts)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	_ = s.Close()

	opts.OrderBy = append(opts.OrderBy, "priority")
	if _, err := sqlstore.Open(dbPath, opts); !errors.Is(err, types.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for missing column, got %v", err)
	}
}

func TestCustomColumnNames(t *testing.T) {
	opts := types.Options{
		Table:            "categories",
		IDField:          "uid",
		PathField:        "mpath",
		ParentIDField:    "parent",
		DepthField:       "lvl",
		NumChildrenField: "kids",
		DataField:        "payload",
		StepLength:       3,
	}
	s := openMemory(t, opts)

	ids := storagetest.Seed(t, s, map[string]string{"001": "root", "001001": "leaf"})
	rec, err := s.SelectByID(ids["001001"])
	if err != nil {
		t.Fatalf("failed to select: %v", err)
	}
	if rec.Depth != 2 || rec.ParentID != ids["001"] {
		t.Errorf("unexpected record: %+v", rec)
	}

	var n int
	if err := s.(*sqlstore.Store).DB().QueryRow("SELECT COUNT(*) FROM categories WHERE kids = 1").Scan(&n); err != nil {
		t.Fatalf("failed to query custom column: %v", err)
	}
	if n != 1 {
		t.Errorf("expected one row with kids = 1, got %d", n)
	}
}

func TestOpenRejectsBadIdentifiers(t *testing.T) {
	opts := types.DefaultOptions()
	opts.Table = "nodes; DROP TABLE x"
	if _, err := sqlstore.Open(":memory:", opts); !errors.Is(err, types.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}
