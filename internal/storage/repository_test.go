package storage_test

import (
	"path/filepath"
	"testing"

	"hisaab/internal/storage"
	"hisaab/internal/storage/storetest"
)

func TestSQLiteRepository(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storage.Store {
		repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "hisaab.db"))
		if err != nil {
			t.Fatalf("NewSQLiteRepository() = %v", err)
		}
		t.Cleanup(func() { repo.Close() })
		return repo
	})
}

func TestMigrationVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fresh.db")

	v, dirty, err := storage.MigrationVersion(path)
	if err != nil || v != 0 || dirty {
		t.Fatalf("fresh database: version=%d dirty=%v err=%v", v, dirty, err)
	}
	if err := storage.RunMigrations(path); err != nil {
		t.Fatalf("RunMigrations() = %v", err)
	}
	if err := storage.RunMigrations(path); err != nil {
		t.Fatalf("second RunMigrations() = %v", err)
	}
	v, dirty, err = storage.MigrationVersion(path)
	if err != nil || v != 1 || dirty {
		t.Fatalf("after migrate: version=%d dirty=%v err=%v", v, dirty, err)
	}
}
