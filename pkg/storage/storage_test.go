package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func newTestFolder(t *testing.T) *Folder {
	t.Helper()
	f, err := New(filepath.Join(t.TempDir(), "storage"))
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestEnsureCreatesMissingFolder(t *testing.T) {
	f := newTestFolder(t)
	if filepath.Base(f.Path) != FolderName {
		t.Errorf("expected the folder to be called %s, got %s", FolderName, f.Path)
	}
	if exists(f.Path) {
		t.Fatalf("%s should not exist yet", f.Path)
	}

	if err := f.Ensure(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !exists(f.Path) {
		t.Errorf("%s was not created", f.Path)
	}
}

func TestEnsureKeepsExistingFolder(t *testing.T) {
	f := newTestFolder(t)
	ctx := context.Background()

	if err := f.Ensure(ctx); err != nil {
		t.Fatal(err)
	}
	marker := f.Join("depot_tools")
	if err := os.Mkdir(marker, 0o770); err != nil {
		t.Fatal(err)
	}

	if err := f.Ensure(ctx); err != nil {
		t.Fatal(err)
	}
	if !exists(marker) {
		t.Errorf("existing content was removed")
	}
}

func TestDelete(t *testing.T) {
	f := newTestFolder(t)
	ctx := context.Background()

	if err := f.Ensure(ctx); err != nil {
		t.Fatal(err)
	}
	if err := f.Delete(ctx); err != nil {
		t.Fatal(err)
	}
	if exists(f.Path) {
		t.Errorf("%s still exists", f.Path)
	}
}

func TestDeleteMissingFolder(t *testing.T) {
	f := newTestFolder(t)
	if err := f.Delete(context.Background()); err != nil {
		t.Fatalf("deleting a missing folder should succeed: %v", err)
	}
}

func TestNewDefaultsToHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	f, err := New("")
	if err != nil {
		t.Fatal(err)
	}
	if f.Path != filepath.Join(home, FolderName) {
		t.Errorf("expected %s, got %s", filepath.Join(home, FolderName), f.Path)
	}

	f, err = New("~/cache")
	if err != nil {
		t.Fatal(err)
	}
	if f.Path != filepath.Join(home, "cache", FolderName) {
		t.Errorf("expected %s, got %s", filepath.Join(home, "cache", FolderName), f.Path)
	}
}
