package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestComputeBlake3Hash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.yaml")
	if err := os.WriteFile(path, []byte("x: 1\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	h1, err := ComputeBlake3Hash(path)
	if err != nil {
		t.Fatalf("ComputeBlake3Hash: %v", err)
	}
	if len(h1) != 64 {
		t.Fatalf("hash length = %d, want 64", len(h1))
	}
	if err := VerifyFileHash(path, h1); err != nil {
		t.Fatalf("VerifyFileHash: %v", err)
	}

	if err := os.WriteFile(path, []byte("x: 2\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := VerifyFileHash(path, h1); err == nil {
		t.Fatal("expected mismatch after edit")
	}
}

func TestLockAndVerify(t *testing.T) {
	t.Setenv(EnvSecret, "")
	path := writeConfig(t, "webhook:\n  secret: s\n")
	dir := filepath.Dir(path)

	if err := VerifyLock(path); err != nil {
		t.Fatalf("VerifyLock without manifest: %v", err)
	}
	if _, err := LoadChecksums(dir); !errors.Is(err, ErrNoManifest) {
		t.Fatalf("LoadChecksums error = %v, want ErrNoManifest", err)
	}

	manifest, err := Lock(path)
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if manifest.Hashes["config.yaml"] == "" {
		t.Fatal("config.yaml hash missing from manifest")
	}

	info, err := os.Stat(filepath.Join(dir, ChecksumFile))
	if err != nil {
		t.Fatalf("stat checksums: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("checksums mode = %v, want 0600", info.Mode().Perm())
	}

	if _, err := Load(path); err != nil {
		t.Fatalf("Load after lock: %v", err)
	}

	if err := os.WriteFile(path, []byte("webhook:\n  secret: tampered\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err = Load(path)
	if err == nil || !strings.Contains(err.Error(), "tampering") {
		t.Fatalf("Load after edit error = %v, want tampering error", err)
	}

	if _, err := Lock(path); err != nil {
		t.Fatalf("re-Lock: %v", err)
	}
	if _, err := Load(path); err != nil {
		t.Fatalf("Load after re-lock: %v", err)
	}
}

func TestVerifyLockUnlistedFile(t *testing.T) {
	dir := t.TempDir()
	other := filepath.Join(dir, "other.yaml")
	if err := os.WriteFile(other, []byte("a: 1\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Lock(other); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("b: 2\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	err := VerifyLock(path)
	if err == nil || !strings.Contains(err.Error(), "no hash") {
		t.Fatalf("VerifyLock error = %v, want missing hash", err)
	}

	// Lock keeps the hashes already recorded.
	manifest, err := Lock(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(manifest.Hashes) != 2 {
		t.Errorf("manifest has %d hashes, want 2", len(manifest.Hashes))
	}
}

func TestLoadChecksumsBadVersion(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ChecksumFile), []byte("version: 2\nhashes: {}\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadChecksums(dir); err == nil {
		t.Fatal("expected unsupported version error")
	}
}
