package repository

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"ns-keys/internal/models"
)

func openTestStore(t *testing.T, uid string) *Store {
	t.Helper()
	s, err := OpenStore(t.TempDir(), uid)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenStoreCreatesPerUserFile(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenStore(dir, "alice")
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	defer s.Close()

	if s.Path != filepath.Join(dir, "ns_keys_alice.db") {
		t.Fatalf("unexpected path %s", s.Path)
	}
	if _, err := os.Stat(s.Path); err != nil {
		t.Fatalf("database file missing: %v", err)
	}
	for _, table := range []string{"kek_states", "seed_entries", "seed_entry_bks", "cose_key_entries", "cose_key_entry_bks"} {
		if !s.DB.Migrator().HasTable(table) {
			t.Fatalf("table %s not migrated", table)
		}
	}
}

func TestKEKState(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, "u1")

	st, err := s.LoadKEKState(ctx)
	if err != nil || st != nil {
		t.Fatalf("expected no state, got %v %v", st, err)
	}

	first := models.KEKState{PK: "aa", CreatedAt: 1, State: []byte("s1"), Sig: []byte("sig1")}
	if err := s.SaveKEKState(ctx, first); err != nil {
		t.Fatalf("SaveKEKState: %v", err)
	}
	second := models.KEKState{PK: "bb", CreatedAt: 2, WithPassword: true, State: []byte("s2"), Sig: []byte("sig2")}
	if err := s.SaveKEKState(ctx, second); err != nil {
		t.Fatalf("SaveKEKState: %v", err)
	}

	latest, err := s.LoadKEKState(ctx)
	if err != nil {
		t.Fatalf("LoadKEKState: %v", err)
	}
	if latest.PK != "bb" || !bytes.Equal(latest.State, []byte("s2")) || !latest.WithPassword {
		t.Fatalf("unexpected latest state %+v", latest)
	}
	old, err := s.LoadKEKStateByPK(ctx, "aa")
	if err != nil || old == nil || !bytes.Equal(old.State, []byte("s1")) {
		t.Fatalf("historical state lost: %+v %v", old, err)
	}

	var count int64
	s.DB.Model(&models.KEKState{}).Count(&count)
	if count != 3 {
		t.Fatalf("expected 3 kek_states rows, got %d", count)
	}
}

func TestSeedEntries(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, "u2")

	if e, err := s.LoadSeed(ctx, "missing"); err != nil || e != nil {
		t.Fatalf("expected no seed, got %v %v", e, err)
	}

	e := &models.SeedEntry{PK: "p1", KekPK: "k1", CreatedAt: 10, UpdatedAt: 10, Alias: "main", Seed: []byte{1}}
	if err := s.SaveSeed(ctx, e); err != nil {
		t.Fatalf("SaveSeed: %v", err)
	}
	e.NsPaths = append(e.NsPaths, models.KeyPath{Alias: "key1", Path: "m/42'/0'/0'/1/0", Address: "0x00"})
	e.UpdatedAt = 11
	if err := s.SaveSeed(ctx, e); err != nil {
		t.Fatalf("SaveSeed update: %v", err)
	}
	if err := s.SaveSeed(ctx, &models.SeedEntry{PK: "p0", CreatedAt: 20, Alias: "second"}); err != nil {
		t.Fatalf("SaveSeed: %v", err)
	}

	got, err := s.LoadSeed(ctx, "p1")
	if err != nil || got == nil {
		t.Fatalf("LoadSeed: %v", err)
	}
	if got.UpdatedAt != 11 || len(got.NsPaths) != 1 || got.NsPaths[0].Alias != "key1" {
		t.Fatalf("unexpected seed %+v", got)
	}

	all, err := s.LoadSeedEntries(ctx)
	if err != nil {
		t.Fatalf("LoadSeedEntries: %v", err)
	}
	if len(all) != 2 || all[0].PK != "p1" || all[1].PK != "p0" {
		t.Fatalf("unexpected order %+v", all)
	}
}

func TestRotateKEK(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, "u3")

	e := models.SeedEntry{PK: "p1", KekPK: "k1", Alias: "main", Seed: []byte("old")}
	if err := s.SaveSeed(ctx, &e); err != nil {
		t.Fatalf("SaveSeed: %v", err)
	}
	resealed := e
	resealed.KekPK = "k2"
	resealed.Seed = []byte("new")
	st := models.KEKState{PK: "k2", State: []byte("s2")}

	if err := s.RotateKEK(ctx, []models.SeedEntry{e}, []models.SeedEntry{resealed}, st); err != nil {
		t.Fatalf("RotateKEK: %v", err)
	}

	live, _ := s.LoadSeed(ctx, "p1")
	if live.KekPK != "k2" || string(live.Seed) != "new" {
		t.Fatalf("live seed not updated: %+v", live)
	}
	bks, err := s.LoadSeedBackups(ctx)
	if err != nil {
		t.Fatalf("LoadSeedBackups: %v", err)
	}
	if len(bks) != 1 || bks[0].KekPK != "k1" || string(bks[0].Seed) != "old" {
		t.Fatalf("unexpected backups %+v", bks)
	}
	latest, _ := s.LoadKEKState(ctx)
	if latest == nil || latest.PK != "k2" {
		t.Fatalf("kek state not rotated: %+v", latest)
	}
}

func TestRotateKEKRollsBack(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := openTestStore(t, "u4")

	e := models.SeedEntry{PK: "p1", KekPK: "k1", Seed: []byte("old")}
	if err := s.SaveSeed(ctx, &e); err != nil {
		t.Fatalf("SaveSeed: %v", err)
	}
	cancel()
	resealed := e
	resealed.KekPK = "k2"
	if err := s.RotateKEK(ctx, []models.SeedEntry{e}, []models.SeedEntry{resealed}, models.KEKState{PK: "k2"}); err == nil {
		t.Fatal("expected cancelled rotation to fail")
	}

	live, _ := s.LoadSeed(context.Background(), "p1")
	if live.KekPK != "k1" {
		t.Fatalf("cancelled rotation changed live seed: %+v", live)
	}
	if st, _ := s.LoadKEKState(context.Background()); st != nil {
		t.Fatalf("cancelled rotation wrote kek state: %+v", st)
	}
}
