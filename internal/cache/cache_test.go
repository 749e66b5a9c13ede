package cache_test

import (
	"testing"

	"qsol/internal/cache"
)

func TestMemCache_HitMiss(t *testing.T) {
	c := cache.NewMemCache(4)
	d1 := cache.HashBytes([]byte("problem P {}"))
	d2 := cache.HashBytes([]byte("problem P { }"))

	c.Put(cache.Record{
		Path:         "m/p.qsol",
		Dir:          "m",
		ContentHash:  d1,
		ProblemNames: []string{"P"},
	})

	if _, ok := c.Get("m/p.qsol", d2); ok {
		t.Fatal("expected miss on a different content hash")
	}
	rec, ok := c.Get("m/p.qsol", d1)
	if !ok {
		t.Fatal("expected hit on the original content hash")
	}
	if rec.Dir != "m" || len(rec.ProblemNames) != 1 || rec.ProblemNames[0] != "P" {
		t.Fatalf("unexpected record: %+v", rec)
	}

	if _, ok := c.Get("m/other.qsol", d1); ok {
		t.Fatal("expected miss on an unknown path")
	}
}

func TestDiskCache_RoundTrip(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	dc, err := cache.OpenDiskCache("qsol-test")
	if err != nil {
		t.Fatalf("OpenDiskCache: %v", err)
	}

	digest := cache.HashBytes([]byte("problem P {}"))
	rec := &cache.Record{
		Path:             "m/p.qsol",
		Dir:              "m",
		ContentHash:      digest,
		ParamNames:       []string{"n"},
		Broken:           true,
		DiagnosticsCount: 1,
		FirstDiagnostic: &cache.CachedDiagnostic{
			Severity: "error",
			Code:     "QSOL0001",
			Message:  "boom",
			Line:     3,
			Col:      5,
		},
	}
	if err := dc.Put(digest, rec); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok, err := dc.Get(digest)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("expected hit after Put")
	}
	if got.Path != rec.Path || !got.Broken || got.FirstDiagnostic == nil || got.FirstDiagnostic.Message != "boom" {
		t.Fatalf("unexpected round-tripped record: %+v", got)
	}

	var missing cache.Digest
	missing[0] = 0xFF
	if _, ok, err := dc.Get(missing); err != nil || ok {
		t.Fatalf("expected clean miss for an absent digest, got ok=%v err=%v", ok, err)
	}
}

func TestDiskCache_DropAll(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	dc, err := cache.OpenDiskCache("qsol-test")
	if err != nil {
		t.Fatalf("OpenDiskCache: %v", err)
	}
	digest := cache.HashBytes([]byte("x"))
	if err := dc.Put(digest, &cache.Record{Path: "m/x.qsol", ContentHash: digest}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := dc.DropAll(); err != nil {
		t.Fatalf("DropAll: %v", err)
	}
	if _, ok, err := dc.Get(digest); err != nil || ok {
		t.Fatalf("expected miss after DropAll, got ok=%v err=%v", ok, err)
	}
}

func TestNilDiskCache_IsNoOp(t *testing.T) {
	var dc *cache.DiskCache
	if err := dc.Put(cache.Digest{}, &cache.Record{}); err != nil {
		t.Fatalf("Put on nil *DiskCache should be a no-op, got %v", err)
	}
	if _, ok, err := dc.Get(cache.Digest{}); err != nil || ok {
		t.Fatalf("Get on nil *DiskCache should be a clean miss, got ok=%v err=%v", ok, err)
	}
	if err := dc.DropAll(); err != nil {
		t.Fatalf("DropAll on nil *DiskCache should be a no-op, got %v", err)
	}
}
