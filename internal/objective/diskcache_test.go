package objective

import (
	"testing"
)

func TestBadgerCacheRoundTripAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	cache, err := OpenBadgerCache(dir)
	if err != nil {
		t.Fatalf("OpenBadgerCache: %v", err)
	}
	cache.Put("abc:sig", []float64{1.5, -2.25})
	got, ok := cache.Get("abc:sig")
	if !ok || len(got) != 2 || got[0] != 1.5 || got[1] != -2.25 {
		t.Fatalf("Get = %v %v, want [1.5 -2.25] true", got, ok)
	}
	if _, ok := cache.Get("missing"); ok {
		t.Fatal("Get returned a value for a missing key")
	}
	if err := cache.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := OpenBadgerCache(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	got, ok = reopened.Get("abc:sig")
	if !ok || len(got) != 2 || got[0] != 1.5 {
		t.Fatalf("Get after reopen = %v %v, want persisted values", got, ok)
	}
}
