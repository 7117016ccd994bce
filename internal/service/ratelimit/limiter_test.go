package ratelimit

import (
	"testing"
	"time"
)

func TestAllowExhaustsBucket(t *testing.T) {
	l := New()
	for i := 0; i < 3; i++ {
		if !l.Allow("k", 3, 0) {
			t.Fatalf("request %d should pass", i)
		}
	}
	if l.Allow("k", 3, 0) {
		t.Fatal("bucket should be empty")
	}
}

func TestAllowRefills(t *testing.T) {
	l := New()
	if !l.Allow("k", 1, 100) {
		t.Fatal("first request should pass")
	}
	if l.Allow("k", 1, 100) {
		t.Fatal("bucket should be empty right after")
	}
	time.Sleep(20 * time.Millisecond)
	if !l.Allow("k", 1, 100) {
		t.Fatal("bucket should refill")
	}
}

func TestAllowKeysAreIndependent(t *testing.T) {
	l := New()
	if !l.Allow("a", 1, 0) {
		t.Fatal("first key should pass")
	}
	if !l.Allow("b", 1, 0) {
		t.Fatal("second key should pass")
	}
	if l.Allow("a", 1, 0) {
		t.Fatal("first key should be exhausted")
	}
}
