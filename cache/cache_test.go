package cache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jonwraymond/modmemo/anyvalue"
	"github.com/jonwraymond/modmemo/fingerprint"
)

// TestCacheKey_Validation tests key validation rules.
func TestCacheKey_Validation(t *testing.T) {
	tests := []struct {
		name    string
		key     Key
		wantErr error
	}{
		{"empty key", "", ErrInvalidKey},
		{"valid key", "energy:h2:sto-3g", nil},
		{"too long", Key(strings.Repeat("x", MaxKeyLength+1)), ErrKeyTooLong},
		{"contains newline", "key\nwith\nnewlines", ErrInvalidKey},
		{"contains carriage return", "key\rwith\rreturns", ErrInvalidKey},
		{"whitespace only", "   ", ErrInvalidKey},
		{"max length exactly", Key(strings.Repeat("x", MaxKeyLength)), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateKey(tt.key)
			if err != tt.wantErr {
				t.Errorf("ValidateKey(%q) = %v, want %v", tt.key, err, tt.wantErr)
			}
		})
	}
}

// TestKeyOf_RoundTrip verifies fingerprint keys decode back to their fingerprint.
func TestKeyOf_RoundTrip(t *testing.T) {
	fp, err := fingerprint.New("square", "1").Input("x", anyvalue.Wrap(5)).Sum()
	if err != nil {
		t.Fatalf("Sum error = %v", err)
	}
	k := KeyOf(fp)
	if err := ValidateKey(k); err != nil {
		t.Fatalf("ValidateKey(KeyOf) = %v", err)
	}
	back, ok := k.Fingerprint()
	if !ok || back != fp {
		t.Errorf("Fingerprint() = (%s, %v), want (%s, true)", back, ok, fp)
	}
	if _, ok := Key("explicit").Fingerprint(); ok {
		t.Error("explicit key reported a fingerprint")
	}
	if _, ok := Key("fp:nothex").Fingerprint(); ok {
		t.Error("malformed fingerprint key accepted")
	}
}

type staticKeyer struct {
	fp  fingerprint.Fingerprint
	err error
}

func (s staticKeyer) Fingerprint() (fingerprint.Fingerprint, error) { return s.fp, s.err }

// TestComputeKey verifies keys come from the Keyer and errors propagate.
func TestComputeKey(t *testing.T) {
	var fp fingerprint.Fingerprint
	fp[0] = 0xab
	k, err := ComputeKey(staticKeyer{fp: fp})
	if err != nil || k != KeyOf(fp) {
		t.Errorf("ComputeKey = (%q, %v)", k, err)
	}
	boom := errors.New("not ready")
	if _, err := ComputeKey(staticKeyer{err: boom}); !errors.Is(err, boom) {
		t.Errorf("ComputeKey error = %v, want wrapped %v", err, boom)
	}
	if _, err := ComputeKey(nil); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("ComputeKey(nil) error = %v", err)
	}
}

// TestTag_Text verifies tag names parse back.
func TestTag_Text(t *testing.T) {
	for _, tag := range []Tag{TagSession, TagDurable} {
		text, err := tag.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%v) error = %v", tag, err)
		}
		var back Tag
		if err := back.UnmarshalText(text); err != nil || back != tag {
			t.Errorf("UnmarshalText(%q) = (%v, %v)", text, back, err)
		}
	}
	if _, err := ParseTag("forever"); err == nil {
		t.Error("ParseTag accepted an unknown name")
	}
	if _, err := Tag(9).MarshalText(); err == nil {
		t.Error("MarshalText accepted an unknown tag")
	}
}

// TestCache_LookupMiss verifies a miss is not an error.
func TestCache_LookupMiss(t *testing.T) {
	c := New(DefaultPolicy())
	v, ok := c.Lookup(context.Background(), "missing")
	if ok || !v.IsEmpty() {
		t.Errorf("Lookup(missing) = (%v, %v), want (empty, false)", v, ok)
	}
	if c.Stats().Misses != 1 {
		t.Errorf("Misses = %d, want 1", c.Stats().Misses)
	}
}

// TestCache_InsertReplacePolicy verifies session entries are replaceable and durable ones are not.
func TestCache_InsertReplacePolicy(t *testing.T) {
	ctx := context.Background()
	c := New(DefaultPolicy())

	if err := c.Insert(ctx, "s", anyvalue.Wrap(1), WithTag(TagSession)); err != nil {
		t.Fatalf("Insert session error = %v", err)
	}
	if err := c.Insert(ctx, "s", anyvalue.Wrap(2), WithTag(TagSession)); err != nil {
		t.Fatalf("replacing session entry error = %v", err)
	}
	if v, _ := c.Lookup(ctx, "s"); anyvalue.MustCast[int](v) != 2 {
		t.Errorf("session entry = %v, want 2", v)
	}

	if err := c.Insert(ctx, "d", anyvalue.Wrap(1)); err != nil {
		t.Fatalf("Insert durable error = %v", err)
	}
	err := c.Insert(ctx, "d", anyvalue.Wrap(2))
	if !errors.Is(err, ErrDurableConflict) {
		t.Fatalf("replacing durable entry error = %v, want ErrDurableConflict", err)
	}
	err = c.Insert(ctx, "d", anyvalue.Wrap(3), WithTag(TagSession))
	if !errors.Is(err, ErrDurableConflict) {
		t.Fatalf("downgrading durable entry error = %v, want ErrDurableConflict", err)
	}
	if v, _ := c.Lookup(ctx, "d"); anyvalue.MustCast[int](v) != 1 {
		t.Errorf("durable entry changed to %v", v)
	}

	if err := c.Insert(ctx, "d", anyvalue.Wrap(4), Force()); err != nil {
		t.Fatalf("forced replace error = %v", err)
	}
	if v, _ := c.Lookup(ctx, "d"); anyvalue.MustCast[int](v) != 4 {
		t.Errorf("forced durable entry = %v, want 4", v)
	}

	// A session entry may be promoted to durable.
	if err := c.Insert(ctx, "s", anyvalue.Wrap(5), WithTag(TagDurable)); err != nil {
		t.Fatalf("promoting session entry error = %v", err)
	}
	if e, _ := c.Get("s"); e.Tag != TagDurable {
		t.Errorf("promoted tag = %v", e.Tag)
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
}

// TestCache_InsertRejects verifies invalid inserts.
func TestCache_InsertRejects(t *testing.T) {
	ctx := context.Background()
	c := New(DefaultPolicy())
	if err := c.Insert(ctx, "", anyvalue.Wrap(1)); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("empty key error = %v", err)
	}
	if err := c.Insert(ctx, "k", anyvalue.Value{}); !errors.Is(err, anyvalue.ErrEmpty) {
		t.Errorf("empty value error = %v", err)
	}
	if err := c.Insert(ctx, "k", anyvalue.Wrap(1), WithTag(Tag(7))); err == nil {
		t.Error("unknown tag accepted")
	}
	var nilCache *Cache
	if err := nilCache.Insert(ctx, "k", anyvalue.Wrap(1)); !errors.Is(err, ErrNilCache) {
		t.Errorf("nil cache error = %v", err)
	}
}

// TestCache_Evict verifies eviction by tag never touches durable entries without Force.
func TestCache_Evict(t *testing.T) {
	ctx := context.Background()
	c := New(DefaultPolicy())
	_ = c.Insert(ctx, "d1", anyvalue.Wrap(1))
	_ = c.Insert(ctx, "d2", anyvalue.Wrap(2))
	_ = c.Insert(ctx, "s1", anyvalue.Wrap(3), WithTag(TagSession))

	n, err := c.Evict(ctx, TagSession)
	if err != nil || n != 1 {
		t.Fatalf("Evict(session) = (%d, %v), want (1, nil)", n, err)
	}
	if c.Contains("s1") {
		t.Error("session entry survived eviction")
	}

	if _, err := c.Evict(ctx, TagDurable); !errors.Is(err, ErrDurableConflict) {
		t.Errorf("Evict(durable) error = %v, want ErrDurableConflict", err)
	}
	if c.Len() != 2 {
		t.Errorf("durable entries removed without Force, Len() = %d", c.Len())
	}

	n, err = c.Evict(ctx, TagDurable, Force())
	if err != nil || n != 2 {
		t.Errorf("Evict(durable, Force) = (%d, %v), want (2, nil)", n, err)
	}
	if c.Stats().Evictions != 3 {
		t.Errorf("Evictions = %d, want 3", c.Stats().Evictions)
	}
}

// TestCache_Delete verifies single-key removal.
func TestCache_Delete(t *testing.T) {
	ctx := context.Background()
	c := New(DefaultPolicy())
	_ = c.Insert(ctx, "d", anyvalue.Wrap(1))
	if err := c.Delete(ctx, "d"); !errors.Is(err, ErrDurableConflict) {
		t.Errorf("Delete(durable) error = %v", err)
	}
	if err := c.Delete(ctx, "d", Force()); err != nil {
		t.Errorf("Delete(durable, Force) error = %v", err)
	}
	if err := c.Delete(ctx, "missing"); err != nil {
		t.Errorf("Delete(missing) error = %v", err)
	}
}

// TestCache_SessionCapacity verifies the LRU bound applies to session entries only.
func TestCache_SessionCapacity(t *testing.T) {
	ctx := context.Background()
	c := New(Policy{DefaultTag: TagSession, MaxSessionEntries: 2})

	_ = c.Insert(ctx, "durable", anyvalue.Wrap(0), WithTag(TagDurable))
	_ = c.Insert(ctx, "a", anyvalue.Wrap(1))
	_ = c.Insert(ctx, "b", anyvalue.Wrap(2))
	c.Lookup(ctx, "a") // a is now most recent
	_ = c.Insert(ctx, "c", anyvalue.Wrap(3))

	if c.Contains("b") {
		t.Error("least recently used session entry not evicted")
	}
	for _, k := range []Key{"durable", "a", "c"} {
		if !c.Contains(k) {
			t.Errorf("%s missing after eviction", k)
		}
	}
	if c.Stats().Evictions != 1 {
		t.Errorf("Evictions = %d, want 1", c.Stats().Evictions)
	}
}

// TestCache_Entries verifies the snapshot is sorted and complete.
func TestCache_Entries(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	c := New(DefaultPolicy(), WithClock(func() time.Time { return now }))
	_ = c.Insert(ctx, "b", anyvalue.Wrap(2))
	_ = c.Insert(ctx, "c", anyvalue.Wrap(3), WithTag(TagSession))
	_ = c.Insert(ctx, "a", anyvalue.Wrap(1))

	entries := c.Entries()
	if len(entries) != 3 {
		t.Fatalf("len(Entries()) = %d, want 3", len(entries))
	}
	want := []Key{"a", "b", "c"}
	for i, e := range entries {
		if e.Key != want[i] {
			t.Errorf("entries[%d].Key = %q, want %q", i, e.Key, want[i])
		}
		if !e.StoredAt.Equal(now) {
			t.Errorf("entries[%d].StoredAt = %v", i, e.StoredAt)
		}
	}
	if entries[2].Tag != TagSession {
		t.Errorf("entries[2].Tag = %v, want session", entries[2].Tag)
	}
}

// TestSentinelErrors verifies sentinel errors have expected messages.
func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{"ErrNilCache", ErrNilCache, "cache: cache is nil"},
		{"ErrInvalidKey", ErrInvalidKey, "cache: key is invalid"},
		{"ErrKeyTooLong", ErrKeyTooLong, "cache: key exceeds max length"},
		{"ErrDurableConflict", ErrDurableConflict, "cache: durable entry cannot be replaced"},
		{"ErrPoisoned", ErrPoisoned, "cache: key holds a cached failure"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("%s.Error() = %q, want %q", tt.name, got, tt.wantMsg)
			}
		})
	}
}
