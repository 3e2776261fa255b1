package session

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newSessionStoreTest(t *testing.T) (*Store, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	return NewStore(rdb, "ps", time.Hour), mr, rdb
}

func testRecord() *Record {
	return &Record{
		Profile: Profile{
			ID:            "80351110224678912",
			Username:      "nelly",
			Discriminator: "1337",
			Avatar:        "8342729096ea3675442027381ff50dfe",
		},
		Memberships: []Membership{
			{ID: "g2", Name: "Beta"},
			{ID: "g1", Name: "Alpha <script>"},
		},
	}
}

func TestCreateThenGetReturnsSameRecord(t *testing.T) {
	store, _, _ := newSessionStoreTest(t)
	ctx := context.Background()
	rec := testRecord()

	sid, err := store.Create(ctx, rec)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if sid == "" || rec.SessionID != sid {
		t.Fatalf("expected session id to be assigned, got %q / %q", sid, rec.SessionID)
	}
	if rec.ExpiresAt-rec.CreatedAt != int64(time.Hour/time.Second) {
		t.Fatalf("unexpected lifetime %d", rec.ExpiresAt-rec.CreatedAt)
	}

	got, err := store.Get(ctx, sid)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !reflect.DeepEqual(got, rec) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, rec)
	}
}

func TestCreateSetsRedisTTL(t *testing.T) {
	store, mr, _ := newSessionStoreTest(t)
	sid, err := store.Create(context.Background(), testRecord())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if ttl := mr.TTL(store.key(sid)); ttl != time.Hour {
		t.Fatalf("expected 1h ttl, got %v", ttl)
	}
}

func TestCreateNeverReusesID(t *testing.T) {
	store, _, _ := newSessionStoreTest(t)
	ctx := context.Background()

	a, err := store.Create(ctx, testRecord())
	if err != nil {
		t.Fatalf("create a: %v", err)
	}
	b, err := store.Create(ctx, testRecord())
	if err != nil {
		t.Fatalf("create b: %v", err)
	}
	if a == b {
		t.Fatal("expected distinct session ids")
	}
}

func TestGetUnknownAndExpired(t *testing.T) {
	store, mr, _ := newSessionStoreTest(t)
	ctx := context.Background()

	if _, err := store.Get(ctx, "AAAAAAAAAAAAAAAAAAAAAA"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown id, got %v", err)
	}
	if _, err := store.Get(ctx, "not a session id"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for malformed id, got %v", err)
	}

	sid, err := store.Create(ctx, testRecord())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	mr.FastForward(2 * time.Hour)
	if _, err := store.Get(ctx, sid); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after expiry, got %v", err)
	}
}

func TestGetRejectsCorruptBlob(t *testing.T) {
	store, _, rdb := newSessionStoreTest(t)
	ctx := context.Background()
	sid := "AAAAAAAAAAAAAAAAAAAAAA"

	if err := rdb.Set(ctx, store.key(sid), []byte("bad"), time.Hour).Err(); err != nil {
		t.Fatalf("seed corrupt blob: %v", err)
	}
	if _, err := store.Get(ctx, sid); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}

func TestDestroyIsIdempotent(t *testing.T) {
	store, _, _ := newSessionStoreTest(t)
	ctx := context.Background()

	sid, err := store.Create(ctx, testRecord())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Destroy(ctx, sid); err != nil {
		t.Fatalf("first destroy: %v", err)
	}
	if err := store.Destroy(ctx, sid); err != nil {
		t.Fatalf("second destroy: %v", err)
	}
	if err := store.Destroy(ctx, "never-existed"); err != nil {
		t.Fatalf("unknown destroy: %v", err)
	}
	if _, err := store.Get(ctx, sid); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after destroy, got %v", err)
	}
}

func TestRedisDownIsReported(t *testing.T) {
	store, mr, _ := newSessionStoreTest(t)
	mr.Close()

	ctx := context.Background()
	if _, err := store.Create(ctx, testRecord()); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("create: expected ErrRedisUnavailable, got %v", err)
	}
	if _, err := store.Get(ctx, "AAAAAAAAAAAAAAAAAAAAAA"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("get: expected ErrRedisUnavailable, got %v", err)
	}
	if _, err := store.Ping(ctx); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("ping: expected ErrRedisUnavailable, got %v", err)
	}
}
