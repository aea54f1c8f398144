package tokens

import (
	"context"
	"testing"
	"time"
)

func TestMemoryDenylistRevoke(t *testing.T) {
	d := NewMemoryDenylist()
	ctx := context.Background()

	revoked, err := d.IsRevoked(ctx, "jti-1")

	if err != nil {
		t.Fatalf("IsRevoked: %v", err)
	}
	if revoked {
		t.Fatal("fresh jti should not be revoked")
	}

	if err := d.Revoke(ctx, "jti-1", time.Hour); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	// revocation must be visible immediately
	revoked, err = d.IsRevoked(ctx, "jti-1")

	if err != nil {
		t.Fatalf("IsRevoked: %v", err)
	}
	if !revoked {
		t.Fatal("jti should be revoked after Revoke")
	}
}

func TestMemoryDenylistEntryExpires(t *testing.T) {
	d := NewMemoryDenylist()
	ctx := context.Background()

	if err := d.Revoke(ctx, "jti-2", 10*time.Millisecond); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	time.Sleep(20 * time.Millisecond)

	revoked, err := d.IsRevoked(ctx, "jti-2")

	if err != nil {
		t.Fatalf("IsRevoked: %v", err)
	}
	if revoked {
		t.Fatal("entry should expire with the token itself")
	}
}

func TestMemoryDenylistZeroTTLIsNoop(t *testing.T) {
	d := NewMemoryDenylist()
	ctx := context.Background()

	if err := d.Revoke(ctx, "jti-3", 0); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	revoked, err := d.IsRevoked(ctx, "jti-3")

	if err != nil {
		t.Fatalf("IsRevoked: %v", err)
	}
	if revoked {
		t.Fatal("already-expired token needs no denylist entry")
	}
}
