package audit

import (
	"context"
	"testing"

	"github.com/ricemart/ricemart-auth/internal/logging"
)

func TestRecorderPersistsEvents(t *testing.T) {
	repo := NewMemoryRepository()
	recorder := NewRecorder(repo, logging.Discard())
	ctx := context.Background()

	recorder.Record(ctx, KindOTPRequested, "device-1", "9876543210", "")
	recorder.Record(ctx, KindLoginSucceeded, "device-1", "9876543210", "")
	recorder.Record(ctx, KindLoginFailed, "device-2", "9999999999", "bad password")

	events, err := repo.RecentByPhone(ctx, "9876543210", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Kind != KindLoginSucceeded {
		t.Fatalf("expected newest first, got %s", events[0].Kind)
	}
	if events[0].ID == "" || events[0].CreatedAt.IsZero() {
		t.Fatal("expected id and timestamp to be set")
	}
}

func TestNilRecorderIsSafe(t *testing.T) {
	var recorder *Recorder
	recorder.Record(context.Background(), KindLogout, "device-1", "9876543210", "")
}
