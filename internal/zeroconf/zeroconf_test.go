package zeroconf_test

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/brianhealey/lyngdorf-go/internal/zeroconf"
)

func TestRecords_Sorted(t *testing.T) {
	svc := zeroconf.New("lyngdorfd-test", 8084, map[string]string{"version": "0.1.0", "model": "MP-60"})

	got := svc.Records()
	want := []string{"model=MP-60", "version=0.1.0"}
	if !slices.Equal(got, want) {
		t.Errorf("Records() = %v, want %v", got, want)
	}
}

func TestSetTXT_BeforeStart(t *testing.T) {
	svc := zeroconf.New("lyngdorfd-test", 8084, nil)

	if err := svc.SetTXT(map[string]string{"device": "Living Room"}); err != nil {
		t.Fatalf("SetTXT before Start: %v", err)
	}
	if got := svc.Records(); !slices.Equal(got, []string{"device=Living Room"}) {
		t.Errorf("Records() = %v", got)
	}
}

func TestNew_CopiesTXT(t *testing.T) {
	txt := map[string]string{"model": "MP-50"}
	svc := zeroconf.New("lyngdorfd-test", 8084, txt)
	txt["model"] = "changed"

	if got := svc.Records(); !slices.Equal(got, []string{"model=MP-50"}) {
		t.Errorf("Records() = %v, caller map leaked in", got)
	}
}

// TestStart_Cancel verifies Start returns promptly once ctx is cancelled.
func TestStart_Cancel(t *testing.T) {
	svc := zeroconf.New("lyngdorfd-test", 18084, map[string]string{"model": "MP-60"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- svc.Start(ctx)
	}()

	select {
	case err := <-done:
		// mDNS may be unavailable in CI; returning is what matters.
		if err != nil {
			t.Logf("Start returned error (may be expected in CI): %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Start did not return within 3 seconds after context cancellation")
	}
}
