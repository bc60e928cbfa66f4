package retry

import (
	"context"
	"testing"
	"time"
)

func TestDo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		firstValid   int // 0 means never
		wantOK       bool
		wantAttempts int
		wantSleeps   int
	}{
		{name: "first attempt valid", firstValid: 1, wantOK: true, wantAttempts: 1, wantSleeps: 0},
		{name: "third attempt valid", firstValid: 3, wantOK: true, wantAttempts: 3, wantSleeps: 2},
		{name: "last attempt valid", firstValid: 5, wantOK: true, wantAttempts: 5, wantSleeps: 4},
		{name: "never valid", firstValid: 0, wantOK: false, wantAttempts: 5, wantSleeps: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var sleeps int
			p := Policy{
				Attempts: 5,
				Delay:    100 * time.Millisecond,
				Sleeper: SleeperFunc(func(_ context.Context, d time.Duration) error {
					if d != 100*time.Millisecond {
						t.Errorf("Sleep(%v), want 100ms", d)
					}
					sleeps++
					return nil
				}),
			}

			calls := 0
			v, ok, attempts := Do(context.Background(), p, func(_ context.Context, attempt int) (int, bool) {
				calls++
				return attempt, attempt == tt.firstValid
			})

			if ok != tt.wantOK || attempts != tt.wantAttempts || calls != tt.wantAttempts {
				t.Fatalf("Do() = (%d, %v, %d) after %d calls, want ok=%v attempts=%d", v, ok, attempts, calls, tt.wantOK, tt.wantAttempts)
			}

			if sleeps != tt.wantSleeps {
				t.Errorf("slept %d times, want %d", sleeps, tt.wantSleeps)
			}
		})
	}
}

func TestDo_CancelledDuringDelay(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, ok, attempts := Do(ctx, Policy{Attempts: 5, Delay: time.Hour}, func(context.Context, int) (struct{}, bool) {
		calls++
		return struct{}{}, false
	})

	if ok || attempts != 1 || calls != 1 {
		t.Errorf("Do() ok=%v attempts=%d calls=%d, want stop after first attempt", ok, attempts, calls)
	}
}
