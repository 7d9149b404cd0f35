package workerpool

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vnykmshr/shardpool/internal/testutil"
)

func TestSubmit(t *testing.T) {
	pool := newTestPool(t, testConfig(2, 10, 5*time.Second))
	boom := errors.New("boom")

	tests := []struct {
		name      string
		fn        Callable[string]
		wantValue string
		wantErr   error
		wantPanic bool
	}{
		{
			name:      "value",
			fn:        func(context.Context) (string, error) { return "ok", nil },
			wantValue: "ok",
		},
		{
			name:    "error",
			fn:      func(context.Context) (string, error) { return "", boom },
			wantErr: boom,
		},
		{
			name:      "panic",
			fn:        func(context.Context) (string, error) { panic("bad input") },
			wantPanic: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Submit(pool, tt.fn)
			testutil.AssertNoError(t, err)

			ctx, cancel := testutil.WithTimeout(t)
			defer cancel()
			got, err := f.GetWithContext(ctx)

			switch {
			case tt.wantPanic:
				var perr *PanicError
				if !errors.As(err, &perr) {
					t.Fatalf("expected *PanicError, got %v", err)
				}
			case tt.wantErr != nil:
				testutil.AssertErrorIs(t, err, tt.wantErr)
			default:
				testutil.AssertNoError(t, err)
				testutil.AssertEqual(t, got, tt.wantValue)
			}
		})
	}

	testutil.Eventually(t, func() bool { return pool.Stats().Failed == 2 }, testutil.TestTimeout, time.Millisecond)
}

func TestSubmit_NilCallable(t *testing.T) {
	pool := newTestPool(t, testConfig(1, 1, 5*time.Second))

	f, err := Submit[int](pool, nil)
	testutil.AssertErrorIs(t, err, ErrNilTask)
	if f != nil {
		t.Error("expected nil future")
	}
}

func TestSubmit_RejectedReturnsNoFuture(t *testing.T) {
	pool := newTestPool(t, testConfig(1, 1, 5*time.Second))
	pool.Shutdown()

	f, err := Submit(pool, func(context.Context) (int, error) { return 1, nil })
	testutil.AssertErrorIs(t, err, ErrRejected)
	if f != nil {
		t.Error("expected nil future")
	}
}

func TestSubmitWithContext_PassesContext(t *testing.T) {
	pool := newTestPool(t, testConfig(1, 1, 5*time.Second))

	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, 42)
	f, err := SubmitWithContext(ctx, pool, func(ctx context.Context) (int, error) {
		return ctx.Value(key{}).(int), nil
	})
	testutil.AssertNoError(t, err)

	got, err := f.Get()
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, got, 42)
}

func TestFuture_PendingAccessors(t *testing.T) {
	pool := newTestPool(t, testConfig(1, 1, 5*time.Second))
	release := make(chan struct{})

	f, err := Submit(pool, func(context.Context) (int, error) {
		<-release
		return 7, nil
	})
	testutil.AssertNoError(t, err)

	_, ok, _ := f.TryGet()
	testutil.AssertEqual(t, ok, false)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = f.GetWithContext(ctx)
	testutil.AssertErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	<-f.Done()

	v, ok, err := f.TryGet()
	testutil.AssertEqual(t, ok, true)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, v, 7)
}

func TestFuture_CompletesOnce(t *testing.T) {
	f := newFuture[int]()
	f.complete(1, nil)
	f.complete(2, errors.New("late"))

	v, err := f.Get()
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, v, 1)
}
