package ocr

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guillermolam/alberguecarcalejo-sub000/internal/config"
	"github.com/guillermolam/alberguecarcalejo-sub000/internal/domain"
)

type fakeEngine struct {
	text   string
	conf   float64
	delay  time.Duration
	busy   atomic.Int32
	shared *atomic.Int32 // set when two callers overlap
	closed atomic.Bool
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) ExtractText(ctx context.Context, img *image.Gray) (string, error) {
	text, _, err := f.ExtractTextWithConfidence(ctx, img)
	return text, err
}

func (f *fakeEngine) ExtractTextWithConfidence(ctx context.Context, img *image.Gray) (string, float64, error) {
	if f.busy.Add(1) > 1 && f.shared != nil {
		f.shared.Add(1)
	}
	defer f.busy.Add(-1)
	time.Sleep(f.delay)
	return f.text, f.conf, nil
}

func (f *fakeEngine) Close() error {
	f.closed.Store(true)
	return nil
}

func TestPool_LeasesAreExclusive(t *testing.T) {
	var overlaps atomic.Int32
	var created atomic.Int32
	pool := NewPool(2, time.Second, func() (Engine, error) {
		created.Add(1)
		return &fakeEngine{text: "JUAN", conf: 0.9, delay: 5 * time.Millisecond, shared: &overlaps}, nil
	})
	defer pool.Close()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lease, err := pool.Acquire(context.Background())
			require.NoError(t, err)
			defer lease.Release()
			text, conf, err := lease.ExtractTextWithConfidence(context.Background(), image.NewGray(image.Rect(0, 0, 1, 1)))
			assert.NoError(t, err)
			assert.Equal(t, "JUAN", text)
			assert.Equal(t, 0.9, conf)
		}()
	}
	wg.Wait()

	assert.Zero(t, overlaps.Load())
	assert.LessOrEqual(t, created.Load(), int32(2))
	assert.Equal(t, 2, pool.Size())
}

func TestPool_ReleaseIsIdempotent(t *testing.T) {
	pool := NewPool(1, time.Second, func() (Engine, error) { return &fakeEngine{}, nil })
	defer pool.Close()

	lease, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	lease.Release()
	lease.Release()

	// a second release must not have added a phantom slot
	first, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = pool.Acquire(ctx)
	require.Error(t, err)
	first.Release()
}

func TestPool_AcquireHonoursContext(t *testing.T) {
	pool := NewPool(1, time.Second, func() (Engine, error) { return &fakeEngine{}, nil })
	defer pool.Close()

	held, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	defer held.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = pool.Acquire(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestPool_FactoryFailureIsEngineError(t *testing.T) {
	pool := NewPool(1, time.Second, func() (Engine, error) { return nil, errors.New("no tessdata") })
	defer pool.Close()

	_, err := pool.Acquire(context.Background())
	require.Error(t, err)
	kind, ok := domain.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, domain.KindOCREngine, kind)

	// the slot is returned, so the next attempt retries the factory instead of blocking
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = pool.Acquire(ctx)
	assert.False(t, errors.Is(err, context.DeadlineExceeded))
}

func TestLease_TimeoutRetiresEngine(t *testing.T) {
	var engines []*fakeEngine
	var mu sync.Mutex
	pool := NewPool(1, 10*time.Millisecond, func() (Engine, error) {
		mu.Lock()
		defer mu.Unlock()
		e := &fakeEngine{text: "late", delay: 100 * time.Millisecond}
		engines = append(engines, e)
		return e, nil
	})
	defer pool.Close()

	lease, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	_, err = lease.ExtractText(context.Background(), image.NewGray(image.Rect(0, 0, 1, 1)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recognition timeout")
	kind, _ := domain.KindOf(err)
	assert.Equal(t, domain.KindOCREngine, kind)
	lease.Release()

	// the busy engine is not handed out again
	next, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	defer next.Release()
	mu.Lock()
	assert.Len(t, engines, 2)
	mu.Unlock()
	assert.Eventually(t, func() bool { return engines[0].closed.Load() }, time.Second, 5*time.Millisecond)
}

func TestPool_CloseClosesIdleEngines(t *testing.T) {
	e := &fakeEngine{}
	pool := NewPool(1, time.Second, func() (Engine, error) { return e, nil })
	lease, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	lease.Release()

	require.NoError(t, pool.Close())
	assert.True(t, e.closed.Load())

	_, err = pool.Acquire(context.Background())
	require.Error(t, err)
}

func TestPool_CloseWakesWaitingAcquire(t *testing.T) {
	e := &fakeEngine{}
	pool := NewPool(1, time.Second, func() (Engine, error) { return e, nil })
	held, err := pool.Acquire(context.Background())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := pool.Acquire(context.Background())
		done <- err
	}()

	// let the second Acquire park on the empty slot
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, pool.Close())
	held.Release()

	select {
	case err := <-done:
		require.Error(t, err)
		kind, _ := domain.KindOf(err)
		assert.Equal(t, domain.KindOCREngine, kind)
		assert.ErrorIs(t, err, errPoolClosed)
	case <-time.After(time.Second):
		t.Fatal("Acquire still blocked after Close")
	}
	assert.True(t, e.closed.Load())
}

func TestNewEngine_UnknownType(t *testing.T) {
	cfg := config.Default().OCR
	cfg.Engine = "abbyy"
	_, err := NewEngine(cfg)
	require.Error(t, err)

	cfg.Engine = "ollama"
	e, err := NewEngine(cfg)
	require.NoError(t, err)
	assert.Equal(t, "ollama", e.Name())
	require.NoError(t, e.Close())
}
