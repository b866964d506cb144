package ocr

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"

	"github.com/guillermolam/alberguecarcalejo-sub000/internal/domain"
	"github.com/guillermolam/alberguecarcalejo-sub000/internal/logger"
)

var errPoolClosed = errors.New("engine pool closed")

// Pool hands out engines exclusively, one lease per in-flight request. Slots
// start empty and are filled lazily by the factory; a slot whose engine timed out
// is emptied so the busy engine is never handed out again.
type Pool struct {
	factory func() (Engine, error)
	timeout time.Duration
	slots   chan Engine
	closing chan struct{} // closed by Close; wakes waiting Acquires

	mu     sync.Mutex
	closed bool
}

func NewPool(size int, timeout time.Duration, factory func() (Engine, error)) *Pool {
	if size < 1 {
		size = 1
	}
	p := &Pool{
		factory: factory,
		timeout: timeout,
		slots:   make(chan Engine, size),
		closing: make(chan struct{}),
	}
	for i := 0; i < size; i++ {
		p.slots <- nil
	}
	return p
}

// Size is the maximum number of concurrent leases.
func (p *Pool) Size() int {
	return cap(p.slots)
}

// Acquire waits for a free slot. The returned lease must be released on every path.
func (p *Pool) Acquire(ctx context.Context) (*Lease, error) {
	if p.isClosed() {
		return nil, domain.OCREngineError("engine unavailable", errPoolClosed)
	}

	var e Engine
	select {
	case e = <-p.slots:
	case <-p.closing:
		return nil, domain.OCREngineError("engine unavailable", errPoolClosed)
	case <-ctx.Done():
		return nil, domain.OCREngineError("waiting for a free engine", ctx.Err())
	}

	if p.isClosed() {
		if e != nil {
			_ = e.Close()
		}
		return nil, domain.OCREngineError("engine unavailable", errPoolClosed)
	}

	if e == nil {
		var err error
		e, err = p.factory()
		if err != nil {
			p.slots <- nil
			if _, ok := domain.KindOf(err); ok {
				return nil, err
			}
			return nil, domain.OCREngineError("engine unavailable", err)
		}
		logger.DebugLog("[ocr pool]: started %s engine", e.Name())
	}
	return &Lease{pool: p, engine: e}, nil
}

// Close closes idle engines. Engines still leased are closed when released.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.closing)
	p.mu.Unlock()

	var errs []error
	for {
		select {
		case e := <-p.slots:
			if e != nil {
				errs = append(errs, e.Close())
			}
		default:
			return errors.Join(errs...)
		}
	}
}

func (p *Pool) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Pool) release(e Engine) {
	if p.isClosed() {
		if e != nil {
			_ = e.Close()
		}
		return
	}
	p.slots <- e
}

// Lease is an engine checked out of a Pool. Each call is bounded by the pool timeout.
type Lease struct {
	pool   *Pool
	engine Engine
	once   sync.Once

	// set when a call outlived its timeout; the engine is still busy
	inflight <-chan struct{}
}

type recognition struct {
	text string
	conf float64
	err  error
}

func (l *Lease) ExtractText(ctx context.Context, img *image.Gray) (string, error) {
	text, _, err := l.run(ctx, func(ctx context.Context) (string, float64, error) {
		text, err := l.engine.ExtractText(ctx, img)
		return text, 0, err
	})
	return text, err
}

func (l *Lease) ExtractTextWithConfidence(ctx context.Context, img *image.Gray) (string, float64, error) {
	return l.run(ctx, func(ctx context.Context) (string, float64, error) {
		return l.engine.ExtractTextWithConfidence(ctx, img)
	})
}

func (l *Lease) run(ctx context.Context, call func(ctx context.Context) (string, float64, error)) (string, float64, error) {
	if l.inflight != nil {
		return "", 0, domain.OCREngineError("engine busy after timeout", nil)
	}
	if l.pool.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.pool.timeout)
		defer cancel()
	}

	done := make(chan recognition, 1)
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		text, conf, err := call(ctx)
		done <- recognition{text: text, conf: conf, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			if _, ok := domain.KindOf(r.err); ok {
				return "", 0, r.err
			}
			return "", 0, domain.OCREngineError("recognition failed", r.err)
		}
		return r.text, r.conf, nil
	case <-ctx.Done():
		l.inflight = finished
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", 0, domain.OCREngineError("recognition timeout", ctx.Err())
		}
		return "", 0, domain.OCREngineError("recognition cancelled", ctx.Err())
	}
}

// Release returns the engine to the pool. It is safe to call more than once.
func (l *Lease) Release() {
	l.once.Do(func() {
		if l.inflight == nil {
			l.pool.release(l.engine)
			return
		}
		// the engine is still recognizing; retire it and free the slot
		busy, e := l.inflight, l.engine
		go func() {
			<-busy
			_ = e.Close()
		}()
		l.pool.release(nil)
	})
}
