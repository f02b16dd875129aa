package download

import (
	"sync"
	"time"
)

// speedWindow is the minimum interval between speed samples.
const speedWindow = 500 * time.Millisecond

// State is a snapshot of one transfer.
type State struct {
	Percent float64       // 0-100
	Speed   float64       // bytes per second, 0 when unknown
	ETA     time.Duration // negative when unknown
	Total   int64         // -1 when the server sent no length
	Done    int64
	Failed  bool
	Err     error
	// Finished is set once the file is in place.
	Finished bool
}

// Terminal reports whether the transfer has ended.
func (s State) Terminal() bool {
	return s.Finished || s.Failed
}

// Handle is the live view of a transfer started with Downloader.Start.
// State may be read at any time; Changed fires after updates and Done is
// closed when the transfer ends.
type Handle struct {
	mu    sync.Mutex
	state State
	err   error

	changed chan struct{}
	done    chan struct{}
	now     func() time.Time

	sampleAt    time.Time
	sampleBytes int64
}

func newHandle(now func() time.Time) *Handle {
	if now == nil {
		now = time.Now
	}
	return &Handle{
		state:   State{Total: -1, ETA: -1},
		changed: make(chan struct{}, 1),
		done:    make(chan struct{}),
		now:     now,
	}
}

// State returns the current snapshot.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Changed delivers a signal after state updates. Signals coalesce; readers
// should call State for the latest values.
func (h *Handle) Changed() <-chan struct{} {
	return h.changed
}

// Done is closed when the transfer has finished or failed.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the transfer ends.
func (h *Handle) Wait() (State, error) {
	<-h.done
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state, h.err
}

// begin resets progress for a new attempt starting at offset bytes.
func (h *Handle) begin(offset, total int64) {
	h.mu.Lock()
	h.state.Done = offset
	h.state.Total = total
	h.state.Speed = 0
	h.state.ETA = -1
	h.state.Percent = percent(offset, total)
	h.sampleAt = h.now()
	h.sampleBytes = offset
	h.mu.Unlock()
	h.notify()
}

// add records n more bytes written.
func (h *Handle) add(n int64) {
	h.mu.Lock()
	s := &h.state
	s.Done += n
	s.Percent = percent(s.Done, s.Total)

	now := h.now()
	if elapsed := now.Sub(h.sampleAt); elapsed >= speedWindow {
		s.Speed = float64(s.Done-h.sampleBytes) / elapsed.Seconds()
		h.sampleAt = now
		h.sampleBytes = s.Done
	}
	if s.Speed > 0 && s.Total > 0 {
		remaining := float64(s.Total - s.Done)
		s.ETA = time.Duration(remaining / s.Speed * float64(time.Second))
	}
	h.mu.Unlock()
	h.notify()
}

func (h *Handle) finish(err error) {
	h.mu.Lock()
	if err != nil {
		h.state.Failed = true
		h.state.Err = err
		h.err = err
	} else {
		if h.state.Total < 0 {
			h.state.Total = h.state.Done
		}
		h.state.Percent = 100
		h.state.ETA = 0
		h.state.Finished = true
	}
	h.mu.Unlock()
	h.notify()
	close(h.done)
}

func (h *Handle) notify() {
	select {
	case h.changed <- struct{}{}:
	default:
	}
}

func percent(done, total int64) float64 {
	if total <= 0 {
		return 0
	}
	p := float64(done) / float64(total) * 100
	if p > 100 {
		p = 100
	}
	return p
}

// progressWriter feeds byte counts into a Handle.
type progressWriter struct {
	h *Handle
}

func (w progressWriter) Write(p []byte) (int, error) {
	w.h.add(int64(len(p)))
	return len(p), nil
}
