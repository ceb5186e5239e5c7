package media

import (
	"errors"
	"sync"
)

// ErrAlreadyRecording is returned by [Recorder.Start] when a recording is
// already active. The active recording stays authoritative; the duplicate
// start is rejected.
var ErrAlreadyRecording = errors.New("media: a recording is already active")

// Clip is a finalized recording: all captured chunks concatenated in
// append order into one encoded blob.
type Clip struct {
	// MimeType is the container format of Data.
	MimeType string

	// Data is the encoded media payload.
	Data []byte
}

// Recorder turns a live [Handle] into finalized clips. At most one
// recording is active at a time. All exported methods are safe for
// concurrent use.
type Recorder struct {
	mu     sync.Mutex
	active *Recording
}

// NewRecorder creates an idle Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Recording is an in-flight capture of chunks from a handle.
type Recording struct {
	handle   *Handle
	mimeType string
	chunks   chan []byte
	gone     <-chan struct{}
	done     chan struct{}

	mu  sync.Mutex
	buf [][]byte
}

// collect appends chunks in arrival order until the consumer is detached,
// then drains whatever is still buffered.
func (rec *Recording) collect() {
	defer close(rec.done)
	for {
		select {
		case chunk := <-rec.chunks:
			rec.append(chunk)
		case <-rec.gone:
			for {
				select {
				case chunk := <-rec.chunks:
					rec.append(chunk)
				default:
					return
				}
			}
		}
	}
}

func (rec *Recording) append(chunk []byte) {
	rec.mu.Lock()
	rec.buf = append(rec.buf, chunk)
	rec.mu.Unlock()
}

// finalize concatenates the buffered chunks into one clip.
// Chunks are joined in append order — the device delivers them in order
// already, so no timestamp sorting happens here.
func (rec *Recording) finalize() *Clip {
	rec.mu.Lock()
	defer rec.mu.Unlock()

	total := 0
	for _, c := range rec.buf {
		total += len(c)
	}
	data := make([]byte, 0, total)
	for _, c := range rec.buf {
		data = append(data, c...)
	}
	return &Clip{MimeType: rec.mimeType, Data: data}
}

// Start begins buffering chunks from h. Returns [ErrAlreadyRecording] when
// a recording is active — the caller's state machine should make this
// unreachable, but the guard keeps a stray double-start from corrupting the
// authoritative recording.
func (r *Recorder) Start(h *Handle) (*Recording, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active != nil {
		return nil, ErrAlreadyRecording
	}

	rec := &Recording{
		handle:   h,
		mimeType: h.MimeType(),
		chunks:   make(chan []byte, chunkBuffer),
		done:     make(chan struct{}),
	}
	gone, err := h.attachConsumer(rec.chunks)
	if err != nil {
		return nil, err
	}
	rec.gone = gone

	go rec.collect()
	r.active = rec
	return rec, nil
}

// Stop finalizes rec into a single clip and ends capture. Calling Stop with
// a nil recording, or one that is no longer active, is a no-op returning no
// clip.
func (r *Recorder) Stop(rec *Recording) (*Clip, error) {
	if rec == nil {
		return nil, nil
	}

	r.mu.Lock()
	if r.active != rec {
		r.mu.Unlock()
		return nil, nil
	}
	r.active = nil
	r.mu.Unlock()

	rec.handle.detachConsumer()
	<-rec.done
	return rec.finalize(), nil
}

// Active reports whether a recording is currently in flight.
func (r *Recorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active != nil
}
