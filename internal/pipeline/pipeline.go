package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vhisper/vhisper-core/internal/config"
	"github.com/vhisper/vhisper-core/internal/llm"
	"github.com/vhisper/vhisper-core/internal/recording"
	"github.com/vhisper/vhisper-core/internal/transcriber"
)

type State string

const (
	StateIdle       State = "idle"
	StateRecording  State = "recording"
	StateProcessing State = "processing"
)

var (
	ErrClosed          = errors.New("pipeline is closed")
	ErrBusy            = errors.New("a session is already active")
	ErrStreamingActive = errors.New("a streaming session is active")
	ErrNotStreaming    = errors.New("no streaming session is active")
)

// ResultKind tags the outcome of a batch session. Cancellation is its own
// outcome; callers never inspect error text to detect it.
type ResultKind int

const (
	KindSuccess ResultKind = iota
	KindCancelled
	KindFailure
)

// Result is the single outcome of a batch transcription session.
type Result struct {
	Kind ResultKind
	Text string // set when Kind == KindSuccess
	Err  error  // set when Kind == KindFailure
}

// Callback receives the batch result. Invoked exactly once per stop, from a
// goroutine the caller does not control.
type Callback func(Result)

type EventKind int

const (
	EventPartial EventKind = iota
	EventFinal
	EventError
)

// StreamingEvent is one update of a live streaming session. Text always
// carries the full transcript so far; Stash is tentative and may be revised.
type StreamingEvent struct {
	Kind  EventKind
	Text  string
	Stash string
	Err   error
}

type StreamingCallback func(StreamingEvent)

const (
	// peaks below silenceFloor mean the device produced no signal at all
	silenceFloor = 0.001
	// peaks below quietFloor are too faint for useful recognition
	quietFloor = 0.05

	streamFinalizeTimeout = 10 * time.Second
)

// Pipeline is the recording and transcription state machine. All lifecycle
// calls are serialized through one mutex and return promptly; capture and
// provider I/O run on background goroutines. Batch and streaming sessions are
// mutually exclusive.
type Pipeline struct {
	manager *config.Manager

	newRecorder func(recording.Config) (recording.Recorder, error)
	newBatch    func(transcriber.Settings) (transcriber.BatchAdapter, error)
	newStream   func(transcriber.Settings) (transcriber.StreamingAdapter, error)
	newLLM      func(llm.Config) (llm.Adapter, error)

	mu     sync.Mutex
	state  State
	closed bool
	batch  *batchSession
	stream *streamSession

	wg sync.WaitGroup
}

func New(manager *config.Manager) *Pipeline {
	return &Pipeline{
		manager: manager,
		state:   StateIdle,
		newRecorder: func(cfg recording.Config) (recording.Recorder, error) {
			return recording.NewRecorder(cfg)
		},
		newBatch:  transcriber.New,
		newStream: transcriber.NewStreaming,
		newLLM:    llm.NewAdapter,
	}
}

func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pipeline) IsStreaming() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stream != nil
}

// batchSession is one start/stop recording cycle. The configuration snapshot
// and the provider adapter are fixed at session start; later config swaps
// cannot affect it.
type batchSession struct {
	snapshot config.Config
	adapter  transcriber.BatchAdapter
	recorder recording.Recorder

	cancelCapture context.CancelFunc
	collectWg     sync.WaitGroup

	bufMu      sync.Mutex
	samples    []float32
	captureErr error

	cancelled     atomic.Bool
	cancelProcess context.CancelFunc
	once          sync.Once
}

func (s *batchSession) collect(frameCh <-chan recording.AudioFrame, errCh <-chan error) {
	defer s.collectWg.Done()

	for frameCh != nil || errCh != nil {
		select {
		case frame, ok := <-frameCh:
			if !ok {
				frameCh = nil
				continue
			}
			s.bufMu.Lock()
			s.samples = append(s.samples, frame.Samples...)
			s.bufMu.Unlock()

		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				log.Printf("pipeline: capture error: %v", err)
				s.bufMu.Lock()
				if s.captureErr == nil {
					s.captureErr = err
				}
				s.bufMu.Unlock()
			}
		}
	}
}

// StartRecording begins a batch capture session. Fails when a session of
// either kind is active. The provider adapter is resolved here, from a
// snapshot of the active configuration.
func (p *Pipeline) StartRecording() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	if p.stream != nil {
		return ErrStreamingActive
	}
	if p.state != StateIdle {
		return fmt.Errorf("%w (state: %s)", ErrBusy, p.state)
	}

	snapshot := p.manager.Snapshot()

	adapter, err := p.newBatch(snapshot.ToTranscriberSettings())
	if err != nil {
		return fmt.Errorf("create transcriber: %w", err)
	}

	recorder, err := p.newRecorder(snapshot.ToRecordingConfig())
	if err != nil {
		return fmt.Errorf("create recorder: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	frameCh, errCh, err := recorder.Start(ctx)
	if err != nil {
		cancel()
		recorder.Close()
		return fmt.Errorf("start capture: %w", err)
	}

	s := &batchSession{
		snapshot:      snapshot,
		adapter:       adapter,
		recorder:      recorder,
		cancelCapture: cancel,
	}
	s.collectWg.Add(1)
	go s.collect(frameCh, errCh)

	p.batch = s
	p.state = StateRecording
	log.Printf("pipeline: recording started (provider=%s)", snapshot.Provider)
	return nil
}

// StopRecording ends capture and submits the buffered audio for
// transcription. Returns promptly; the callback fires exactly once from a
// background goroutine. Stopping when nothing is recording still fires the
// callback once, with an empty success.
func (p *Pipeline) StopRecording(cb Callback) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	if p.stream != nil {
		p.mu.Unlock()
		return ErrStreamingActive
	}
	if p.state != StateRecording {
		p.mu.Unlock()
		go cb(Result{Kind: KindSuccess, Text: ""})
		return nil
	}

	s := p.batch
	p.state = StateProcessing
	processCtx, cancelProcess := context.WithCancel(context.Background())
	s.cancelProcess = cancelProcess
	// registered before the mutex drops so Close cannot observe a zero
	// counter while this stop is in flight
	p.wg.Add(1)
	p.mu.Unlock()

	s.recorder.Stop()
	s.collectWg.Wait()
	s.cancelCapture()
	s.recorder.Close()

	s.bufMu.Lock()
	samples := s.samples
	s.samples = nil
	captureErr := s.captureErr
	s.bufMu.Unlock()

	log.Printf("pipeline: recording stopped, %d samples buffered", len(samples))

	go p.process(processCtx, s, samples, captureErr, cb)
	return nil
}

func (p *Pipeline) process(ctx context.Context, s *batchSession, samples []float32, captureErr error, cb Callback) {
	defer p.wg.Done()
	defer func() {
		p.mu.Lock()
		if p.batch == s {
			p.batch = nil
			p.state = StateIdle
		}
		p.mu.Unlock()
	}()

	deliver := func(r Result) {
		s.once.Do(func() {
			if s.cancelled.Load() && r.Kind != KindCancelled {
				r = Result{Kind: KindCancelled}
			}
			p.mu.Lock()
			closed := p.closed
			p.mu.Unlock()
			if closed {
				log.Printf("pipeline: result suppressed, pipeline closed")
				return
			}
			cb(r)
		})
	}

	if s.cancelled.Load() {
		deliver(Result{Kind: KindCancelled})
		return
	}
	if captureErr != nil {
		deliver(Result{Kind: KindFailure, Err: fmt.Errorf("audio capture: %w", captureErr)})
		return
	}
	if len(samples) == 0 {
		deliver(Result{Kind: KindSuccess, Text: ""})
		return
	}

	peak := transcriber.PeakAmplitude(samples)
	if peak < silenceFloor {
		deliver(Result{Kind: KindFailure, Err: errors.New("no audio signal captured; check microphone permission")})
		return
	}
	if peak < quietFloor {
		deliver(Result{Kind: KindFailure, Err: errors.New("audio too quiet; speak louder or move closer to the microphone")})
		return
	}

	text, err := s.adapter.Transcribe(ctx, samples)
	if err != nil {
		if s.cancelled.Load() || ctx.Err() != nil {
			deliver(Result{Kind: KindCancelled})
		} else {
			deliver(Result{Kind: KindFailure, Err: fmt.Errorf("transcription: %w", err)})
		}
		return
	}
	if s.cancelled.Load() {
		deliver(Result{Kind: KindCancelled})
		return
	}

	if s.snapshot.IsLLMEnabled() {
		text = p.refine(ctx, s.snapshot, text)
	}

	deliver(Result{Kind: KindSuccess, Text: text})
}

// refine runs the transcript through the LLM adapter. Any refinement failure
// falls back to the raw transcript.
func (p *Pipeline) refine(ctx context.Context, snapshot config.Config, text string) string {
	adapter, err := p.newLLM(snapshot.ToLLMConfig())
	if err != nil {
		log.Printf("pipeline: llm adapter unavailable, using raw transcript: %v", err)
		return text
	}

	refined, err := adapter.Process(ctx, text)
	if err != nil {
		log.Printf("pipeline: llm refinement failed, using raw transcript: %v", err)
		return text
	}
	if refined == "" {
		return text
	}
	return refined
}

// Cancel aborts the active batch session. While recording, the buffer is
// discarded and no callback ever fires. While processing, the in-flight work
// is aborted cooperatively and the pending callback reports cancellation.
// Cancelling an idle pipeline is a no-op. Streaming sessions are cancelled
// through CancelStreaming instead.
func (p *Pipeline) Cancel() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	if p.stream != nil {
		return ErrStreamingActive
	}

	switch p.state {
	case StateIdle:
		return nil

	case StateRecording:
		s := p.batch
		p.batch = nil
		p.state = StateIdle

		s.cancelCapture()
		s.recorder.Stop()
		s.collectWg.Wait()
		s.recorder.Close()
		log.Printf("pipeline: recording cancelled, buffer discarded")
		return nil

	case StateProcessing:
		s := p.batch
		s.cancelled.Store(true)
		if s.cancelProcess != nil {
			s.cancelProcess()
		}
		log.Printf("pipeline: processing cancelled")
		return nil
	}
	return nil
}

// streamSession is one live streaming cycle. Events flow through a single
// dispatch gate: once the gate closes, nothing is delivered.
type streamSession struct {
	adapter  transcriber.StreamingAdapter
	recorder recording.Recorder
	callback StreamingCallback

	cancelCapture context.CancelFunc
	wg            sync.WaitGroup

	gateMu     sync.Mutex
	gateClosed bool

	textMu    sync.Mutex
	committed string
}

func (s *streamSession) dispatch(e StreamingEvent) {
	s.gateMu.Lock()
	defer s.gateMu.Unlock()
	if s.gateClosed {
		return
	}
	s.callback(e)
}

func (s *streamSession) closeGate() {
	s.gateMu.Lock()
	s.gateClosed = true
	s.gateMu.Unlock()
}

// dispatchFinalAndClose delivers the terminal event and closes the gate in
// one critical section, so no other dispatch can slip in between the Final
// and the gate closing.
func (s *streamSession) dispatchFinalAndClose(e StreamingEvent) {
	s.gateMu.Lock()
	defer s.gateMu.Unlock()
	if s.gateClosed {
		return
	}
	s.gateClosed = true
	s.callback(e)
}

func (s *streamSession) pump(frameCh <-chan recording.AudioFrame, errCh <-chan error) {
	defer s.wg.Done()

	for frameCh != nil || errCh != nil {
		select {
		case frame, ok := <-frameCh:
			if !ok {
				frameCh = nil
				continue
			}
			if err := s.adapter.SendChunk(frame.Samples); err != nil {
				log.Printf("pipeline: stream send: %v", err)
			}

		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				s.dispatch(StreamingEvent{Kind: EventError, Err: fmt.Errorf("audio capture: %w", err)})
			}
		}
	}
}

// dispatchLoop serializes recognizer updates into callback events.
// Intermediate finals (the recognizer committing an utterance mid-session)
// are folded into the committed text and surfaced as partials; the session's
// single Final is produced by StopStreaming.
func (s *streamSession) dispatchLoop() {
	defer s.wg.Done()

	for result := range s.adapter.Results() {
		if result.Err != nil {
			s.dispatch(StreamingEvent{Kind: EventError, Err: result.Err})
			continue
		}

		if result.IsFinal {
			s.textMu.Lock()
			s.committed += result.Text
			committed := s.committed
			s.textMu.Unlock()
			s.dispatch(StreamingEvent{Kind: EventPartial, Text: committed})
			continue
		}

		s.textMu.Lock()
		committed := s.committed
		s.textMu.Unlock()
		s.dispatch(StreamingEvent{
			Kind:  EventPartial,
			Text:  committed + result.Text,
			Stash: result.Stash,
		})
	}
}

// StartStreaming opens a live streaming session. Fails when the provider has
// no streaming capability or any session is active.
func (p *Pipeline) StartStreaming(cb StreamingCallback) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	if p.stream != nil {
		return ErrStreamingActive
	}
	if p.state != StateIdle {
		return fmt.Errorf("%w (state: %s)", ErrBusy, p.state)
	}

	snapshot := p.manager.Snapshot()

	adapter, err := p.newStream(snapshot.ToTranscriberSettings())
	if err != nil {
		return fmt.Errorf("create streaming transcriber: %w", err)
	}

	recorder, err := p.newRecorder(snapshot.ToRecordingConfig())
	if err != nil {
		return fmt.Errorf("create recorder: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	if err := adapter.Start(ctx); err != nil {
		cancel()
		recorder.Close()
		return fmt.Errorf("start streaming session: %w", err)
	}

	frameCh, errCh, err := recorder.Start(ctx)
	if err != nil {
		adapter.Close()
		cancel()
		recorder.Close()
		return fmt.Errorf("start capture: %w", err)
	}

	s := &streamSession{
		adapter:       adapter,
		recorder:      recorder,
		callback:      cb,
		cancelCapture: cancel,
	}
	s.wg.Add(2)
	go s.pump(frameCh, errCh)
	go s.dispatchLoop()

	p.stream = s
	p.state = StateRecording
	log.Printf("pipeline: streaming started (provider=%s)", snapshot.Provider)
	return nil
}

// StopStreaming ends the streaming session. Returns promptly; finalization
// runs in the background and produces the session's single Final event,
// carrying the full committed transcript. A second stop while finalization
// is already in flight is rejected.
func (p *Pipeline) StopStreaming() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	if p.stream == nil {
		p.mu.Unlock()
		return ErrNotStreaming
	}
	if p.state == StateProcessing {
		p.mu.Unlock()
		return fmt.Errorf("%w (finalization in flight)", ErrBusy)
	}
	s := p.stream
	p.state = StateProcessing
	p.wg.Add(1)
	p.mu.Unlock()

	s.recorder.Stop()

	go p.finishStream(s)
	return nil
}

func (p *Pipeline) finishStream(s *streamSession) {
	defer p.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), streamFinalizeTimeout)
	defer cancel()

	if err := s.adapter.Finalize(ctx); err != nil {
		log.Printf("pipeline: stream finalize: %v", err)
	}
	s.adapter.Close()
	s.wg.Wait()

	s.textMu.Lock()
	text := s.committed
	s.textMu.Unlock()

	s.dispatchFinalAndClose(StreamingEvent{Kind: EventFinal, Text: text})

	s.cancelCapture()
	s.recorder.Close()

	p.mu.Lock()
	if p.stream == s {
		p.stream = nil
		p.state = StateIdle
	}
	p.mu.Unlock()
	log.Printf("pipeline: streaming stopped")
}

// CancelStreaming aborts the streaming session. The dispatch gate closes
// before teardown begins, so no event of any kind is delivered after this
// call is accepted. There is no terminal event for a cancelled session.
func (p *Pipeline) CancelStreaming() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	if p.stream == nil {
		p.mu.Unlock()
		return ErrNotStreaming
	}
	s := p.stream
	p.stream = nil
	p.state = StateIdle
	p.wg.Add(1)
	p.mu.Unlock()

	s.closeGate()
	s.cancelCapture()
	s.recorder.Stop()
	s.adapter.Close()

	go func() {
		defer p.wg.Done()
		s.wg.Wait()
		s.recorder.Close()
	}()

	log.Printf("pipeline: streaming cancelled")
	return nil
}

// Close tears the pipeline down: the active session is cancelled, pending
// callbacks are suppressed, and background goroutines are waited out. The
// pipeline cannot be reused afterwards.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	batch := p.batch
	stream := p.stream
	p.batch = nil
	p.stream = nil
	p.state = StateIdle
	p.mu.Unlock()

	if batch != nil {
		batch.cancelled.Store(true)
		if batch.cancelProcess != nil {
			batch.cancelProcess()
		}
		batch.cancelCapture()
		batch.recorder.Stop()
		batch.collectWg.Wait()
		batch.recorder.Close()
	}

	if stream != nil {
		stream.closeGate()
		stream.cancelCapture()
		stream.recorder.Stop()
		stream.adapter.Close()
		stream.wg.Wait()
		stream.recorder.Close()
	}

	p.wg.Wait()
	log.Printf("pipeline: closed")
	return nil
}
