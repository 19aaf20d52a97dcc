package transcriber

import "context"

// StreamResult is a single incremental recognition update from a streaming
// adapter.
type StreamResult struct {
	Text    string // confirmed text for the current utterance, stable
	Stash   string // tentative text, may be revised by later results
	IsFinal bool   // the utterance is committed; Text is its full transcript
	Err     error  // non-nil on adapter failure; terminal for the connection
}

// StreamingAdapter is an open incremental-recognition session.
type StreamingAdapter interface {
	// Start opens the connection. Must be called before SendChunk.
	Start(ctx context.Context) error

	// SendChunk pushes captured samples to the recognizer.
	SendChunk(samples []float32) error

	// Results returns the channel of recognition updates. Closed when the
	// connection ends.
	Results() <-chan StreamResult

	// Finalize commits any buffered audio and asks the recognizer for the
	// final result of the current utterance. The ctx bounds the wait.
	Finalize(ctx context.Context) error

	// Close tears the connection down.
	Close() error
}
