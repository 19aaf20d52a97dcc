package daemon

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"

	"github.com/vhisper/vhisper-core/internal/pipeline"
)

// fakePipeline scripts the state the daemon observes.
type fakePipeline struct {
	state     pipeline.State
	streaming bool

	startCalled        bool
	stopCalled         bool
	cancelCalled       bool
	startStreamCalled  bool
	stopStreamCalled   bool
	cancelStreamCalled bool
}

func (f *fakePipeline) State() pipeline.State { return f.state }
func (f *fakePipeline) IsStreaming() bool     { return f.streaming }

func (f *fakePipeline) StartRecording() error {
	f.startCalled = true
	f.state = pipeline.StateRecording
	return nil
}

func (f *fakePipeline) StopRecording(cb pipeline.Callback) error {
	f.stopCalled = true
	f.state = pipeline.StateProcessing
	go cb(pipeline.Result{Kind: pipeline.KindSuccess, Text: "ok"})
	return nil
}

func (f *fakePipeline) Cancel() error {
	f.cancelCalled = true
	f.state = pipeline.StateIdle
	return nil
}

func (f *fakePipeline) StartStreaming(cb pipeline.StreamingCallback) error {
	f.startStreamCalled = true
	f.streaming = true
	return nil
}

func (f *fakePipeline) StopStreaming() error {
	f.stopStreamCalled = true
	f.streaming = false
	return nil
}

func (f *fakePipeline) CancelStreaming() error {
	f.cancelStreamCalled = true
	f.streaming = false
	return nil
}

func (f *fakePipeline) Close() error { return nil }

func newTestDaemon(fp *fakePipeline) *Daemon {
	ctx, cancel := context.WithCancel(context.Background())
	return &Daemon{pipeline: fp, ctx: ctx, cancel: cancel}
}

func send(t *testing.T, d *Daemon, cmd byte) string {
	t.Helper()

	client, server := net.Pipe()
	done := make(chan struct{})
	go func() {
		d.handle(server)
		close(done)
	}()

	if _, err := client.Write([]byte{cmd, '\n'}); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	resp, err := bufio.NewReader(client).ReadString('\n')
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	client.Close()
	<-done
	return resp
}

func TestToggleLifecycle(t *testing.T) {
	fp := &fakePipeline{state: pipeline.StateIdle}
	d := newTestDaemon(fp)

	if resp := send(t, d, 't'); resp != "OK recording\n" {
		t.Fatalf("first toggle = %q", resp)
	}
	if !fp.startCalled {
		t.Error("StartRecording not called")
	}

	if resp := send(t, d, 't'); resp != "OK transcribing\n" {
		t.Fatalf("second toggle = %q", resp)
	}
	if !fp.stopCalled {
		t.Error("StopRecording not called")
	}

	if resp := send(t, d, 't'); resp != "ERR busy_transcribing\n" {
		t.Fatalf("toggle while processing = %q", resp)
	}
}

func TestToggleRejectedDuringStreaming(t *testing.T) {
	fp := &fakePipeline{state: pipeline.StateRecording, streaming: true}
	d := newTestDaemon(fp)

	if resp := send(t, d, 't'); resp != "ERR streaming_active\n" {
		t.Fatalf("toggle during streaming = %q", resp)
	}
	if fp.startCalled || fp.stopCalled {
		t.Error("batch operations reached the pipeline during streaming")
	}
}

func TestStreamToggle(t *testing.T) {
	fp := &fakePipeline{state: pipeline.StateIdle}
	d := newTestDaemon(fp)

	if resp := send(t, d, 'm'); resp != "OK streaming\n" {
		t.Fatalf("stream start = %q", resp)
	}
	if !fp.startStreamCalled {
		t.Error("StartStreaming not called")
	}

	if resp := send(t, d, 'm'); resp != "OK finalizing\n" {
		t.Fatalf("stream stop = %q", resp)
	}
	if !fp.stopStreamCalled {
		t.Error("StopStreaming not called")
	}
}

func TestCancelRoutesToActiveSessionKind(t *testing.T) {
	fp := &fakePipeline{state: pipeline.StateRecording}
	d := newTestDaemon(fp)

	if resp := send(t, d, 'c'); resp != "OK cancelled\n" {
		t.Fatalf("cancel = %q", resp)
	}
	if !fp.cancelCalled || fp.cancelStreamCalled {
		t.Error("cancel did not route to the batch session")
	}

	fp2 := &fakePipeline{state: pipeline.StateRecording, streaming: true}
	d2 := newTestDaemon(fp2)

	if resp := send(t, d2, 'c'); resp != "OK cancelled\n" {
		t.Fatalf("streaming cancel = %q", resp)
	}
	if !fp2.cancelStreamCalled || fp2.cancelCalled {
		t.Error("cancel did not route to the streaming session")
	}
}

func TestStatusAndVersion(t *testing.T) {
	fp := &fakePipeline{state: pipeline.StateRecording, streaming: true}
	d := newTestDaemon(fp)

	if resp := send(t, d, 's'); resp != "STATUS state=recording streaming=true\n" {
		t.Fatalf("status = %q", resp)
	}
	if resp := send(t, d, 'v'); !strings.HasPrefix(resp, "STATUS proto=") {
		t.Fatalf("version = %q", resp)
	}
}

func TestUnknownCommand(t *testing.T) {
	d := newTestDaemon(&fakePipeline{state: pipeline.StateIdle})

	if resp := send(t, d, 'x'); !strings.HasPrefix(resp, "ERR unknown=") {
		t.Fatalf("unknown command = %q", resp)
	}
}

func TestQuitCancelsContext(t *testing.T) {
	d := newTestDaemon(&fakePipeline{state: pipeline.StateIdle})

	if resp := send(t, d, 'q'); resp != "OK quitting\n" {
		t.Fatalf("quit = %q", resp)
	}

	select {
	case <-d.ctx.Done():
	default:
		t.Error("context not cancelled after quit")
	}
}
