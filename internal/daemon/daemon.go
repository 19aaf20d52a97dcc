package daemon

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/vhisper/vhisper-core/internal/bus"
	"github.com/vhisper/vhisper-core/internal/config"
	"github.com/vhisper/vhisper-core/internal/pipeline"
)

// Pipeline is the slice of the core the daemon drives.
type Pipeline interface {
	State() pipeline.State
	IsStreaming() bool
	StartRecording() error
	StopRecording(pipeline.Callback) error
	Cancel() error
	StartStreaming(pipeline.StreamingCallback) error
	StopStreaming() error
	CancelStreaming() error
	Close() error
}

// Daemon hosts one pipeline instance and drives it over the control socket.
// It is a reference host for the core: results and streaming events land in
// the log.
type Daemon struct {
	manager  *config.Manager
	pipeline Pipeline

	ctx    context.Context
	cancel context.CancelFunc
}

func New(manager *config.Manager) *Daemon {
	ctx, cancel := context.WithCancel(context.Background())
	return &Daemon{
		manager:  manager,
		pipeline: pipeline.New(manager),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (d *Daemon) Run() error {
	if err := bus.CheckExistingDaemon(); err != nil {
		return err
	}

	ln, err := bus.Listen()
	if err != nil {
		return err
	}
	defer ln.Close()

	if err := bus.CreatePidFile(); err != nil {
		return fmt.Errorf("failed to create PID file: %w", err)
	}
	defer bus.RemovePidFile()

	if err := d.manager.StartWatching(d.ctx); err != nil {
		log.Printf("daemon: config watching disabled: %v", err)
	}
	defer d.manager.Stop()
	defer d.pipeline.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	go func() {
		sig := <-sigCh
		log.Printf("daemon: received signal %v, shutting down", sig)
		d.cancel()
	}()

	// Close the listener when context is done
	go func() {
		<-d.ctx.Done()
		ln.Close()
	}()

	log.Printf("daemon: started, listening on control socket")

	for {
		c, err := ln.Accept()
		if err != nil {
			if d.ctx.Err() != nil {
				log.Printf("daemon: shutdown requested")
				return nil
			}
			return fmt.Errorf("accept failed: %w", err)
		}
		go d.handle(c)
	}
}

func (d *Daemon) handle(c net.Conn) {
	defer c.Close()

	line, err := bufio.NewReader(c).ReadString('\n')
	if err != nil {
		log.Printf("daemon: client read error: %v", err)
		fmt.Fprintf(c, "ERR read_error: %v\n", err)
		return
	}
	if len(line) == 0 {
		fmt.Fprint(c, "ERR empty\n")
		return
	}

	switch line[0] {
	case bus.CmdToggle:
		d.toggle(c)
	case bus.CmdToggleStream:
		d.toggleStream(c)
	case bus.CmdCancel:
		d.cancelSession(c)
	case bus.CmdStatus:
		fmt.Fprintf(c, "STATUS state=%s streaming=%t\n", d.pipeline.State(), d.pipeline.IsStreaming())
	case bus.CmdVersion:
		fmt.Fprintf(c, "STATUS proto=%s\n", bus.ProtoVer)
	case bus.CmdQuit:
		fmt.Fprint(c, "OK quitting\n")
		d.cancel()
	default:
		log.Printf("daemon: unknown command: %c", line[0])
		fmt.Fprintf(c, "ERR unknown=%q\n", line[0])
	}
}

func (d *Daemon) toggle(c net.Conn) {
	if d.pipeline.IsStreaming() {
		fmt.Fprint(c, "ERR streaming_active\n")
		return
	}

	switch d.pipeline.State() {
	case pipeline.StateIdle:
		if err := d.pipeline.StartRecording(); err != nil {
			fmt.Fprintf(c, "ERR start: %v\n", err)
			return
		}
		fmt.Fprint(c, "OK recording\n")

	case pipeline.StateRecording:
		if err := d.pipeline.StopRecording(d.logResult); err != nil {
			fmt.Fprintf(c, "ERR stop: %v\n", err)
			return
		}
		fmt.Fprint(c, "OK transcribing\n")

	case pipeline.StateProcessing:
		fmt.Fprint(c, "ERR busy_transcribing\n")
	}
}

func (d *Daemon) toggleStream(c net.Conn) {
	if d.pipeline.IsStreaming() {
		if err := d.pipeline.StopStreaming(); err != nil {
			fmt.Fprintf(c, "ERR stream_stop: %v\n", err)
			return
		}
		fmt.Fprint(c, "OK finalizing\n")
		return
	}

	if err := d.pipeline.StartStreaming(d.logEvent); err != nil {
		fmt.Fprintf(c, "ERR stream_start: %v\n", err)
		return
	}
	fmt.Fprint(c, "OK streaming\n")
}

func (d *Daemon) cancelSession(c net.Conn) {
	var err error
	if d.pipeline.IsStreaming() {
		err = d.pipeline.CancelStreaming()
	} else {
		err = d.pipeline.Cancel()
	}
	if err != nil {
		fmt.Fprintf(c, "ERR cancel: %v\n", err)
		return
	}
	fmt.Fprint(c, "OK cancelled\n")
}

func (d *Daemon) logResult(r pipeline.Result) {
	switch r.Kind {
	case pipeline.KindSuccess:
		log.Printf("daemon: transcription: %q", r.Text)
	case pipeline.KindCancelled:
		log.Printf("daemon: transcription cancelled")
	case pipeline.KindFailure:
		log.Printf("daemon: transcription failed: %v", r.Err)
	}
}

func (d *Daemon) logEvent(e pipeline.StreamingEvent) {
	switch e.Kind {
	case pipeline.EventPartial:
		log.Printf("daemon: partial: %q (stash %q)", e.Text, e.Stash)
	case pipeline.EventFinal:
		log.Printf("daemon: final: %q", e.Text)
	case pipeline.EventError:
		log.Printf("daemon: stream error: %v", e.Err)
	}
}
