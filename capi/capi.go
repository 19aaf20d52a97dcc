// Package main builds the C ABI for the transcription core. Compile with
// -buildmode=c-shared (or c-archive) to produce libvhisper.
package main

/*
#include <stdlib.h>
#include "bridge.h"
*/
import "C"

import (
	"log"
	"runtime/cgo"
	"unsafe"

	"github.com/vhisper/vhisper-core/internal/config"
	"github.com/vhisper/vhisper-core/internal/pipeline"
)

const coreVersion = "0.2.0"

// Result codes shared by the exported functions.
const (
	rcOK            = 0
	rcInvalidHandle = -1
	rcOpFailed      = -2
)

// Completion status codes carried by the completion callback.
const (
	statusSuccess   = 0
	statusCancelled = 1
	statusFailure   = 2
)

// Streaming event type codes.
const (
	eventPartial = 0
	eventFinal   = 1
	eventError   = 2
)

// instance is the owned object behind an opaque handle: one config manager
// and one pipeline per handle.
type instance struct {
	manager  *config.Manager
	pipeline *pipeline.Pipeline
}

// deref resolves a handle, treating destroyed or forged handles as invalid
// rather than crashing the host.
func deref(h C.uintptr_t) (inst *instance, ok bool) {
	if h == 0 {
		return nil, false
	}
	defer func() {
		if recover() != nil {
			inst, ok = nil, false
		}
	}()
	inst, ok = cgo.Handle(h).Value().(*instance)
	return inst, ok
}

// cString copies a Go string to C-owned memory. The receiver releases it via
// vhisper_string_free.
func cString(s string) *C.char {
	return C.CString(s)
}

//export vhisper_create
func vhisper_create(configJSON *C.char) C.uintptr_t {
	var cfg *config.Config
	if configJSON != nil {
		parsed, err := config.ParseJSON([]byte(C.GoString(configJSON)))
		if err != nil {
			log.Printf("capi: create rejected: %v", err)
			return 0
		}
		cfg = parsed
	} else {
		cfg = config.DefaultConfig()
	}

	manager := config.NewManager(cfg)
	inst := &instance{
		manager:  manager,
		pipeline: pipeline.New(manager),
	}
	return C.uintptr_t(cgo.NewHandle(inst))
}

//export vhisper_destroy
func vhisper_destroy(h C.uintptr_t) {
	inst, ok := deref(h)
	if !ok {
		return
	}
	// cancels the active session and suppresses pending callbacks before the
	// handle goes away
	_ = inst.pipeline.Close()
	inst.manager.Stop()
	cgo.Handle(h).Delete()
}

//export vhisper_get_state
func vhisper_get_state(h C.uintptr_t) C.int32_t {
	inst, ok := deref(h)
	if !ok {
		return rcInvalidHandle
	}
	switch inst.pipeline.State() {
	case pipeline.StateIdle:
		return 0
	case pipeline.StateRecording:
		return 1
	case pipeline.StateProcessing:
		return 2
	}
	return rcInvalidHandle
}

//export vhisper_start_recording
func vhisper_start_recording(h C.uintptr_t) C.int32_t {
	inst, ok := deref(h)
	if !ok {
		return rcInvalidHandle
	}
	if err := inst.pipeline.StartRecording(); err != nil {
		log.Printf("capi: start_recording: %v", err)
		return rcOpFailed
	}
	return rcOK
}

//export vhisper_stop_recording
func vhisper_stop_recording(h C.uintptr_t, cb C.vhisper_completion_cb, ctx unsafe.Pointer) C.int32_t {
	inst, ok := deref(h)
	if !ok {
		return rcInvalidHandle
	}
	if cb == nil {
		return rcInvalidHandle
	}

	err := inst.pipeline.StopRecording(func(r pipeline.Result) {
		switch r.Kind {
		case pipeline.KindSuccess:
			C.vhisper_invoke_completion(cb, ctx, statusSuccess, cString(r.Text), nil)
		case pipeline.KindCancelled:
			C.vhisper_invoke_completion(cb, ctx, statusCancelled, nil, nil)
		case pipeline.KindFailure:
			C.vhisper_invoke_completion(cb, ctx, statusFailure, nil, cString(r.Err.Error()))
		}
	})
	if err != nil {
		log.Printf("capi: stop_recording: %v", err)
		return rcOpFailed
	}
	return rcOK
}

//export vhisper_cancel
func vhisper_cancel(h C.uintptr_t) C.int32_t {
	inst, ok := deref(h)
	if !ok {
		return rcInvalidHandle
	}
	if err := inst.pipeline.Cancel(); err != nil {
		log.Printf("capi: cancel: %v", err)
		return rcOpFailed
	}
	return rcOK
}

//export vhisper_start_streaming
func vhisper_start_streaming(h C.uintptr_t, cb C.vhisper_stream_cb, ctx unsafe.Pointer) C.int32_t {
	inst, ok := deref(h)
	if !ok {
		return rcInvalidHandle
	}
	if cb == nil {
		return rcInvalidHandle
	}

	err := inst.pipeline.StartStreaming(func(e pipeline.StreamingEvent) {
		switch e.Kind {
		case pipeline.EventPartial:
			var stash *C.char
			if e.Stash != "" {
				stash = cString(e.Stash)
			}
			C.vhisper_invoke_stream(cb, ctx, eventPartial, cString(e.Text), stash, nil)
		case pipeline.EventFinal:
			C.vhisper_invoke_stream(cb, ctx, eventFinal, cString(e.Text), nil, nil)
		case pipeline.EventError:
			C.vhisper_invoke_stream(cb, ctx, eventError, nil, nil, cString(e.Err.Error()))
		}
	})
	if err != nil {
		log.Printf("capi: start_streaming: %v", err)
		return rcOpFailed
	}
	return rcOK
}

//export vhisper_stop_streaming
func vhisper_stop_streaming(h C.uintptr_t) C.int32_t {
	inst, ok := deref(h)
	if !ok {
		return rcInvalidHandle
	}
	if err := inst.pipeline.StopStreaming(); err != nil {
		log.Printf("capi: stop_streaming: %v", err)
		return rcOpFailed
	}
	return rcOK
}

//export vhisper_cancel_streaming
func vhisper_cancel_streaming(h C.uintptr_t) C.int32_t {
	inst, ok := deref(h)
	if !ok {
		return rcInvalidHandle
	}
	if err := inst.pipeline.CancelStreaming(); err != nil {
		log.Printf("capi: cancel_streaming: %v", err)
		return rcOpFailed
	}
	return rcOK
}

//export vhisper_is_streaming
func vhisper_is_streaming(h C.uintptr_t) C.int32_t {
	inst, ok := deref(h)
	if !ok {
		return rcInvalidHandle
	}
	if inst.pipeline.IsStreaming() {
		return 1
	}
	return 0
}

//export vhisper_update_config
func vhisper_update_config(h C.uintptr_t, configJSON *C.char) C.int32_t {
	inst, ok := deref(h)
	if !ok {
		return rcInvalidHandle
	}
	if configJSON == nil {
		return rcOpFailed
	}
	if err := inst.manager.UpdateJSON([]byte(C.GoString(configJSON))); err != nil {
		log.Printf("capi: update_config rejected: %v", err)
		return rcOpFailed
	}
	return rcOK
}

//export vhisper_string_free
func vhisper_string_free(s *C.char) {
	if s != nil {
		C.free(unsafe.Pointer(s))
	}
}

var versionCString = C.CString(coreVersion)

//export vhisper_version
func vhisper_version() *C.char {
	// static storage; the caller must not free it
	return versionCString
}

func main() {}
