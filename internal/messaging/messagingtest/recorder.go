// Package messagingtest provides an in-memory messaging.Channel for tests.
package messagingtest

import (
	"context"
	"errors"
	"sync"

	"mediabot/internal/messaging"
)

// Op names a recorded channel call.
type Op string

const (
	OpSend      Op = "send"
	OpSendMedia Op = "send_media"
	OpEdit      Op = "edit"
	OpDelete    Op = "delete"
	OpForward   Op = "forward"
)

// Call is one recorded channel interaction.
type Call struct {
	Op    Op
	To    messaging.ChatRef
	Ref   messaging.MessageRef
	Text  string
	Media messaging.Media
}

// ErrInjected is returned by failures configured without an explicit error.
var ErrInjected = errors.New("injected channel failure")

// Recorder records every call and can be told to fail specific operations.
type Recorder struct {
	mu     sync.Mutex
	nextID int
	calls  []Call
	fail   map[Op]error
	failTo map[string]error
}

// New returns an empty Recorder.
func New() *Recorder {
	return &Recorder{fail: map[Op]error{}, failTo: map[string]error{}}
}

// Fail makes every call of op return err (ErrInjected when nil).
func (r *Recorder) Fail(op Op, err error) {
	if err == nil {
		err = ErrInjected
	}
	r.mu.Lock()
	r.fail[op] = err
	r.mu.Unlock()
}

// FailTo makes Send, SendMedia and Forward addressed to chat fail.
func (r *Recorder) FailTo(chat messaging.ChatRef, err error) {
	if err == nil {
		err = ErrInjected
	}
	r.mu.Lock()
	r.failTo[chat.String()] = err
	r.mu.Unlock()
}

func (r *Recorder) record(call Call, target *messaging.ChatRef) (messaging.MessageRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
	if err := r.fail[call.Op]; err != nil {
		return messaging.MessageRef{}, err
	}
	if target != nil {
		if err := r.failTo[target.String()]; err != nil {
			return messaging.MessageRef{}, err
		}
		r.nextID++
		return messaging.MessageRef{Chat: *target, MessageID: r.nextID}, nil
	}
	return messaging.MessageRef{}, nil
}

func (r *Recorder) Send(_ context.Context, to messaging.ChatRef, text string) (messaging.MessageRef, error) {
	return r.record(Call{Op: OpSend, To: to, Text: text}, &to)
}

func (r *Recorder) SendMedia(_ context.Context, to messaging.ChatRef, media messaging.Media) (messaging.MessageRef, error) {
	return r.record(Call{Op: OpSendMedia, To: to, Media: media}, &to)
}

func (r *Recorder) Edit(_ context.Context, ref messaging.MessageRef, text string) error {
	_, err := r.record(Call{Op: OpEdit, Ref: ref, Text: text}, nil)
	return err
}

func (r *Recorder) Delete(_ context.Context, ref messaging.MessageRef) error {
	_, err := r.record(Call{Op: OpDelete, Ref: ref}, nil)
	return err
}

func (r *Recorder) Forward(_ context.Context, to messaging.ChatRef, ref messaging.MessageRef) (messaging.MessageRef, error) {
	return r.record(Call{Op: OpForward, To: to, Ref: ref}, &to)
}

// Calls returns a copy of every recorded call.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// CallsOf returns the recorded calls of one kind.
func (r *Recorder) CallsOf(op Op) []Call {
	var out []Call
	for _, call := range r.Calls() {
		if call.Op == op {
			out = append(out, call)
		}
	}
	return out
}

// Texts returns the text of every Send and Edit, in order.
func (r *Recorder) Texts() []string {
	var out []string
	for _, call := range r.Calls() {
		if call.Op == OpSend || call.Op == OpEdit {
			out = append(out, call.Text)
		}
	}
	return out
}

// LastText returns the most recent Send or Edit text.
func (r *Recorder) LastText() string {
	texts := r.Texts()
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}
