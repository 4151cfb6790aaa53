// Package port implements the private channel between one worker slot and the
// pool: a framed byte stream carrying notifications and terminal markers.
//
// Every frame is a 4-byte big-endian length followed by a JSON body. A frame
// takes two writes, so concurrent senders must hold the port's Shared Lock or
// their frames interleave; Send does this itself.
package port

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/utkarsh5026/threadpool/internal/lock"
)

// maxFrameSize bounds a single frame body.
const maxFrameSize = 16 << 20

var (
	// ErrClosed is returned by Send and Receive after Close.
	ErrClosed = errors.New("port: closed")

	// ErrFrameTooLarge is returned when a frame body exceeds the limit.
	ErrFrameTooLarge = errors.New("port: frame too large")
)

// Kind identifies what a frame means to the pool.
type Kind uint8

const (
	// KindReady announces that the worker thread can take a task, at start
	// and again when a handler abandoned by a timeout finally returns.
	KindReady Kind = iota + 1
	// KindNotify is a side-channel notification emitted by a handler.
	KindNotify
	// KindDone marks the terminal outcome of a task.
	KindDone
	// KindFault marks a thread-level crash of the worker.
	KindFault
)

func (k Kind) String() string {
	switch k {
	case KindReady:
		return "ready"
	case KindNotify:
		return "notify"
	case KindDone:
		return "done"
	case KindFault:
		return "fault"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Frame is one message on the port.
type Frame struct {
	Kind    Kind              `json:"kind"`
	TaskID  uuid.UUID         `json:"task_id"`
	Event   string            `json:"event,omitempty"`
	Meta    map[string]string `json:"meta,omitempty"`
	Payload json.RawMessage   `json:"payload,omitempty"`
}

// Port is a single-reader, multi-writer framed channel.
type Port struct {
	mu *lock.Lock
	r  *io.PipeReader
	w  *io.PipeWriter
}

// New creates a port whose writers synchronize through l.
func New(l *lock.Lock) *Port {
	r, w := io.Pipe()
	return &Port{mu: l, r: r, w: w}
}

// Lock returns the Shared Lock guarding writes on this port.
func (p *Port) Lock() *lock.Lock {
	return p.mu
}

// Send writes f as one frame. It blocks until the reader has consumed it.
func (p *Port) Send(f Frame) error {
	body, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("port: encode %s frame: %w", f.Kind, err)
	}
	if len(body) > maxFrameSize {
		return ErrFrameTooLarge
	}

	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(body))) // #nosec G115 -- bounded by maxFrameSize

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := p.w.Write(header[:]); err != nil {
		return translate(err)
	}
	if _, err := p.w.Write(body); err != nil {
		return translate(err)
	}
	return nil
}

// Receive reads the next frame. It returns ErrClosed once the port is closed.
// Receive must only be called from one goroutine.
func (p *Port) Receive() (Frame, error) {
	var f Frame
	var header [4]byte

	if _, err := io.ReadFull(p.r, header[:]); err != nil {
		return f, translate(err)
	}

	size := binary.BigEndian.Uint32(header[:])
	if size > maxFrameSize {
		return f, ErrFrameTooLarge
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(p.r, body); err != nil {
		return f, translate(err)
	}

	if err := json.Unmarshal(body, &f); err != nil {
		return f, fmt.Errorf("port: decode frame: %w", err)
	}
	return f, nil
}

// Close shuts both ends. Pending and future Send and Receive calls return
// ErrClosed. Close is safe to call more than once.
func (p *Port) Close() error {
	_ = p.w.CloseWithError(ErrClosed)
	return p.r.CloseWithError(ErrClosed)
}

func translate(err error) error {
	switch {
	case errors.Is(err, io.ErrClosedPipe), errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return ErrClosed
	default:
		return err
	}
}
