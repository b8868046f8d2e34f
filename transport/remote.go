package transport

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/abk-chicago/flutter/protocol"
)

// ErrClosed is returned by Send after the remote messenger has been closed.
var ErrClosed = errors.New("transport: messenger closed")

// Remote is a BinaryMessenger over a single net.Conn to a host process.
// Multiple concurrent sends share the connection: each message gets a unique
// sequence number, and a background goroutine (recvLoop) continuously reads
// frames and routes replies to the correct caller via pending channels.
//
//	goroutine-1 ──Send(seq=1)──┐
//	goroutine-2 ──Send(seq=2)──┼──→ single conn ──→ host
//	goroutine-3 ──Send(seq=3)──┘
//
//	recvLoop:  ←── reply(seq=2) → pending[2] chan → goroutine-2 wakes up
//
// Both ends of a connection are symmetric: either side may send on a channel
// and either side may register handlers for inbound channels.
type Remote struct {
	conn    net.Conn
	logger  *zap.Logger
	seq     uint32     // Monotonically increasing sequence number (protected by sending mutex)
	pending sync.Map   // map[uint32]chan *pendingReply — each in-flight send waits on its own channel
	sending sync.Mutex // Write lock — frames from concurrent sends must not interleave
	closed  atomic.Bool

	mu       sync.RWMutex
	handlers map[string]BinaryMessageHandler
	mocks    map[string]BinaryMessageHandler
}

type pendingReply struct {
	body []byte // nil = absent reply
	err  error
}

// NewRemote wraps conn and starts two background goroutines: recvLoop reads
// frames and dispatches them, heartbeatLoop keeps the connection alive.
// A nil logger disables logging.
func NewRemote(conn net.Conn, logger *zap.Logger) *Remote {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Remote{
		conn:     conn,
		logger:   logger,
		handlers: make(map[string]BinaryMessageHandler),
		mocks:    make(map[string]BinaryMessageHandler),
	}
	go r.recvLoop()
	go r.heartbeatLoop(30 * time.Second)
	return r
}

// Send writes a message frame and blocks until the matching reply frame
// arrives or ctx is done. An installed mock handler for the channel
// intercepts the send before it reaches the wire.
func (r *Remote) Send(ctx context.Context, channel string, msg []byte) ([]byte, error) {
	r.mu.RLock()
	mock := r.mocks[channel]
	r.mu.RUnlock()
	if mock != nil {
		return mock(ctx, msg)
	}

	if r.closed.Load() {
		return nil, ErrClosed
	}

	respCh := make(chan *pendingReply, 1) // Buffered so recvLoop never blocks on a caller

	// Sequence assignment, pending registration and the frame write happen
	// under the sending mutex: the reply cannot race ahead of registration,
	// and frames from concurrent sends cannot interleave.
	r.sending.Lock()
	r.seq++
	seq := r.seq
	r.pending.Store(seq, respCh)

	header := &protocol.Header{Type: protocol.FrameMessage, Seq: seq, Channel: channel}
	if msg != nil {
		header.Flags = protocol.FlagHasBody
	}
	err := protocol.Encode(r.conn, header, msg)
	r.sending.Unlock()
	if err != nil {
		r.pending.Delete(seq)
		return nil, err
	}

	select {
	case reply := <-respCh:
		if reply.err != nil {
			return nil, reply.err
		}
		return reply.body, nil
	case <-ctx.Done():
		r.pending.Delete(seq)
		return nil, ctx.Err()
	}
}

func (r *Remote) SetMessageHandler(channel string, handler BinaryMessageHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if handler == nil {
		delete(r.handlers, channel)
		return
	}
	r.handlers[channel] = handler
}

func (r *Remote) SetMockMessageHandler(channel string, handler BinaryMessageHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if handler == nil {
		delete(r.mocks, channel)
		return
	}
	r.mocks[channel] = handler
}

func (r *Remote) ClearMockMessageHandlers() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.mocks)
}

// Close tears down the connection. Every in-flight Send fails with the
// connection error observed by recvLoop.
func (r *Remote) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	return r.conn.Close()
}

// recvLoop runs in a dedicated goroutine, continuously reading frames.
// Replies are routed to the pending caller by sequence number; inbound
// messages are dispatched to the registered handler in their own goroutine
// so a slow handler cannot stall the read loop.
//
// A single reader is required: the connection is a byte stream, and frame
// boundaries only parse sequentially.
func (r *Remote) recvLoop() {
	for {
		header, body, err := protocol.Decode(r.conn)
		if err != nil {
			if r.closed.Load() {
				err = ErrClosed
			}
			r.failPending(err)
			return
		}

		switch header.Type {
		case protocol.FrameHeartbeat:
			// KeepAlive only, nothing to do.
		case protocol.FrameReply:
			if ch, ok := r.pending.LoadAndDelete(header.Seq); ok {
				ch.(chan *pendingReply) <- &pendingReply{body: body}
			}
		case protocol.FrameMessage:
			go r.dispatch(header, body)
		}
	}
}

// dispatch runs the registered handler for one inbound message and writes
// the reply frame. The handler is resolved once, at delivery time, so a
// replacement mid-flight does not affect this invocation.
func (r *Remote) dispatch(header *protocol.Header, body []byte) {
	r.mu.RLock()
	handler := r.handlers[header.Channel]
	r.mu.RUnlock()

	reply := &protocol.Header{Type: protocol.FrameReply, Seq: header.Seq}
	if handler == nil {
		// Absent reply: the caller sees "no implementation registered".
		if err := r.writeFrame(reply, nil); err != nil {
			r.logger.Warn("failed to write absent reply",
				zap.String("channel", header.Channel), zap.Error(err))
		}
		return
	}

	result, err := handler(context.Background(), body)
	if err != nil {
		// Uncaught handler failure. Not converted into a reply: programming
		// errors must not be masked as remote failures, so the caller's
		// future stays unresolved and the failure is surfaced here.
		r.logger.Error("uncaught error in binary message handler",
			zap.String("channel", header.Channel), zap.Error(err))
		return
	}
	if result != nil {
		reply.Flags = protocol.FlagHasBody
	}
	if err := r.writeFrame(reply, result); err != nil {
		r.logger.Warn("failed to write reply",
			zap.String("channel", header.Channel), zap.Error(err))
	}
}

func (r *Remote) writeFrame(header *protocol.Header, body []byte) error {
	r.sending.Lock()
	defer r.sending.Unlock()
	return protocol.Encode(r.conn, header, body)
}

// failPending is called when the connection breaks. It fails every pending
// caller so none blocks forever waiting for a reply.
func (r *Remote) failPending(err error) {
	r.pending.Range(func(key, value any) bool {
		value.(chan *pendingReply) <- &pendingReply{err: err}
		r.pending.Delete(key)
		return true
	})
}

// heartbeatLoop sends periodic heartbeat frames so an idle connection is not
// torn down by the peer or intermediaries.
func (r *Remote) heartbeatLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		if r.closed.Load() {
			return
		}
		if err := r.writeFrame(&protocol.Header{Type: protocol.FrameHeartbeat}, nil); err != nil {
			return // Connection broken, recvLoop handles cleanup
		}
	}
}
