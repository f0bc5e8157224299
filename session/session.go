package session

import (
	"context"
	"sync"
	"time"

	uuid "github.com/satori/go.uuid"
	log "github.com/sirupsen/logrus"

	"github.com/signal-golang/siglink/contacts"
	"github.com/signal-golang/siglink/events"
	signalservice "github.com/signal-golang/siglink/protobuf"
	"github.com/signal-golang/siglink/signalerr"
)

// ErrNotConnected is returned for sends issued while no loop is running.
var ErrNotConnected = signalerr.New(signalerr.SendFailed, "not connected - receive loop not running")

// Handle is the sending side of a running session. Sends fail fast once
// the loop has stopped.
type Handle struct {
	backend Backend
	bus     events.Emitter
	sink    Sink

	mu      sync.Mutex
	running bool
	queue   []SendCommand
	state   events.ConnectionState

	wake     chan struct{}
	quit     chan struct{}
	quitOnce sync.Once
	done     chan struct{}
}

// Start opens the backend's receive stream and runs the loop on its own
// goroutine. sink may be nil.
func Start(ctx context.Context, backend Backend, bus events.Emitter, sink Sink) (*Handle, error) {
	h := &Handle{
		backend: backend,
		bus:     bus,
		sink:    sink,
		wake:    make(chan struct{}, 1),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	h.SetState(events.Connecting)

	stream, err := backend.Open(ctx)
	if err != nil {
		err = signalerr.Wrap(signalerr.ConnectionFailed, err, "opening message stream")
		log.WithFields(log.Fields{"error": err}).Errorln("[siglink] could not start receiving")
		bus.Emit(events.Error{Message: err.Error()})
		h.SetState(events.Disconnected)
		close(h.done)
		return nil, err
	}

	h.mu.Lock()
	h.running = true
	h.mu.Unlock()
	h.SetState(events.Connected)
	log.Infoln("[siglink] message receive loop started")

	go h.loop(ctx, stream)
	return h, nil
}

// Running reports whether the loop accepts commands.
func (h *Handle) Running() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

// State is the last connection state set on the handle.
func (h *Handle) State() events.ConnectionState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// SetState records and announces a connection state. External retry logic
// uses it for Reconnecting; the loop itself never sets that state.
func (h *Handle) SetState(s events.ConnectionState) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
	h.bus.Emit(events.ConnectionStateChanged{State: s})
}

// Send queues cmd for the loop. The queue is unbounded, so Send only fails
// when no loop is running or the reply channel is unbuffered.
func (h *Handle) Send(cmd SendCommand) error {
	if h == nil {
		return ErrNotConnected
	}
	if reply := replyOf(cmd); reply != nil && cap(reply) == 0 {
		return signalerr.New(signalerr.SendFailed, "reply channel must be buffered")
	}
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return ErrNotConnected
	}
	h.queue = append(h.queue, cmd)
	h.mu.Unlock()
	select {
	case h.wake <- struct{}{}:
	default:
	}
	return nil
}

// SendDirect sends text to recipient and waits for the result. The returned
// id identifies the message in MessageSent.
func (h *Handle) SendDirect(ctx context.Context, recipient uuid.UUID, text string) (string, error) {
	reply := make(chan error, 1)
	return h.await(ctx, DirectMessage{Recipient: recipient, Text: text, Timestamp: now(), Reply: reply}, reply)
}

// SendGroup sends text to the group with the given master key.
func (h *Handle) SendGroup(ctx context.Context, masterKey []byte, text string) (string, error) {
	reply := make(chan error, 1)
	return h.await(ctx, GroupMessage{GroupKey: masterKey, Text: text, Timestamp: now(), Reply: reply}, reply)
}

func (h *Handle) await(ctx context.Context, cmd SendCommand, reply <-chan error) (string, error) {
	id := uuid.NewV4().String()
	if err := h.Send(cmd); err != nil {
		return "", err
	}
	select {
	case err := <-reply:
		if err != nil {
			log.WithFields(log.Fields{"error": err}).Errorf("[siglink] failed to send message %s", id)
			h.bus.Emit(events.Error{Message: "send failed: " + err.Error()})
			return "", err
		}
		log.Infof("[siglink] message %s sent", id)
		h.bus.Emit(events.MessageSent{MessageID: id})
		return id, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Close stops the loop and waits for it to exit.
func (h *Handle) Close() error {
	if h == nil {
		return nil
	}
	h.quitOnce.Do(func() { close(h.quit) })
	<-h.done
	return nil
}

// Done is closed once the loop has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

func now() uint64 {
	return uint64(time.Now().UnixNano() / int64(time.Millisecond))
}

func (h *Handle) loop(ctx context.Context, stream <-chan Received) {
	defer close(h.done)
	err := h.run(ctx, stream)

	h.mu.Lock()
	h.running = false
	pending := h.queue
	h.queue = nil
	h.mu.Unlock()
	for _, cmd := range pending {
		resolve(cmd, signalerr.New(signalerr.SendFailed, "send channel closed"))
	}

	if err != nil {
		log.WithFields(log.Fields{"error": err}).Errorln("[siglink] message receive loop failed")
		h.bus.Emit(events.Error{Message: err.Error()})
	}
	if cerr := h.backend.Close(); cerr != nil {
		log.WithFields(log.Fields{"error": cerr}).Debugln("[siglink] closing backend")
	}
	h.SetState(events.Disconnected)
}

func (h *Handle) run(ctx context.Context, stream <-chan Received) error {
	for {
		select {
		case r, ok := <-stream:
			if !ok {
				log.Warnln("[siglink] message stream ended")
				return nil
			}
			if err := h.handle(ctx, r); err != nil {
				return err
			}
		case <-h.wake:
			for _, cmd := range h.drain() {
				h.execute(ctx, cmd)
			}
		case <-h.quit:
			log.Infoln("[siglink] message receive loop closed")
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

func (h *Handle) drain() []SendCommand {
	h.mu.Lock()
	defer h.mu.Unlock()
	cmds := h.queue
	h.queue = nil
	return cmds
}

func (h *Handle) handle(ctx context.Context, r Received) error {
	switch r := r.(type) {
	case QueueEmpty:
		log.Infoln("[siglink] message queue synchronized")
		h.bus.Emit(events.SyncCompleted{})
	case ContactsSynced:
		h.syncContacts(ctx)
	case ContentReceived:
		h.content(r.Content)
	case StreamFailed:
		return signalerr.Wrap(signalerr.ReceiveFailed, r.Err, "message stream failed")
	}
	return nil
}

func (h *Handle) content(c *Content) {
	if c == nil {
		return
	}
	switch {
	case c.Receipt != nil:
		for _, ev := range receipts(c.Sender, c.Receipt) {
			h.bus.Emit(ev)
		}
		return
	case c.Typing != nil:
		h.bus.Emit(typing(c.Sender, c.Typing))
		return
	}
	in := incoming(c)
	if in == nil {
		return
	}
	log.Infof("[siglink] received message from %s", in.Sender)
	if h.sink != nil {
		if err := h.sink.SaveIncoming(in); err != nil {
			log.WithFields(log.Fields{"error": err}).Errorln("[siglink] failed to store message")
			h.bus.Emit(events.Error{Message: signalerr.Wrap(signalerr.StorageError, err, "storing message").Error()})
		}
	}
	h.bus.Emit(events.MessageReceived{Message: *in})
}

func (h *Handle) syncContacts(ctx context.Context) {
	remote, err := h.backend.FetchContacts(ctx)
	if err != nil {
		log.WithFields(log.Fields{"error": err}).Errorln("[siglink] failed to fetch contacts")
		h.bus.Emit(events.Error{Message: "contact sync failed: " + err.Error()})
		return
	}
	if h.sink == nil {
		return
	}
	local, err := h.sink.ListContacts()
	if err != nil {
		log.WithFields(log.Fields{"error": err}).Errorln("[siglink] failed to load contacts")
		return
	}
	changed := contacts.Merge(local, remote)
	for i := range changed {
		c := &changed[i]
		if err := h.sink.SaveContact(c); err != nil {
			log.WithFields(log.Fields{"error": err}).Errorf("[siglink] failed to save contact %s", c.ID())
			continue
		}
		h.bus.Emit(events.ContactUpdated{ContactID: c.ID()})
	}
	log.Infof("[siglink] contacts synchronized, %d changed", len(changed))
}

func (h *Handle) execute(ctx context.Context, cmd SendCommand) {
	var err error
	switch c := cmd.(type) {
	case DirectMessage:
		dm := &signalservice.DataMessage{Body: c.Text, Timestamp: c.Timestamp}
		err = h.backend.SendDirect(ctx, c.Recipient, dm)
	case GroupMessage:
		dm := &signalservice.DataMessage{
			Body:      c.Text,
			Timestamp: c.Timestamp,
			GroupV2:   &signalservice.GroupContextV2{MasterKey: c.GroupKey},
		}
		err = h.backend.SendGroup(ctx, c.GroupKey, dm)
	}
	if err != nil && !signalerr.Is(err, signalerr.SendFailed) {
		err = signalerr.Wrap(signalerr.SendFailed, err, "sending message")
	}
	resolve(cmd, err)
}

func replyOf(cmd SendCommand) chan<- error {
	switch c := cmd.(type) {
	case DirectMessage:
		return c.Reply
	case GroupMessage:
		return c.Reply
	}
	return nil
}

func resolve(cmd SendCommand, err error) {
	reply := replyOf(cmd)
	if reply == nil {
		return
	}
	select {
	case reply <- err:
	default:
		log.Warnln("[siglink] dropping send result, reply channel full")
	}
}
