package chat

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	signalservice "github.com/signal-golang/siglink/protobuf"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 25 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// Conn is a wrapper for the websocket connection
type Conn struct {
	// The websocket connection
	ws *websocket.Conn

	// Buffered channel of outbound messages
	send chan []byte

	done      chan struct{}
	closeOnce sync.Once
}

func newConn(ws *websocket.Conn) *Conn {
	c := &Conn{
		ws:   ws,
		send: make(chan []byte, 256),
		done: make(chan struct{}),
	}
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		log.Debugf("[siglink-ws] Received websocket pong message")
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	return c
}

// write writes a message with the given message type and payload.
func (c *Conn) write(mt int, payload []byte) error {
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(mt, payload)
}

// writeWorker writes messages to websocket connection. It is the only
// goroutine calling write methods.
func (c *Conn) writeWorker() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		log.Debugf("[siglink-ws] closing writeWorker")
		ticker.Stop()
		c.ws.Close()
	}()
	for {
		select {
		case message := <-c.send:
			if err := c.write(websocket.BinaryMessage, message); err != nil {
				log.WithFields(log.Fields{
					"error": err,
				}).Error("[siglink-ws] Failed to send websocket message")
				return
			}
		case <-ticker.C:
			log.Debugf("[siglink-ws] Sending websocket ping message")
			if err := c.write(websocket.PingMessage, nil); err != nil {
				log.WithFields(log.Fields{
					"error": err,
				}).Error("[siglink-ws] Failed to send websocket ping message")
				return
			}
		case <-c.done:
			c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// sendAck queues the 200 OK response for request id.
func (c *Conn) sendAck(id uint64) {
	log.Debugln("[siglink-ws] websocket sending ack response ", id)
	select {
	case c.send <- signalservice.OKResponse(id).Marshal():
	case <-c.done:
	}
}

// close stops the write worker, which sends a close frame and closes the
// socket.
func (c *Conn) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Conn) closing() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}
