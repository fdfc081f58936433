// Package wsport is the internal/device.Device backing a PORT! opened
// against a "wsport://" scheme (the ws:// or wss:// address given as
// its url parameter): full-duplex byte frames carried
// over a websocket connection, built around the Device command table
// and gorilla/websocket directly rather than a bespoke network module
// method set.
package wsport

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"rebolcore/internal/device"
)

// ConnectSpec is req.Extra for a client-side Connect: the handle ID
// later Read/Write/Close/Poll calls use, and the URL to dial.
type ConnectSpec struct {
	ID  string
	URL string
}

// conn wraps one open websocket with a background-reader pattern:
// ReadMessage blocks, so a goroutine drains it into a channel and
// Read/Poll only ever touch the channel.
type conn struct {
	ws       *websocket.Conn
	messages chan []byte
	mu       sync.Mutex
	closed   bool
}

func (c *conn) pump() {
	defer close(c.messages)
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()

		mtype, data, err := c.ws.ReadMessage()
		if err != nil {
			c.mu.Lock()
			c.closed = true
			c.mu.Unlock()
			return
		}
		if mtype != websocket.TextMessage && mtype != websocket.BinaryMessage {
			continue
		}
		select {
		case c.messages <- data:
		default:
			<-c.messages
			c.messages <- data
		}
	}
}

// Port is one wsport device instance; it pools conns by the caller-
// chosen handle ID the way dbport pools *sql.DB connections.
type Port struct {
	device.Base
	mu    sync.RWMutex
	conns map[string]*conn
	// ReadTimeout bounds how long Read waits for a message before
	// reporting none available; zero means block indefinitely.
	ReadTimeout time.Duration
}

// New returns an empty wsport device.
func New() *Port {
	return &Port{Base: device.Base{Name: "wsport"}, conns: make(map[string]*conn)}
}

// Connect dials req.Extra.(ConnectSpec).URL and starts its reader pump.
func (p *Port) Connect(req *device.Request) error {
	spec, ok := req.Extra.(ConnectSpec)
	if !ok {
		return device.Unsupported("wsport", "connect without a ConnectSpec")
	}
	dialer := websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second
	ws, _, err := dialer.Dial(spec.URL, nil)
	if err != nil {
		return fmt.Errorf("wsport: dial %s failed: %w", spec.URL, err)
	}
	c := &conn{ws: ws, messages: make(chan []byte, 100)}
	go c.pump()

	p.mu.Lock()
	p.conns[spec.ID] = c
	p.mu.Unlock()
	req.Flags |= device.FlagOpen
	return nil
}

// Open is an alias for Connect, the same client-dial shape every Open
// call expects across the device set.
func (p *Port) Open(req *device.Request) error { return p.Connect(req) }

func (p *Port) getConn(id string) (*conn, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, ok := p.conns[id]
	if !ok {
		return nil, fmt.Errorf("wsport: no open connection %q", id)
	}
	return c, nil
}

// Close sends a close frame and tears down the connection named by
// req.Extra.(string).
func (p *Port) Close(req *device.Request) error {
	id, _ := req.Extra.(string)
	p.mu.Lock()
	c, ok := p.conns[id]
	if ok {
		delete(p.conns, id)
	}
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("wsport: no open connection %q", id)
	}
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.ws.Close()
}

// Write sends req.Data as one frame, binary if FlagBinary is set on
// req, text otherwise.
func (p *Port) Write(req *device.Request) error {
	id, _ := req.Extra.(string)
	c, err := p.getConn(id)
	if err != nil {
		return err
	}
	mtype := websocket.TextMessage
	if req.Flags&device.FlagBinary != 0 {
		mtype = websocket.BinaryMessage
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("wsport: connection %q is closed", id)
	}
	if err := c.ws.WriteMessage(mtype, req.Data); err != nil {
		return err
	}
	req.Actual = len(req.Data)
	return nil
}

// Read pulls the next buffered message off req.Extra.(string)'s
// connection, waiting up to p.ReadTimeout (or indefinitely if zero).
func (p *Port) Read(req *device.Request) error {
	id, _ := req.Extra.(string)
	c, err := p.getConn(id)
	if err != nil {
		return err
	}
	if p.ReadTimeout <= 0 {
		msg, ok := <-c.messages
		if !ok {
			return fmt.Errorf("wsport: connection %q closed", id)
		}
		req.Data = msg
		req.Actual = len(msg)
		return nil
	}
	select {
	case msg, ok := <-c.messages:
		if !ok {
			return fmt.Errorf("wsport: connection %q closed", id)
		}
		req.Data = msg
		req.Actual = len(msg)
		return nil
	case <-time.After(p.ReadTimeout):
		return fmt.Errorf("wsport: read timed out on %q", id)
	}
}

// Poll reports (via req.Actual: 1 or 0) whether a message is waiting
// without consuming it or blocking — PARSE-driven protocol loops use
// this to decide whether to Read yet.
func (p *Port) Poll(req *device.Request) error {
	id, _ := req.Extra.(string)
	c, err := p.getConn(id)
	if err != nil {
		return err
	}
	if len(c.messages) > 0 {
		req.Actual = 1
	} else {
		req.Actual = 0
	}
	return nil
}

// Listener is the server side of the same scheme: an http.Server whose
// single handler upgrades every request to a websocket and hands the
// resulting conn to Accept, so a script can drive a server loop with
// Poll/Read/Write exactly like a client port.
type Listener struct {
	upgrader websocket.Upgrader
	server   *http.Server
	accepted chan *conn
}

// Listen starts an HTTP server on addr that upgrades every incoming
// request to a websocket; new connections arrive through Accept.
func Listen(addr string) *Listener {
	l := &Listener{
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		accepted: make(chan *conn, 16),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		ws, err := l.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c := &conn{ws: ws, messages: make(chan []byte, 100)}
		go c.pump()
		l.accepted <- c
	})
	l.server = &http.Server{Addr: addr, Handler: mux}
	go l.server.ListenAndServe()
	return l
}

// Accept registers the next incoming connection under id on p and
// returns once one has arrived.
func (p *Port) Accept(l *Listener, id string) {
	c := <-l.accepted
	p.mu.Lock()
	p.conns[id] = c
	p.mu.Unlock()
}

// Stop shuts the listener's HTTP server down.
func (l *Listener) Stop() error { return l.server.Close() }
