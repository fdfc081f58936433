// Package device defines the port abstraction external collaborators
// (the console, the filesystem, a SQL connection, a websocket, a
// packet capture) implement so PORT! values can move bytes in and out
// of the evaluator without internal/eval or internal/parse importing
// any of those concerns directly. A Device is a small command table,
// the same shape every concrete device below answers: Init/Quit set up
// and tear down device-wide state, Open/Close/Read/Write/Poll work a
// single Request's connection, and Connect/Query/Modify/Create cover
// the handful of commands that don't fit the plain byte-stream model
// (a SQL query, a capture filter change).
package device

import "rebolcore/internal/rerr"

// Command names one of the operations a Device answers.
type Command int

const (
	Init Command = iota
	Quit
	Open
	Close
	Read
	Write
	Poll
	Connect
	Query
	Modify
	Create
)

// Flag marks a bit of per-request state a device consults or sets:
// whether the caller wants to block until data is ready, whether the
// request's connection is open, and so on.
type Flag uint32

const (
	FlagOpen Flag = 1 << iota
	FlagNoWait
	FlagBinary
)

// Request is the uniform record passed to every Device command: which
// device it targets, its open/blocking flags, the last error (if any),
// how much Data was asked for versus how much was actually
// transferred, and the payload itself.
type Request struct {
	Device string
	Flags  Flag
	Error  error
	Length int
	Actual int
	Data   []byte

	// Extra carries command-specific detail a plain byte buffer can't:
	// SQL query results as rows, a dialed address, a capture filter
	// string. Devices document what they place here for Query/Modify/
	// Create; on Read/Write the file, wsport and pcapport devices use it
	// to name the open handle, and pcapport's Read replaces it with the
	// captured frame's summary.
	Extra interface{}
}

// Device is the command table every port implementation answers.
// Commands a given device has no use for (most devices never need
// Query, a dbport connection never needs Poll) return a "device-error"
// identifying the unsupported command rather than
// panicking or silently no-opping.
type Device interface {
	Init(req *Request) error
	Quit(req *Request) error
	Open(req *Request) error
	Close(req *Request) error
	Read(req *Request) error
	Write(req *Request) error
	Poll(req *Request) error
	Connect(req *Request) error
	Query(req *Request) error
	Modify(req *Request) error
	Create(req *Request) error
}

// Unsupported builds the standard "this device has no such command"
// error, the body every Device's unimplemented methods share.
func Unsupported(deviceName, command string) error {
	return rerr.New(rerr.DeviceError, "%s device does not support %s", deviceName, command)
}

// Base embeds into a concrete device to give it a no-op Init/Quit and
// an Unsupported stub for every command the embedder doesn't override,
// the same "implement only what you need" shape as a Go http.Handler
// embedding http.NotFoundHandler. Name is used in the stub errors.
type Base struct {
	Name string
}

func (b Base) Init(*Request) error  { return nil }
func (b Base) Quit(*Request) error  { return nil }
func (b Base) Open(*Request) error  { return Unsupported(b.Name, "open") }
func (b Base) Close(*Request) error { return Unsupported(b.Name, "close") }
func (b Base) Read(*Request) error  { return Unsupported(b.Name, "read") }
func (b Base) Write(*Request) error { return Unsupported(b.Name, "write") }
func (b Base) Poll(*Request) error  { return Unsupported(b.Name, "poll") }
func (b Base) Connect(*Request) error {
	return Unsupported(b.Name, "connect")
}
func (b Base) Query(*Request) error  { return Unsupported(b.Name, "query") }
func (b Base) Modify(*Request) error { return Unsupported(b.Name, "modify") }
func (b Base) Create(*Request) error { return Unsupported(b.Name, "create") }

// Registry looks devices up by name the way PORT! construction does:
// internal/port's `open "dbport://..."` resolves "dbport" to whichever
// Device was registered under that name.
type Registry struct {
	devices map[string]Device
}

// NewRegistry returns a Registry with the always-available console and
// file devices pre-registered.
func NewRegistry() *Registry {
	r := &Registry{devices: make(map[string]Device)}
	r.Register("console", NewConsole(nil, nil))
	r.Register("file", NewFile())
	return r
}

// Register adds or replaces the device answering to name.
func (r *Registry) Register(name string, d Device) {
	r.devices[name] = d
}

// Lookup returns the device registered under name, if any.
func (r *Registry) Lookup(name string) (Device, bool) {
	d, ok := r.devices[name]
	return d, ok
}
