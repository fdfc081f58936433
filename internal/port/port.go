// Package port bridges PORT! values to internal/device: it is the
// "standard library layer surrounding the core" that internal/eval and
// internal/parse never import, so the evaluator's dependency graph
// stays free of database drivers, websockets, and packet capture while
// a script can still open, read, write, and close all three through
// ordinary PORT! natives.
package port

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"rebolcore/internal/device"
	"rebolcore/internal/device/dbport"
	"rebolcore/internal/device/pcapport"
	"rebolcore/internal/device/wsport"
	"rebolcore/internal/eval"
	"rebolcore/internal/rerr"
	"rebolcore/internal/symtab"
	"rebolcore/internal/values"
)

// Handle is a KindPort cell's Obj payload: which Device answers its
// commands, the scheme it was opened under, and whatever Extra value
// that device's Read/Write/Close/Poll commands expect to be told which
// connection they address (a bare nil for console, a path for file, a
// caller-visible ID string for the three dialed devices).
type Handle struct {
	Dev     device.Device
	Scheme  string
	IDExtra interface{}
	Result  *dbport.Result // last db-query result, read back by db-result
}

// Natives pairs the natives Install defines with the Registry they
// dispatch through.
type Natives struct {
	Registry *device.Registry
}

// NewNatives returns a Natives whose Registry has every concrete
// device this repo ships registered under the scheme name a PORT! URL
// spec selects it by.
func NewNatives() *Natives {
	reg := device.NewRegistry()
	reg.Register("dbport", dbport.New())
	reg.Register("wsport", wsport.New())
	reg.Register("pcapport", pcapport.New())
	return &Natives{Registry: reg}
}

func define(ip *eval.Interp, name string, params []string, fn values.NativeFunc) {
	nameSym := ip.Tab.Intern(name)
	paramSyms := make([]symtab.Sym, len(params))
	for i, p := range params {
		paramSyms[i] = ip.Tab.Intern(p)
	}
	f := values.NewNative(nameSym, paramSyms, fn)
	ip.Define(nameSym, values.Cell{Kind: values.KindFunction, Obj: f})
}

// Install defines OPEN, CLOSE, READ, WRITE, POLL, DB-QUERY, DB-MODIFY,
// and DB-RESULT on ip. Call it once per Interp that should have port
// access; an Interp that never calls Install has no I/O surface at
// all, which is the shape a sandboxed script evaluator wants.
func (n *Natives) Install(ip *eval.Interp) {
	define(ip, "open", []string{"spec"}, func(env *values.Env, args []values.Cell) (values.Cell, error) {
		spec, err := stringArg(args[0])
		if err != nil {
			return values.Cell{}, err
		}
		return n.open(spec)
	})

	define(ip, "close", []string{"port"}, func(env *values.Env, args []values.Cell) (values.Cell, error) {
		h, err := handleArg(args[0])
		if err != nil {
			return values.Cell{}, err
		}
		req := &device.Request{Extra: h.IDExtra}
		if err := h.Dev.Close(req); err != nil {
			return values.Cell{}, rerr.New(rerr.DeviceError, "close %s: %v", h.Scheme, err)
		}
		return values.Void(), nil
	})

	define(ip, "read", []string{"port"}, func(env *values.Env, args []values.Cell) (values.Cell, error) {
		h, err := handleArg(args[0])
		if err != nil {
			return values.Cell{}, err
		}
		req := &device.Request{Extra: h.IDExtra, Length: 65536}
		if err := h.Dev.Read(req); err != nil && err != io.EOF {
			return values.Cell{}, rerr.New(rerr.DeviceError, "read %s: %v", h.Scheme, err)
		}
		return bytesCell(req.Data), nil
	})

	define(ip, "write", []string{"port", "data"}, func(env *values.Env, args []values.Cell) (values.Cell, error) {
		h, err := handleArg(args[0])
		if err != nil {
			return values.Cell{}, err
		}
		payload, err := stringArg(args[1])
		if err != nil {
			return values.Cell{}, err
		}
		req := &device.Request{Extra: h.IDExtra, Data: []byte(payload)}
		if err := h.Dev.Write(req); err != nil {
			return values.Cell{}, rerr.New(rerr.DeviceError, "write %s: %v", h.Scheme, err)
		}
		return values.Integer(int64(req.Actual)), nil
	})

	define(ip, "poll", []string{"port"}, func(env *values.Env, args []values.Cell) (values.Cell, error) {
		h, err := handleArg(args[0])
		if err != nil {
			return values.Cell{}, err
		}
		req := &device.Request{Extra: h.IDExtra}
		if err := h.Dev.Poll(req); err != nil {
			return values.Cell{}, rerr.New(rerr.DeviceError, "poll %s: %v", h.Scheme, err)
		}
		return values.Logic(req.Actual != 0), nil
	})

	define(ip, "db-query", []string{"port", "sql"}, func(env *values.Env, args []values.Cell) (values.Cell, error) {
		h, err := handleArg(args[0])
		if err != nil {
			return values.Cell{}, err
		}
		sql, err := stringArg(args[1])
		if err != nil {
			return values.Cell{}, err
		}
		id, _ := h.IDExtra.(string)
		req := &device.Request{Extra: dbport.Statement{ID: id, SQL: sql}}
		if err := h.Dev.Query(req); err != nil {
			return values.Cell{}, rerr.New(rerr.DeviceError, "query: %v", err)
		}
		h.Result, _ = req.Extra.(*dbport.Result)
		return values.Integer(int64(req.Actual)), nil
	})

	define(ip, "db-modify", []string{"port", "sql"}, func(env *values.Env, args []values.Cell) (values.Cell, error) {
		h, err := handleArg(args[0])
		if err != nil {
			return values.Cell{}, err
		}
		sql, err := stringArg(args[1])
		if err != nil {
			return values.Cell{}, err
		}
		id, _ := h.IDExtra.(string)
		req := &device.Request{Extra: dbport.Statement{ID: id, SQL: sql}}
		if err := h.Dev.Modify(req); err != nil {
			return values.Cell{}, rerr.New(rerr.DeviceError, "modify: %v", err)
		}
		return values.Integer(int64(req.Actual)), nil
	})

	define(ip, "db-result", []string{"port"}, func(env *values.Env, args []values.Cell) (values.Cell, error) {
		h, err := handleArg(args[0])
		if err != nil {
			return values.Cell{}, err
		}
		return resultBlock(h.Result), nil
	})
}

func handleArg(c values.Cell) (*Handle, error) {
	h, ok := c.Obj.(*Handle)
	if c.Kind != values.KindPort || !ok {
		return nil, rerr.New(rerr.NativeError, "expected a port, got %s", c.Kind)
	}
	return h, nil
}

func stringArg(c values.Cell) (string, error) {
	if c.Ser == nil {
		return "", rerr.New(rerr.NativeError, "expected a string, got %s", c.Kind)
	}
	b := c.Ser.Bytes()
	if c.Idx > len(b) {
		return "", nil
	}
	return string(b[c.Idx:]), nil
}

func bytesCell(data []byte) values.Cell {
	ser := values.MakeSeries(len(data))
	ser.AppendBytes(data...)
	return values.SeriesCell(values.KindString, ser, 0)
}

// resultBlock turns a dbport.Result into a BLOCK! of row blocks, each
// row itself a flat STRING!-key/STRING!-value block — the simplest
// shape PARSE or ordinary path access can walk without a dedicated
// OBJECT!-construction native.
func resultBlock(res *dbport.Result) values.Cell {
	if res == nil {
		return values.SeriesCell(values.KindBlock, values.MakeArray(1), 0)
	}
	outer := values.MakeArray(len(res.Rows) + 1)
	for _, row := range res.Rows {
		inner := values.MakeArray(len(res.Columns)*2 + 1)
		for _, col := range res.Columns {
			inner.AppendCell(bytesCell([]byte(col)))
			inner.AppendCell(bytesCell([]byte(fmt.Sprint(row[col]))))
		}
		outer.AppendCell(values.SeriesCell(values.KindBlock, inner, 0))
	}
	return values.SeriesCell(values.KindBlock, outer, 0)
}

func portCell(d device.Device, scheme string, idExtra interface{}) values.Cell {
	return values.Cell{Kind: values.KindPort, Obj: &Handle{Dev: d, Scheme: scheme, IDExtra: idExtra}}
}

// open parses a PORT! spec URL (e.g. "file:///tmp/x",
// "dbport://mydb?driver=sqlite&dsn=file:test.db",
// "wsport://echo?url=wss://example.test/socket",
// "pcapport://cap0?iface=eth0&filter=tcp") and dials the device its
// scheme names.
func (n *Natives) open(spec string) (values.Cell, error) {
	u, err := url.Parse(spec)
	if err != nil {
		return values.Cell{}, rerr.New(rerr.DeviceError, "bad port spec %q: %v", spec, err)
	}
	scheme := strings.ToLower(u.Scheme)

	switch scheme {
	case "console":
		d, _ := n.Registry.Lookup("console")
		req := &device.Request{}
		if err := d.Open(req); err != nil {
			return values.Cell{}, rerr.New(rerr.DeviceError, "open console: %v", err)
		}
		return portCell(d, scheme, nil), nil

	case "file":
		d, _ := n.Registry.Lookup("file")
		path := u.Path
		if path == "" {
			path = u.Opaque
		}
		req := &device.Request{Extra: path}
		if err := d.Open(req); err != nil {
			return values.Cell{}, rerr.New(rerr.DeviceError, "open file %q: %v", path, err)
		}
		return portCell(d, scheme, path), nil

	case "dbport":
		d, _ := n.Registry.Lookup("dbport")
		id := u.Host
		q := u.Query()
		spec := dbport.ConnectSpec{ID: id, Driver: q.Get("driver"), DSN: q.Get("dsn")}
		req := &device.Request{Extra: spec}
		if err := d.Connect(req); err != nil {
			return values.Cell{}, rerr.New(rerr.DeviceError, "open dbport %q: %v", id, err)
		}
		return portCell(d, scheme, id), nil

	case "wsport":
		d, _ := n.Registry.Lookup("wsport")
		id := u.Host
		q := u.Query()
		spec := wsport.ConnectSpec{ID: id, URL: q.Get("url")}
		req := &device.Request{Extra: spec}
		if err := d.Connect(req); err != nil {
			return values.Cell{}, rerr.New(rerr.DeviceError, "open wsport %q: %v", id, err)
		}
		return portCell(d, scheme, id), nil

	case "pcapport":
		d, _ := n.Registry.Lookup("pcapport")
		id := u.Host
		q := u.Query()
		spec := pcapport.ConnectSpec{
			ID:        id,
			Interface: q.Get("iface"),
			Filter:    q.Get("filter"),
			Promisc:   q.Get("promisc") == "true",
		}
		req := &device.Request{Extra: spec}
		if err := d.Connect(req); err != nil {
			return values.Cell{}, rerr.New(rerr.DeviceError, "open pcapport %q: %v", id, err)
		}
		return portCell(d, scheme, id), nil

	default:
		return values.Cell{}, rerr.New(rerr.DeviceError, "unknown port scheme %q", scheme)
	}
}
