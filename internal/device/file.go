package device

import (
	"io"
	"os"
)

// File is the device backing FILE!-scheme ports: Open/Close wrap
// os.File, Read/Write move bytes through it directly. Extra on a Read
// or Write Request names the path of the open file to use; Connect/
// Query/Modify/Create aren't
// meaningful for a plain file so they fall through to Base's stubs.
type File struct {
	Base
	handles map[string]*os.File
}

// NewFile returns an empty File device; handles are keyed by the path
// a caller opened, so one File device instance can serve any number of
// concurrently open files.
func NewFile() *File {
	return &File{Base: Base{Name: "file"}, handles: make(map[string]*os.File)}
}

// Open expects req.Extra to hold the path to open; it creates the file
// if absent and opens it read/write without truncating, so a Read
// right after Open sees whatever was already there.
func (f *File) Open(req *Request) error {
	path, _ := req.Extra.(string)
	if path == "" {
		return Unsupported("file", "open without a path")
	}
	flags := os.O_RDWR | os.O_CREATE
	fh, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return err
	}
	f.handles[path] = fh
	req.Extra = path
	req.Flags |= FlagOpen
	return nil
}

func (f *File) Close(req *Request) error {
	path, _ := req.Extra.(string)
	fh, ok := f.handles[path]
	if !ok {
		return Unsupported("file", "close on an unopened path")
	}
	delete(f.handles, path)
	req.Flags &^= FlagOpen
	return fh.Close()
}

func (f *File) Read(req *Request) error {
	path, _ := req.Extra.(string)
	fh, ok := f.handles[path]
	if !ok {
		return Unsupported("file", "read on an unopened path")
	}
	buf := make([]byte, req.Length)
	n, err := fh.Read(buf)
	req.Data = buf[:n]
	req.Actual = n
	if err == io.EOF {
		return io.EOF
	}
	return err
}

func (f *File) Write(req *Request) error {
	path, _ := req.Extra.(string)
	fh, ok := f.handles[path]
	if !ok {
		return Unsupported("file", "write on an unopened path")
	}
	n, err := fh.Write(req.Data)
	req.Actual = n
	return err
}
