// Package dbport is the internal/device.Device backing a PORT! opened
// against the "dbport://" scheme (driver and DSN given as query
// parameters): it exposes database/sql connections through the
// Device command table instead of a bespoke method set, so the
// evaluator reaches a database the same way it reaches a file or a
// socket.
package dbport

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"rebolcore/internal/device"
)

// ConnectSpec is req.Extra for a Connect call: the connection's
// handle ID (how later Query/Modify/Close calls name it), the driver
// type, and a ready-made DSN — callers build the DSN themselves since
// only they know which of the four SQL dialects they're dialing.
type ConnectSpec struct {
	ID     string
	Driver string // mysql, postgres, sqlite3, sqlite, sqlserver
	DSN    string
}

// Statement is req.Extra for a Query or Modify call: which open
// connection to use, the SQL text, and its positional arguments.
type Statement struct {
	ID   string
	SQL  string
	Args []interface{}
}

// Result is what Query leaves in req.Extra: column names and each row
// decoded into a column-name-keyed map.
type Result struct {
	Columns []string
	Rows    []map[string]interface{}
}

// Port is one dbport device instance; Open/Close manage a pool of
// named *sql.DB handles under it, keyed by ConnectSpec.ID.
type Port struct {
	device.Base
	mu    sync.RWMutex
	conns map[string]*sql.DB
}

// New returns an empty dbport device.
func New() *Port {
	return &Port{Base: device.Base{Name: "dbport"}, conns: make(map[string]*sql.DB)}
}

func driverName(driver string) (string, error) {
	switch strings.ToLower(driver) {
	case "mysql":
		return "mysql", nil
	case "postgres", "postgresql":
		return "postgres", nil
	case "sqlite3":
		return "sqlite3", nil
	case "sqlite":
		return "sqlite", nil
	case "sqlserver", "mssql":
		return "sqlserver", nil
	default:
		return "", fmt.Errorf("unsupported database driver: %s", driver)
	}
}

// Connect opens a new pooled *sql.DB under req.Extra.(ConnectSpec).ID,
// pinging it once to surface a bad DSN immediately rather than on the
// first query.
func (p *Port) Connect(req *device.Request) error {
	spec, ok := req.Extra.(ConnectSpec)
	if !ok {
		return device.Unsupported("dbport", "connect without a ConnectSpec")
	}
	drv, err := driverName(spec.Driver)
	if err != nil {
		return err
	}
	db, err := sql.Open(drv, spec.DSN)
	if err != nil {
		return err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return err
	}
	p.mu.Lock()
	p.conns[spec.ID] = db
	p.mu.Unlock()
	req.Flags |= device.FlagOpen
	return nil
}

// Open is an alias for Connect, so a port opened the ordinary
// (non-SQL-specific) way still reaches a database: req.Extra must
// still carry a ConnectSpec.
func (p *Port) Open(req *device.Request) error { return p.Connect(req) }

func (p *Port) getConn(id string) (*sql.DB, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	db, ok := p.conns[id]
	if !ok {
		return nil, fmt.Errorf("dbport: no open connection %q", id)
	}
	return db, nil
}

// Close closes and forgets the connection named by req.Extra.(string).
func (p *Port) Close(req *device.Request) error {
	id, _ := req.Extra.(string)
	p.mu.Lock()
	db, ok := p.conns[id]
	if ok {
		delete(p.conns, id)
	}
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("dbport: no open connection %q", id)
	}
	req.Flags &^= device.FlagOpen
	return db.Close()
}

// Query runs req.Extra.(Statement).SQL as a query and decodes every
// row into req.Extra as a *Result, flattening rows.Scan output into
// maps keyed by column name with []byte values normalized to string.
func (p *Port) Query(req *device.Request) error {
	stmt, ok := req.Extra.(Statement)
	if !ok {
		return device.Unsupported("dbport", "query without a Statement")
	}
	db, err := p.getConn(stmt.ID)
	if err != nil {
		return err
	}
	rows, err := db.Query(stmt.SQL, stmt.Args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return err
	}

	result := &Result{Columns: columns}
	for rows.Next() {
		raw := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return err
		}
		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			v := raw[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[col] = v
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	req.Extra = result
	req.Actual = len(result.Rows)
	return nil
}

// Modify runs req.Extra.(Statement).SQL as an INSERT/UPDATE/DELETE,
// leaving the affected row count in req.Actual.
func (p *Port) Modify(req *device.Request) error {
	stmt, ok := req.Extra.(Statement)
	if !ok {
		return device.Unsupported("dbport", "modify without a Statement")
	}
	db, err := p.getConn(stmt.ID)
	if err != nil {
		return err
	}
	res, err := db.Exec(stmt.SQL, stmt.Args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	req.Actual = int(affected)
	return nil
}
