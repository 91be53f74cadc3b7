package docstore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.etcd.io/bbolt"
)

type BoltOptions struct {
	// Timeout bounds waiting for the file lock held by another process.
	Timeout   time.Duration
	IsTesting bool
	MmapSize  int
	FileMode  os.FileMode
	Logger    *slog.Logger
}

// BoltDriver keeps each database in <dir>/<database>.db. Connections to the
// same database within a process share one Bolt handle, which is closed when
// the last connection closes.
type BoltDriver struct {
	dir    string
	opt    BoltOptions
	logger *slog.Logger

	mu   sync.Mutex
	open map[string]*boltHandle
}

type boltHandle struct {
	st   storage
	path string
	refs int
}

func NewBoltDriver(dir string, opt BoltOptions) *BoltDriver {
	logger := opt.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &BoltDriver{
		dir:    dir,
		opt:    opt,
		logger: logger,
		open:   make(map[string]*boltHandle),
	}
}

func (d *BoltDriver) Path(database string) string {
	return filepath.Join(d.dir, database+".db")
}

func (d *BoltDriver) Connect(ctx context.Context, database string) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateName(ErrInvalidDatabase, database); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	h := d.open[database]
	if h == nil {
		path := d.Path(database)
		bdb, err := bbolt.Open(path, d.fileMode(), d.boltOptions())
		if err != nil {
			return nil, fmt.Errorf("docstore: opening %s: %w", path, err)
		}
		h = &boltHandle{st: newBoltStorage(bdb), path: path}
		d.open[database] = h
		d.logger.Debug("docstore: opened", "database", database, "path", path)
	}
	h.refs++
	return newConn(database, h.st, d.logger, func() { d.release(database) }), nil
}

func (d *BoltDriver) release(database string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h := d.open[database]
	if h == nil {
		return
	}
	h.refs--
	if h.refs > 0 {
		return
	}
	delete(d.open, database)
	if err := h.st.Close(); err != nil {
		d.logger.Error("docstore: closing", "database", database, "path", h.path, "err", err)
		return
	}
	d.logger.Debug("docstore: closed", "database", database, "path", h.path)
}

func (d *BoltDriver) fileMode() os.FileMode {
	if d.opt.FileMode != 0 {
		return d.opt.FileMode
	}
	return 0666
}

func (d *BoltDriver) boltOptions() *bbolt.Options {
	bopt := new(bbolt.Options)
	*bopt = *bbolt.DefaultOptions
	bopt.Timeout = 10 * time.Second
	if d.opt.Timeout != 0 {
		bopt.Timeout = d.opt.Timeout
	}
	if d.opt.IsTesting {
		bopt.NoSync = true
		bopt.NoFreelistSync = true
		bopt.InitialMmapSize = 1024 * 1024 * 5
	} else {
		bopt.InitialMmapSize = 1024 * 1024 * 64
		bopt.FreelistType = bbolt.FreelistMapType
	}
	if d.opt.MmapSize != 0 {
		bopt.InitialMmapSize = d.opt.MmapSize
	}
	return bopt
}
