package docstore

import (
	"context"
	"log/slog"
	"sync"
)

// MemDriver keeps databases in memory for the lifetime of the driver, so data
// survives closing and reopening connections.
type MemDriver struct {
	logger *slog.Logger

	mu  sync.Mutex
	dbs map[string]*memStorage
}

func NewMemDriver() *MemDriver {
	return &MemDriver{
		logger: slog.Default(),
		dbs:    make(map[string]*memStorage),
	}
}

func (d *MemDriver) Connect(ctx context.Context, database string) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateName(ErrInvalidDatabase, database); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	st := d.dbs[database]
	if st == nil {
		st = newMemStorage()
		d.dbs[database] = st
	}
	return newConn(database, st, d.logger, func() {}), nil
}

// Drop forgets the database.
func (d *MemDriver) Drop(database string) {
	d.mu.Lock()
	st := d.dbs[database]
	delete(d.dbs, database)
	d.mu.Unlock()
	if st != nil {
		st.Close()
	}
}
