package docstore

import "context"

// CollectionStats describes the space used by one collection.
type CollectionStats struct {
	Documents int
	DataSize  int // bytes in use by keys and encoded documents
	DataAlloc int // bytes allocated by the store
}

// StatsConn is implemented by connections that can report storage usage.
type StatsConn interface {
	Stats(ctx context.Context, collection string) (CollectionStats, error)
}

var _ StatsConn = (*storeConn)(nil)

// Stats returns zero stats for a collection that does not exist.
func (c *storeConn) Stats(ctx context.Context, collection string) (CollectionStats, error) {
	if err := c.check(ctx, collection); err != nil {
		return CollectionStats{}, err
	}
	tx, err := c.st.BeginTx(false)
	if err != nil {
		return CollectionStats{}, err
	}
	defer tx.Rollback()
	b := tx.Bucket(collection)
	if b == nil {
		return CollectionStats{}, nil
	}
	bs := b.Stats()
	return CollectionStats{
		Documents: bs.Keys,
		DataSize:  bs.InUse,
		DataAlloc: bs.Alloc,
	}, nil
}
