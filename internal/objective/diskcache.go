package objective

import (
	"encoding/json"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
)

// BadgerCache persists raw objective vectors across runs, so repeated studies
// over the same domain skip forward-model calls for layouts already seen.
type BadgerCache struct {
	db *badger.DB
}

func OpenBadgerCache(dir string) (*BadgerCache, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening evaluation cache at %s: %w", dir, err)
	}
	return &BadgerCache{db: db}, nil
}

func (c *BadgerCache) Get(key string) ([]float64, bool) {
	var vals []float64
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(buf []byte) error {
			return json.Unmarshal(buf, &vals)
		})
	})
	if err != nil {
		return nil, false
	}
	return vals, true
}

func (c *BadgerCache) Put(key string, values []float64) {
	buf, err := json.Marshal(values)
	if err != nil {
		return
	}
	_ = c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), buf)
	})
}

func (c *BadgerCache) Close() error {
	return c.db.Close()
}
