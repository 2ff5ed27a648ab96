// Package store is an in-memory document store split into partitions and
// named collections. Documents are kept as JSON so callers never share
// memory with stored values.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync"
)

var ErrNoID = errors.New("store: document has no id field")

type Store struct {
	mu         sync.RWMutex
	partitions map[string]map[string]map[string][]byte
}

func New() *Store {
	return &Store{partitions: make(map[string]map[string]map[string][]byte)}
}

// DataStore is the view of a single partition.
type DataStore struct {
	store     *Store
	partition string
}

func (s *Store) WithPartitionKey(key string) *DataStore {
	return &DataStore{store: s, partition: key}
}

func (d *DataStore) Collection(name string) *Collection {
	return &Collection{store: d.store, partition: d.partition, name: name}
}

type Collection struct {
	store     *Store
	partition string
	name      string
}

// UpsertOne stores item under the value of its `store:"id"` string field.
func (c *Collection) UpsertOne(item any) error {
	id, err := documentID(item)
	if err != nil {
		return err
	}
	b, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("store: encode %s/%s: %w", c.name, id, err)
	}

	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	collections := c.store.partitions[c.partition]
	if collections == nil {
		collections = make(map[string]map[string][]byte)
		c.store.partitions[c.partition] = collections
	}
	docs := collections[c.name]
	if docs == nil {
		docs = make(map[string][]byte)
		collections[c.name] = docs
	}
	docs[id] = b
	return nil
}

// GetOne decodes the document with id into out and reports whether it exists.
func (c *Collection) GetOne(id string, out any) (bool, error) {
	c.store.mu.RLock()
	b, ok := c.store.partitions[c.partition][c.name][id]
	c.store.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return true, fmt.Errorf("store: decode %s/%s: %w", c.name, id, err)
	}
	return true, nil
}

// Count returns the number of documents in the collection.
func (c *Collection) Count() int {
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()
	return len(c.store.partitions[c.partition][c.name])
}

func documentID(item any) (string, error) {
	v := reflect.Indirect(reflect.ValueOf(item))
	if v.Kind() != reflect.Struct {
		return "", ErrNoID
	}
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Tag.Get("store") == "id" && f.Type.Kind() == reflect.String {
			if id := v.Field(i).String(); id != "" {
				return id, nil
			}
			return "", fmt.Errorf("store: empty id in %s", t.Name())
		}
	}
	return "", ErrNoID
}
