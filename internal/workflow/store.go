package workflow

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// ErrInstanceNotFound is returned when no instance exists for an id.
var ErrInstanceNotFound = errors.New("workflow: instance not found")

const (
	instancePrefix = "wf/instance/"
	historyPrefix  = "wf/history/"
)

func instanceKey(id string) []byte {
	return []byte(instancePrefix + id)
}

func eventKey(id string, seq int) []byte {
	return []byte(fmt.Sprintf("%s%s/%08d", historyPrefix, id, seq))
}

func (e *Engine) saveInstance(instance *Instance) error {
	encoded, err := json.Marshal(instance)
	if err != nil {
		return fmt.Errorf("failed to marshal instance: %w", err)
	}
	err = e.db.Update(func(txn *badger.Txn) error {
		return txn.Set(instanceKey(instance.ID), encoded)
	})
	if err != nil {
		return fmt.Errorf("failed to persist instance %s: %w", instance.ID, err)
	}
	return nil
}

func (e *Engine) loadInstance(id string) (*Instance, error) {
	var instance Instance
	err := e.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(instanceKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &instance)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrInstanceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load instance %s: %w", id, err)
	}
	return &instance, nil
}

func (e *Engine) listInstances() ([]*Instance, error) {
	var instances []*Instance
	err := e.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(instancePrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var instance Instance
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &instance)
			})
			if err != nil {
				return err
			}
			instances = append(instances, &instance)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}
	return instances, nil
}

func (e *Engine) appendEvent(id string, seq int, evt event) error {
	encoded, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	err = e.db.Update(func(txn *badger.Txn) error {
		return txn.Set(eventKey(id, seq), encoded)
	})
	if err != nil {
		return fmt.Errorf("failed to persist event %d for instance %s: %w", seq, id, err)
	}
	return nil
}

// loadHistory returns the recorded events for an instance in order. The
// sequence number is zero-padded in the key so Badger's lexicographic
// iteration matches recording order.
func (e *Engine) loadHistory(id string) ([]event, error) {
	var history []event
	err := e.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(historyPrefix + id + "/")
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var evt event
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &evt)
			})
			if err != nil {
				return err
			}
			history = append(history, evt)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load history for instance %s: %w", id, err)
	}
	return history, nil
}
