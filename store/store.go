// Package store provides a threadsafe, type-aware in-memory cache
// with per-entry TTLs. The HTTP service uses it to keep recent
// session results; nothing in here outlives the process.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/sasha-s/go-deadlock"
)

var (
	// ErrNotFound is returned when a key is absent.
	ErrNotFound = errors.New("key not found")
	// ErrExpired is returned when a key exists but its TTL has passed.
	ErrExpired = errors.New("key expired")
)

type entry struct {
	typ       reflect.Type
	value     any
	expiresAt *time.Time
}

// Cache is a threadsafe, type-aware in-memory store.
type Cache struct {
	mu   deadlock.RWMutex
	data map[string]entry
}

// NewCache constructs an empty cache.
func NewCache() *Cache {
	return &Cache{data: make(map[string]entry)}
}

// Put stores any Go value under key, capturing its concrete type.
func (c *Cache) Put(key string, value any) error {
	return c.PutWithTTL(key, value, 0)
}

// PutWithTTL stores a value that expires after ttl. A ttl of zero or
// less means the entry never expires.
func (c *Cache) PutWithTTL(key string, value any, ttl time.Duration) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}
	if value == nil {
		return errors.New("value cannot be nil")
	}

	var expiresAt *time.Time
	if ttl > 0 {
		exp := time.Now().Add(ttl)
		expiresAt = &exp
	}

	c.mu.Lock()
	c.data[key] = entry{typ: reflect.TypeOf(value), value: value, expiresAt: expiresAt}
	c.mu.Unlock()
	return nil
}

// Get retrieves a value of type T for the given key.
func Get[T any](c *Cache, key string) (T, error) {
	var zero T
	if key == "" {
		return zero, errors.New("key cannot be empty")
	}

	c.mu.RLock()
	e, ok := c.data[key]
	c.mu.RUnlock()

	if !ok {
		return zero, ErrNotFound
	}
	if e.expiresAt != nil && time.Now().After(*e.expiresAt) {
		c.Delete(key)
		return zero, ErrExpired
	}

	value, ok := e.value.(T)
	if !ok {
		return zero, fmt.Errorf("type mismatch for key %q: stored %s", key, e.typ)
	}
	return value, nil
}

// Has reports whether key exists and has not expired.
func (c *Cache) Has(key string) bool {
	c.mu.RLock()
	e, ok := c.data[key]
	c.mu.RUnlock()
	if !ok {
		return false
	}
	if e.expiresAt != nil && time.Now().After(*e.expiresAt) {
		c.Delete(key)
		return false
	}
	return true
}

// Delete removes a key. Deleting an absent key is a no-op.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	delete(c.data, key)
	c.mu.Unlock()
}

// Count returns the number of entries, including any not yet swept
// expired ones.
func (c *Cache) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// Keys returns all live keys.
func (c *Cache) Keys() []string {
	now := time.Now()
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.data))
	for key, e := range c.data {
		if e.expiresAt != nil && now.After(*e.expiresAt) {
			continue
		}
		keys = append(keys, key)
	}
	return keys
}

// Schema returns a JSON schema describing the concrete type stored
// under key.
func (c *Cache) Schema(key string) (map[string]any, error) {
	c.mu.RLock()
	e, ok := c.data[key]
	c.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	if e.expiresAt != nil && time.Now().After(*e.expiresAt) {
		c.Delete(key)
		return nil, ErrExpired
	}
	return typeToSchema(e.typ), nil
}

// SchemaOf returns a JSON schema for an arbitrary value's type,
// independent of the cache contents.
func SchemaOf(value any) map[string]any {
	return typeToSchema(reflect.TypeOf(value))
}

func typeToSchema(t reflect.Type) map[string]any {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	instance := reflect.New(t).Interface()
	reflector := jsonschema.Reflector{
		ExpandedStruct:            true,
		DoNotReference:            true,
		AllowAdditionalProperties: false,
	}
	schema := reflector.Reflect(instance)

	data, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	var schemaMap map[string]any
	if err := json.Unmarshal(data, &schemaMap); err != nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	if _, exists := schemaMap["type"]; !exists {
		schemaMap["type"] = "object"
	}
	return schemaMap
}
