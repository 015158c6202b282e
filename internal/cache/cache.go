// Package cache holds recently extracted metadata so repeated lookups of the
// same URL skip the extraction engine.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Entry is a cached value and how long ago it was stored.
type Entry[V any] struct {
	Value V
	Age   time.Duration
}

type Cache[V any] interface {
	Get(key string) (Entry[V], bool)
	Put(key string, value V)
}

type item[V any] struct {
	value  V
	stored time.Time
}

// LRU is a size-bounded cache whose entries expire after a TTL.
type LRU[V any] struct {
	lru *expirable.LRU[string, item[V]]
	now func() time.Time
}

func NewLRU[V any](size int, ttl time.Duration) *LRU[V] {
	return &LRU[V]{
		lru: expirable.NewLRU[string, item[V]](size, nil, ttl),
		now: time.Now,
	}
}

func (c *LRU[V]) Get(key string) (Entry[V], bool) {
	it, ok := c.lru.Get(key)
	if !ok {
		return Entry[V]{}, false
	}
	return Entry[V]{Value: it.value, Age: c.now().Sub(it.stored)}, true
}

func (c *LRU[V]) Put(key string, value V) {
	c.lru.Add(key, item[V]{value: value, stored: c.now()})
}

func (c *LRU[V]) Len() int {
	return c.lru.Len()
}

// Key derives a cache key from a URL and optional qualifiers.
func Key(url string, parts ...string) string {
	h := sha256.New()
	h.Write([]byte(strings.TrimSpace(url)))
	for _, p := range parts {
		h.Write([]byte{0})
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}
