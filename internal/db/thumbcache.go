package db

import (
	"database/sql"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ThumbnailCache serves thumbnail JPEGs from an in-memory LRU cache,
// falling back to the catalog on a miss. Thumbnails are immutable once
// written, so cached entries never need invalidation.
type ThumbnailCache struct {
	db    *sql.DB
	cache *lru.Cache[int64, []byte]
}

// NewThumbnailCache creates a cache with room for size thumbnails.
func NewThumbnailCache(db *sql.DB, size int) (*ThumbnailCache, error) {
	cache, err := lru.New[int64, []byte](size)
	if err != nil {
		return nil, err
	}
	return &ThumbnailCache{db: db, cache: cache}, nil
}

// Get returns the thumbnail for an image, caching it on first access.
func (c *ThumbnailCache) Get(imageID int64) ([]byte, error) {
	if data, ok := c.cache.Get(imageID); ok {
		return data, nil
	}
	data, err := GetThumbnail(c.db, imageID)
	if err != nil {
		return nil, err
	}
	c.cache.Add(imageID, data)
	return data, nil
}

// Len reports the number of cached thumbnails.
func (c *ThumbnailCache) Len() int {
	return c.cache.Len()
}
