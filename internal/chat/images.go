// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"sync"

	"github.com/jeranaias/shopchat/internal/catalog"
)

// ImageCache memoizes the image URL shown for each product id so a card
// keeps the same image across re-renders. Entries are never evicted; the
// cache is bounded by the catalog size.
type ImageCache struct {
	mu   sync.Mutex
	urls map[string]string
}

// NewImageCache creates an empty cache.
func NewImageCache() *ImageCache {
	return &ImageCache{urls: make(map[string]string)}
}

// URL returns the cached image URL for p, storing p.ImageLink on first use.
func (c *ImageCache) URL(p catalog.Product) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if u, ok := c.urls[p.ID]; ok {
		return u
	}
	c.urls[p.ID] = p.ImageLink
	return p.ImageLink
}

// Len returns the number of cached entries.
func (c *ImageCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.urls)
}
