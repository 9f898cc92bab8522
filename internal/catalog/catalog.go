// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package catalog

import "fmt"

// Product is a single catalog entry. Products are immutable after load;
// callers must treat Keywords as read-only.
type Product struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Brand       string   `json:"brand"`
	Description string   `json:"description"`
	Price       string   `json:"price"` // free text, possibly a range
	ProductLink string   `json:"productLink"`
	ImageLink   string   `json:"imageLink"`
	Keywords    []string `json:"keywords"`
}

// productID returns the id for the n-th accepted row (1-based).
func productID(n int) string {
	return fmt.Sprintf("product_%d", n)
}

// Catalog is an ordered, read-only set of products indexed by id.
// A nil *Catalog behaves as an empty catalog.
type Catalog struct {
	products []Product
	index    map[string]int
}

// New builds a Catalog from products in their load order.
// When ids repeat, the first product keeps the id.
func New(products []Product) *Catalog {
	c := &Catalog{
		products: make([]Product, len(products)),
		index:    make(map[string]int, len(products)),
	}
	copy(c.products, products)
	for i, p := range c.products {
		if _, dup := c.index[p.ID]; !dup {
			c.index[p.ID] = i
		}
	}
	return c
}

// Lookup returns the product with the given id.
func (c *Catalog) Lookup(id string) (Product, bool) {
	if c == nil {
		return Product{}, false
	}
	i, ok := c.index[id]
	if !ok {
		return Product{}, false
	}
	return c.products[i], true
}

// Products returns the products in load order.
func (c *Catalog) Products() []Product {
	if c == nil {
		return nil
	}
	out := make([]Product, len(c.products))
	copy(out, c.products)
	return out
}

// Len returns the number of products.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.products)
}

// Empty reports whether the catalog has no products.
func (c *Catalog) Empty() bool {
	return c.Len() == 0
}
