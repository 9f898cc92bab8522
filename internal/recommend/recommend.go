// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package recommend extracts product-card tags from assistant replies and
// resolves them against the catalog.
//
// The tag grammar is shared with the prompt builder through FormatTag so the
// instruction the model receives and the pattern the parser scans for cannot
// drift apart.
package recommend

import (
	"fmt"
	"regexp"

	"github.com/jeranaias/shopchat/internal/catalog"
)

var tagPattern = regexp.MustCompile(`<product-card data-id="([^"]+)"></product-card>`)

// Lookup resolves a product id. *catalog.Catalog satisfies it.
type Lookup interface {
	Lookup(id string) (catalog.Product, bool)
}

// Result is the parsed form of one assistant reply.
type Result struct {
	// DisplayText is the text to render. It is empty when Products is not:
	// prose around resolved tags is discarded. Otherwise it is the raw reply.
	DisplayText string

	// Products are the resolved products in order of first tag occurrence.
	Products []catalog.Product

	// TagIDs lists every tag id found, in order, including unmatched ones.
	TagIDs []string
}

// HasProducts reports whether any tag resolved.
func (r Result) HasProducts() bool {
	return len(r.Products) > 0
}

// FormatTag renders the inline tag that references a product.
func FormatTag(id string) string {
	return fmt.Sprintf(`<product-card data-id="%s"></product-card>`, id)
}

// Parse scans raw for product-card tags left to right. Unknown ids are
// dropped silently and repeated ids keep only their first position.
func Parse(raw string, lookup Lookup) Result {
	res := Result{}
	seen := make(map[string]bool)

	for _, m := range tagPattern.FindAllStringSubmatch(raw, -1) {
		id := m[1]
		res.TagIDs = append(res.TagIDs, id)
		if seen[id] || lookup == nil {
			continue
		}
		seen[id] = true
		if p, ok := lookup.Lookup(id); ok {
			res.Products = append(res.Products, p)
		}
	}

	if len(res.Products) == 0 {
		res.DisplayText = raw
	}
	return res
}
