// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package catalog

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// HeaderRows is the number of leading non-blank rows that are skipped.
	HeaderRows = 4

	// MinColumns is the minimum number of non-empty columns for a data row.
	MinColumns = 5

	// MaxBlobKeywords caps the words drawn from the free text blob.
	MaxBlobKeywords = 10

	columnSep = "|"
)

var (
	pricePattern = regexp.MustCompile(`Price:\s*(£[0-9.]+\s*-\s*£?[0-9.]+|£[0-9.]+)`)
	aboutPattern = regexp.MustCompile(`(?s)About this item(.*?)(?:Product description|Product details|$)`)

	// Sub-field patterns contributing keywords, in extraction order.
	subFieldPatterns = []*regexp.Regexp{
		regexp.MustCompile(`Material composition([^|]+)`),
		regexp.MustCompile(`Care instructions([^|]+)`),
		regexp.MustCompile(`Sole material([^|]+)`),
		regexp.MustCompile(`Outer material([^|]+)`),
	}

	// stopwords are compared case-insensitively.
	stopwords = map[string]bool{
		"composition": true,
		"with":        true,
		"and":         true,
		"the":         true,
	}

	// boilerplate words are compared exactly.
	boilerplate = map[string]bool{
		"Price":   true,
		"Product": true,
		"details": true,
		"About":   true,
		"this":    true,
		"item":    true,
	}
)

// ============================================================================
// PARSING
// ============================================================================

// Parse converts raw catalog text into products in row order. Blank rows are
// ignored, the first HeaderRows remaining rows are skipped, and rows with
// fewer than MinColumns non-empty columns are dropped silently.
func Parse(text string) []Product {
	var rows []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			rows = append(rows, line)
		}
	}
	if len(rows) <= HeaderRows {
		return nil
	}

	products := make([]Product, 0, len(rows)-HeaderRows)
	for _, row := range rows[HeaderRows:] {
		cols := splitColumns(row)
		if len(cols) < MinColumns {
			continue
		}
		blob := norm.NFC.String(cols[3])
		products = append(products, Product{
			ID:          productID(len(products) + 1),
			Name:        cols[0],
			Brand:       cols[1],
			ProductLink: cols[2],
			ImageLink:   cols[4],
			Price:       extractPrice(blob),
			Description: extractDescription(blob),
			Keywords:    extractKeywords(blob),
		})
	}
	return products
}

// splitColumns splits a row on the column separator and keeps the
// non-empty trimmed fields.
func splitColumns(row string) []string {
	parts := strings.Split(row, columnSep)
	cols := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			cols = append(cols, p)
		}
	}
	return cols
}

func extractPrice(blob string) string {
	m := pricePattern.FindStringSubmatch(blob)
	if m == nil {
		return ""
	}
	return m[1]
}

func extractDescription(blob string) string {
	m := aboutPattern.FindStringSubmatch(blob)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// extractKeywords builds the keyword bag: sub-field words first, then up to
// MaxBlobKeywords long words from the whole blob. Order of first occurrence
// is kept.
func extractKeywords(blob string) []string {
	var kw keywordSet

	for _, re := range subFieldPatterns {
		m := re.FindStringSubmatch(blob)
		if m == nil {
			continue
		}
		for _, w := range strings.Fields(m[1]) {
			if utf8.RuneCountInString(w) > 3 && !stopwords[strings.ToLower(w)] {
				kw.add(w)
			}
		}
	}

	taken := 0
	for _, w := range strings.Fields(blob) {
		if taken == MaxBlobKeywords {
			break
		}
		if utf8.RuneCountInString(w) > 4 && !boilerplate[w] {
			kw.add(w)
			taken++
		}
	}

	return kw.words
}

type keywordSet struct {
	words []string
	seen  map[string]bool
}

func (k *keywordSet) add(w string) {
	if k.seen == nil {
		k.seen = make(map[string]bool)
	}
	if k.seen[w] {
		return
	}
	k.seen[w] = true
	k.words = append(k.words, w)
}
