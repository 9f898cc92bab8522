// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package catalog

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catalogHeader = `Footwear catalog export
| Name | Brand | Link | Details | Image |
|------|-------|------|---------|-------|
Exported 2024-11-02

`

const trailRunnerRow = "| Trail Runner | Acme | https://www.amazon.co.uk/dp/B01 | " +
	"Price: £49.99 About this item Lightweight running shoe Product description Great shoe " +
	"Material composition Mesh upper with rubber | https://img.example/1.jpg |"

// =============================================================================
// PARSE TESTS
// =============================================================================

func TestParse_SingleRow(t *testing.T) {
	products := Parse(catalogHeader + trailRunnerRow + "\n")
	require.Len(t, products, 1)

	want := Product{
		ID:          "product_1",
		Name:        "Trail Runner",
		Brand:       "Acme",
		Description: "Lightweight running shoe",
		Price:       "£49.99",
		ProductLink: "https://www.amazon.co.uk/dp/B01",
		ImageLink:   "https://img.example/1.jpg",
		Keywords: []string{
			"Mesh", "upper", "rubber",
			"Price:", "£49.99", "Lightweight", "running", "description",
			"Great", "Material", "composition",
		},
	}
	if diff := cmp.Diff(want, products[0]); diff != "" {
		t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_RowCount(t *testing.T) {
	text := catalogHeader + strings.Join([]string{
		"| A | B | link-a | blob | img |",
		"| too | few | columns | here |",
		"|  | C | D | link-c | blob | img |", // empty field discarded, still 5
		"| | | | | |",
		"| E | F | link-e | blob | img |",
	}, "\n")

	products := Parse(text)
	require.Len(t, products, 3)

	for i, p := range products {
		assert.Equal(t, fmt.Sprintf("product_%d", i+1), p.ID)
		assert.NotEmpty(t, p.Name)
		assert.NotEmpty(t, p.Brand)
	}
	assert.Equal(t, "C", products[1].Name)
	assert.Equal(t, "D", products[1].Brand)
	assert.Equal(t, "link-c", products[1].ProductLink)
}

func TestParse_HeaderOnly(t *testing.T) {
	assert.Empty(t, Parse(catalogHeader))
	assert.Empty(t, Parse(""))
}

func TestParse_BlankLinesIgnoredBeforeSkip(t *testing.T) {
	text := "\n\nh1\n\nh2\nh3\n  \nh4\n" + trailRunnerRow
	require.Len(t, Parse(text), 1)
}

func TestExtractPrice(t *testing.T) {
	tests := []struct {
		blob string
		want string
	}{
		{"Price: £12.99 and more", "£12.99"},
		{"Price: £10.00 - £12.50", "£10.00 - £12.50"},
		{"Price:£10 - 12", "£10 - 12"},
		{"Cost: £10", ""},
		{"Price: $10", ""},
	}
	for _, tt := range tests {
		if got := extractPrice(tt.blob); got != tt.want {
			t.Errorf("extractPrice(%q) = %q, want %q", tt.blob, got, tt.want)
		}
	}
}

func TestExtractDescription(t *testing.T) {
	tests := []struct {
		blob string
		want string
	}{
		{"About this item soft lining Product details size 9", "soft lining"},
		{"About this item soft lining Product description x Product details y", "soft lining"},
		{"About this item runs to the end", "runs to the end"},
		{"No marker here", ""},
	}
	for _, tt := range tests {
		if got := extractDescription(tt.blob); got != tt.want {
			t.Errorf("extractDescription(%q) = %q, want %q", tt.blob, got, tt.want)
		}
	}
}

func TestExtractKeywords_LimitsBlobWords(t *testing.T) {
	blob := "alpha1 bravo2 charlie delta4 echo55 foxtrot golf77 hotel8 india99 juliet kilo11 lima12"
	got := extractKeywords(blob)
	assert.Len(t, got, MaxBlobKeywords)
	assert.Equal(t, "alpha1", got[0])
	assert.NotContains(t, got, "kilo11")
}

func TestExtractKeywords_StopwordsAndDuplicates(t *testing.T) {
	got := extractKeywords("Sole material Rubber with THE Rubber")
	assert.Equal(t, []string{"Rubber", "material"}, got)
}

// =============================================================================
// CATALOG TESTS
// =============================================================================

func TestCatalog_Lookup(t *testing.T) {
	cat := New(Parse(catalogHeader + trailRunnerRow))

	p, ok := cat.Lookup("product_1")
	require.True(t, ok)
	assert.Equal(t, "Trail Runner", p.Name)

	_, ok = cat.Lookup("product_2")
	assert.False(t, ok)
	assert.Equal(t, 1, cat.Len())
	assert.False(t, cat.Empty())
}

func TestCatalog_Nil(t *testing.T) {
	var cat *Catalog
	assert.True(t, cat.Empty())
	assert.Nil(t, cat.Products())
	_, ok := cat.Lookup("product_1")
	assert.False(t, ok)
}

func TestCatalog_ProductsIsCopy(t *testing.T) {
	cat := New(Parse(catalogHeader + trailRunnerRow))
	ps := cat.Products()
	ps[0].Name = "changed"

	p, _ := cat.Lookup("product_1")
	assert.Equal(t, "Trail Runner", p.Name)
}
