// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package prompt builds the system prompt that seeds every conversation:
// a role preamble, the enumerated catalog and the formatting rules the
// assistant must follow when recommending products.
package prompt

import (
	"fmt"
	"strings"

	"github.com/jeranaias/shopchat/internal/catalog"
	"github.com/jeranaias/shopchat/internal/recommend"
)

// RecommendationCount is the number of products every reply must recommend.
const RecommendationCount = 5

// DefaultPreamble opens the system prompt.
const DefaultPreamble = "You are a shopping assistant AI specializing in footwear recommendations. " +
	"Your task is to recommend products based on user queries. " +
	"You have access to a catalog of shoes and footwear products. " +
	"Below is the product catalog you can recommend from:"

// Builder renders system prompts. The zero value uses DefaultPreamble.
type Builder struct {
	Preamble string
}

// Build renders the system prompt for products using the default preamble.
func Build(products []catalog.Product) string {
	return Builder{}.Build(products)
}

// Build renders the system prompt for products in catalog order.
func (b Builder) Build(products []catalog.Product) string {
	preamble := strings.TrimSpace(b.Preamble)
	if preamble == "" {
		preamble = DefaultPreamble
	}

	var sb strings.Builder
	sb.WriteString(preamble)
	sb.WriteString("\n\n")

	for i, p := range products {
		writeProduct(&sb, i+1, p)
	}

	writeInstructions(&sb)
	return sb.String()
}

func writeProduct(sb *strings.Builder, n int, p catalog.Product) {
	fmt.Fprintf(sb, "Product %d (ID: %s):\n", n, p.ID)
	fmt.Fprintf(sb, "Name: %s\n", p.Name)
	fmt.Fprintf(sb, "Brand: %s\n", p.Brand)
	fmt.Fprintf(sb, "Description: %s\n", orDefault(p.Description, "Not provided"))
	fmt.Fprintf(sb, "Price: %s\n", orDefault(p.Price, "Not specified"))
	if len(p.Keywords) > 0 {
		fmt.Fprintf(sb, "Keywords: %s\n", strings.Join(p.Keywords, ", "))
	}
	sb.WriteString("\n")
}

func writeInstructions(sb *strings.Builder) {
	rules := []string{
		"When the user asks about products, recommend the most relevant ones based on their query.",
		"Consider the user's preferences for brand, style, price range, and any specific features they mention.",
		"For each recommendation, explain why it matches their needs.",
		"Highlight key features and benefits of the recommended products.",
		"For each recommended product, include a product card tag in this format: " +
			recommend.FormatTag("PRODUCT_ID") + "\n" +
			"   where PRODUCT_ID is the ID of the product (e.g., product_1, product_2, etc.).",
		fmt.Sprintf("Always recommend exactly %d products in each response. "+
			"If there are fewer relevant products, include other similar ones to reach %d total recommendations.",
			RecommendationCount, RecommendationCount),
		"If you cannot find a suitable product, suggest what information the user could provide to help you find better matches.",
		"When presenting the recommendations, always order them by price from lowest to highest, making budget-friendly options more prominent.",
	}

	sb.WriteString("Instructions:\n")
	for i, r := range rules {
		fmt.Fprintf(sb, "%d. %s\n", i+1, r)
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
