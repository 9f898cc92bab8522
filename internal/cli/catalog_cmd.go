// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/jeranaias/shopchat/internal/catalog"
	"github.com/jeranaias/shopchat/internal/ui/term"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
)

func newCatalogCmd(a *app) *cobra.Command {
	var (
		source     string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Parse a catalog and list its products",
		Example: `  shopchat catalog
  shopchat catalog --catalog productData.md --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, src, err := loadCatalog(cmd.Context(), a.cfg, source, a.logger)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(cat.Products())
			}
			printCatalog(out, src, cat, term.Width(nil))
			return nil
		},
	}

	cmd.Flags().StringVar(&source, "catalog", "", "catalog path or URL (overrides config)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print products as JSON")
	return cmd
}

func printCatalog(w io.Writer, source string, cat *catalog.Catalog, width int) {
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%d products from %s", cat.Len(), source)))
	for _, p := range cat.Products() {
		price := p.Price
		if price == "" {
			price = "-"
		}
		fmt.Fprintf(w, "%-12s %s  %s\n", p.ID, term.Truncate(p.Name, width-30), price)
		if p.Brand != "" {
			fmt.Fprintln(w, dimStyle.Render(strings.Repeat(" ", 13)+p.Brand))
		}
	}
}

func newPromptCmd(a *app) *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "prompt",
		Short: "Print the system prompt built from a catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, _, err := loadCatalog(cmd.Context(), a.cfg, source, a.logger)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), promptBuilder(a.cfg).Build(cat.Products()))
			return nil
		},
	}

	cmd.Flags().StringVar(&source, "catalog", "", "catalog path or URL (overrides config)")
	return cmd
}
