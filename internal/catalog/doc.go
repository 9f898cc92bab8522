// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package catalog loads the product catalog the shopping assistant recommends from.
//
// The source is a pipe-delimited text table. The first four non-blank rows are
// header and boilerplate; every following row with at least five non-empty
// columns becomes a Product:
//
//	| name | brand | product link | free text blob | image link |
//
// Price, description and a keyword bag are extracted from the free text blob.
// Parsing is permissive: malformed rows are dropped without error and only the
// resulting count is observable.
//
// # Key Types
//
//   - Product: one immutable catalog entry
//   - Catalog: ordered products with an id index
//   - Loader: fetches a source over HTTP(S) or from disk
//   - Watcher: reloads a local source when the file changes
package catalog
