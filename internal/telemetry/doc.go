// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry persists per-call usage and cost to a SQLite ledger.
//
// Every successful language model call made by a chat session is recorded
// with its backend, model, token counts, cost and latency. The ledger is
// write-mostly; Totals aggregates it for the /stats endpoint and the CLI.
//
// # Key Types
//
//   - Usage: one recorded call
//   - Ledger: SQLite-backed store (pure Go driver, no cgo)
//   - Totals: aggregate counts and cost, overall and per backend
package telemetry
