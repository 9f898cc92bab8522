// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat implements the per-session chat orchestrator.
//
// A Session owns two logs: the API-facing model.History that is sent to the
// language model on every turn, and the UI-facing model.Transcript that is
// rendered to the user. A successful turn adds a user and an assistant entry
// to both; a failed turn adds only a UI error entry, so the next submission
// retries from the same history.
//
// # State machine
//
//	Idle --Submit--> Sending --ok--> Idle
//	                         \--fail--> Error
//
// Error behaves like Idle for input; it only records that the last turn
// failed. At most one call is in flight per session: Submit while Sending
// returns OutcomeBusy without touching any state.
//
// # Collaborators
//
//   - Caller: performs the upstream call (in process via proxy.Service,
//     or remotely via HTTPCaller)
//   - router.Selector: picks backend and model, advanced only on success
//   - Recorder: optional usage sink, typically a telemetry.Ledger
package chat
