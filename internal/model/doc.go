// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the two message logs a chat session keeps.
//
// The API-facing History is the literal conversation sent to the language
// model: a system entry first, then user and assistant turns with raw text.
// The UI-facing Transcript is what the user sees: one DisplayMessage per
// turn, where an assistant turn may carry resolved products instead of the
// raw tag markup. One successful API turn maps to exactly one UI turn, but
// notices and errors exist only in the Transcript.
//
// # Key Types
//
//   - Role: message role enumeration (system, user, assistant)
//   - ChatMessage, History: API-facing log
//   - Kind, DisplayMessage, Transcript: UI-facing log
//
// Neither log is safe for concurrent use; the owning session serialises access.
package model
