// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session keeps the chat sessions of the web server, keyed by the
// id stored in each browser's session cookie.
//
// Sessions expire after an idle timeout and are created on demand through a
// factory, so each one starts with the catalog and selection policy current
// at creation time. A session with a call in flight is never expired.
package session
