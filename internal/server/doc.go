// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server provides the shopchat HTTP server.
//
// Endpoints:
//   - GET  /             - Chat page for the caller's session
//   - POST /chat         - Submit a message from the page form
//   - GET  /api/session  - Session snapshot as JSON
//   - POST /api/chat     - Submit a message, JSON in and out
//   - POST /api/claude   - Anthropic proxy endpoint
//   - POST /api/openai   - OpenAI proxy endpoint
//   - GET  /login        - Password page
//   - POST /login        - Password check, sets the auth cookie
//   - POST /logout       - Clears the auth cookie
//   - GET  /health       - Health check
//   - GET  /stats        - Server and ledger usage statistics
//
// Every route except /login and /health sits behind the password gate when
// a password is configured. Browser sessions are tracked with a cookie.
package server
