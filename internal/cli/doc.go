// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the shopchat command line.
//
// Commands:
//
//	shopchat serve      Run the web chat server
//	shopchat chat       Chat in the terminal, in-process or against a server
//	shopchat catalog    Parse a catalog and list its products
//	shopchat prompt     Print the system prompt built from a catalog
//	shopchat version    Print version information
//
// Every command except version reads the config file given by --config
// (default ~/.shopchat/config.toml), a .env file in the working directory
// and the environment, in that order of increasing precedence.
package cli
