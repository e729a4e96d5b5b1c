// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across autologout.
//
// # Key Functions
//
//   - AtomicWriteFileWithDir: Crash-safe file writing with fsync
//   - TruncateWidth, WrapWidth: Display-width aware text layout
//   - FormatDuration: Short countdown strings for the dialog
package util
