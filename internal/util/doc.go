// Copyright (c) 2025 The Monsoon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util holds text layout and file helpers shared by the monsoon
// packages.
//
// TruncateRunes and TruncateWidth shorten text without splitting runes or
// wide cells. PadRight and Columns align help and listing output:
//
//	text := util.Columns([][]string{{"tp here <player>", "Teleport here"}}, 2)
//
// AtomicWriteFile replaces a file through a synced temp file so readers
// never see a partial write.
package util
