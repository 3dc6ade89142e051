// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guildhall Contributors

// Package perms implements permission resolution for guilds and channels.
//
// The flag vocabularies live in the flag subpackage; this package
// composes them into effective masks. The Resolver computes masks from
// role and override sources, and the Guard turns requirements plus
// resolved masks into audited allow/deny decisions. Every ambiguity or
// fault resolves to the empty mask, never an elevated one.
package perms
