// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guildhall Contributors

// Package guild defines the entities of the guild domain: users,
// guilds, roles, channels, and per-channel member overrides. It also
// declares the read contracts the permission resolver consumes and the
// repository interfaces the management layer implements.
//
// Entities here are treated as read-only inputs by the resolver. All
// mutation goes through the repositories in the postgres subpackage.
package guild
