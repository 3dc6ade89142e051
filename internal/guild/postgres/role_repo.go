// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guildhall Contributors

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/guildhall/guildhall/internal/guild"
	"github.com/guildhall/guildhall/internal/perms/flag"
)

// RoleRepository implements guild.RoleRepository using PostgreSQL.
type RoleRepository struct {
	pool poolIface
}

// NewRoleRepository creates a new PostgreSQL role repository.
func NewRoleRepository(pool poolIface) *RoleRepository {
	return &RoleRepository{pool: pool}
}

// roleColumns is the shared column list for SELECT queries.
const roleColumns = `id, guild_id, name, permissions, created_at`

// scanRole scans a row into a Role. The permissions column is a raw
// 32-bit integer; reserved bits pass through unchanged.
func scanRole(row pgx.Row) (guild.Role, error) {
	var r guild.Role
	var idStr, guildStr string
	var bits int64
	err := row.Scan(&idStr, &guildStr, &r.Name, &bits, &r.CreatedAt)
	if err != nil {
		return guild.Role{}, err
	}
	if r.ID, err = ulid.Parse(idStr); err != nil {
		return guild.Role{}, oops.With("operation", "parse role id").With("id", idStr).Wrap(err)
	}
	if r.GuildID, err = ulid.Parse(guildStr); err != nil {
		return guild.Role{}, oops.With("operation", "parse role guild_id").With("guild_id", guildStr).Wrap(err)
	}
	r.Permissions = flag.GuildPermission(uint32(bits))
	return r, nil
}

// RolesForUser returns the roles a user holds in a guild.
func (r *RoleRepository) RolesForUser(ctx context.Context, userID, guildID ulid.ULID) ([]guild.Role, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT r.id, r.guild_id, r.name, r.permissions, r.created_at
		FROM roles r
		JOIN role_assignments ra ON ra.role_id = r.id
		WHERE ra.user_id = $1 AND r.guild_id = $2
	`, userID.String(), guildID.String())
	if err != nil {
		return nil, oops.Code("ROLE_QUERY_FAILED").
			With("user_id", userID.String()).
			With("guild_id", guildID.String()).
			Wrap(err)
	}
	defer rows.Close()

	var roles []guild.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, oops.Code("ROLE_SCAN_FAILED").Wrap(err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("ROLE_QUERY_FAILED").Wrap(err)
	}
	return roles, nil
}

// RoleByID retrieves a role by ID.
func (r *RoleRepository) RoleByID(ctx context.Context, id ulid.ULID) (guild.Role, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE id = $1`, id.String())
	role, err := scanRole(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return guild.Role{}, oops.Code("ROLE_NOT_FOUND").With("id", id.String()).Wrap(guild.ErrNotFound)
	}
	if err != nil {
		return guild.Role{}, oops.Code("ROLE_GET_FAILED").With("id", id.String()).Wrap(err)
	}
	return role, nil
}

// ListByGuild returns all roles in a guild.
func (r *RoleRepository) ListByGuild(ctx context.Context, guildID ulid.ULID) ([]guild.Role, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE guild_id = $1 ORDER BY name`, guildID.String())
	if err != nil {
		return nil, oops.Code("ROLE_QUERY_FAILED").With("guild_id", guildID.String()).Wrap(err)
	}
	defer rows.Close()

	var roles []guild.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, oops.Code("ROLE_SCAN_FAILED").Wrap(err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("ROLE_QUERY_FAILED").Wrap(err)
	}
	return roles, nil
}

// Create persists a new role.
// Callers must validate the role before calling this method.
func (r *RoleRepository) Create(ctx context.Context, role *guild.Role) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO roles (id, guild_id, name, permissions, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, role.ID.String(), role.GuildID.String(), role.Name, int64(uint32(role.Permissions)), role.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return oops.Code("GUILD_NOT_FOUND").With("guild_id", role.GuildID.String()).Wrap(guild.ErrNotFound)
		}
		return oops.Code("ROLE_CREATE_FAILED").With("id", role.ID.String()).Wrap(err)
	}
	return nil
}

// Update modifies a role's name and mask. GuildID is immutable: a role
// never moves between guilds.
func (r *RoleRepository) Update(ctx context.Context, role *guild.Role) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return oops.Code("ROLE_UPDATE_FAILED").With("id", role.ID.String()).Wrap(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	result, err := tx.Exec(ctx, `
		UPDATE roles SET name = $2, permissions = $3 WHERE id = $1
	`, role.ID.String(), role.Name, int64(uint32(role.Permissions)))
	if err != nil {
		return oops.Code("ROLE_UPDATE_FAILED").With("id", role.ID.String()).Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ROLE_NOT_FOUND").With("id", role.ID.String()).Wrap(guild.ErrNotFound)
	}

	if err := notify(ctx, tx, "guild:"+role.GuildID.String()); err != nil {
		return oops.Code("ROLE_UPDATE_FAILED").With("id", role.ID.String()).Wrap(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return oops.Code("ROLE_UPDATE_FAILED").With("id", role.ID.String()).With("operation", "commit").Wrap(err)
	}
	return nil
}

// Delete removes a role. Assignments cascade in the schema.
func (r *RoleRepository) Delete(ctx context.Context, id ulid.ULID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return oops.Code("ROLE_DELETE_FAILED").With("id", id.String()).Wrap(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	var guildStr string
	err = tx.QueryRow(ctx, `DELETE FROM roles WHERE id = $1 RETURNING guild_id`, id.String()).Scan(&guildStr)
	if errors.Is(err, pgx.ErrNoRows) {
		return oops.Code("ROLE_NOT_FOUND").With("id", id.String()).Wrap(guild.ErrNotFound)
	}
	if err != nil {
		return oops.Code("ROLE_DELETE_FAILED").With("id", id.String()).Wrap(err)
	}

	if err := notify(ctx, tx, "guild:"+guildStr); err != nil {
		return oops.Code("ROLE_DELETE_FAILED").With("id", id.String()).Wrap(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return oops.Code("ROLE_DELETE_FAILED").With("id", id.String()).With("operation", "commit").Wrap(err)
	}
	return nil
}

// Assign grants a role to a user. Assigning an already-held role is a
// no-op.
func (r *RoleRepository) Assign(ctx context.Context, userID, roleID ulid.ULID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return oops.Code("ROLE_ASSIGN_FAILED").With("role_id", roleID.String()).Wrap(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	_, err = tx.Exec(ctx, `
		INSERT INTO role_assignments (user_id, role_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, role_id) DO NOTHING
	`, userID.String(), roleID.String())
	if err != nil {
		if isForeignKeyViolation(err) {
			return oops.Code("ROLE_NOT_FOUND").
				With("user_id", userID.String()).
				With("role_id", roleID.String()).
				Wrap(guild.ErrNotFound)
		}
		return oops.Code("ROLE_ASSIGN_FAILED").
			With("user_id", userID.String()).
			With("role_id", roleID.String()).
			Wrap(err)
	}

	if err := notify(ctx, tx, "user:"+userID.String()); err != nil {
		return oops.Code("ROLE_ASSIGN_FAILED").With("role_id", roleID.String()).Wrap(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return oops.Code("ROLE_ASSIGN_FAILED").With("role_id", roleID.String()).With("operation", "commit").Wrap(err)
	}
	return nil
}

// Remove revokes a role from a user. Removing an unheld role is a
// no-op: the effective mask is unchanged either way.
func (r *RoleRepository) Remove(ctx context.Context, userID, roleID ulid.ULID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return oops.Code("ROLE_REMOVE_FAILED").With("role_id", roleID.String()).Wrap(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	_, err = tx.Exec(ctx, `
		DELETE FROM role_assignments WHERE user_id = $1 AND role_id = $2
	`, userID.String(), roleID.String())
	if err != nil {
		return oops.Code("ROLE_REMOVE_FAILED").
			With("user_id", userID.String()).
			With("role_id", roleID.String()).
			Wrap(err)
	}

	if err := notify(ctx, tx, "user:"+userID.String()); err != nil {
		return oops.Code("ROLE_REMOVE_FAILED").With("role_id", roleID.String()).Wrap(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return oops.Code("ROLE_REMOVE_FAILED").With("role_id", roleID.String()).With("operation", "commit").Wrap(err)
	}
	return nil
}
