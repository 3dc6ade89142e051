// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guildhall Contributors

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guildhall/guildhall/internal/guild"
	"github.com/guildhall/guildhall/internal/perms/flag"
	"github.com/guildhall/guildhall/pkg/errutil"
)

func TestMemberRepository_OverrideFor(t *testing.T) {
	userID := ulid.Make()
	channelID := ulid.Make()

	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		want      guild.Override
		wantErr   bool
	}{
		{
			name: "override present",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows([]string{"permissions"}).
					AddRow(int64(uint32(flag.TextSendMessages | flag.TextViewChannel)))
				mock.ExpectQuery(`SELECT permissions FROM channel_members`).
					WithArgs(userID.String(), channelID.String()).
					WillReturnRows(rows)
			},
			want: guild.Override{
				Mask:    uint32(flag.TextSendMessages | flag.TextViewChannel),
				Present: true,
			},
		},
		{
			name: "zero mask is still present",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows([]string{"permissions"}).AddRow(int64(0))
				mock.ExpectQuery(`SELECT permissions FROM channel_members`).
					WithArgs(userID.String(), channelID.String()).
					WillReturnRows(rows)
			},
			want: guild.Override{Mask: 0, Present: true},
		},
		{
			name: "no row means absent, not an error",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT permissions FROM channel_members`).
					WithArgs(userID.String(), channelID.String()).
					WillReturnError(pgx.ErrNoRows)
			},
			want: guild.Override{},
		},
		{
			name: "database error",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT permissions FROM channel_members`).
					WithArgs(userID.String(), channelID.String()).
					WillReturnError(errors.New("connection refused"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err, "failed to create mock")
			defer mock.Close()

			tt.setupMock(mock)

			repo := NewMemberRepository(mock)
			got, err := repo.OverrideFor(context.Background(), userID, channelID)

			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}

			assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		})
	}
}

func TestMemberRepository_SetOverride(t *testing.T) {
	m := &guild.Member{
		UserID:      ulid.Make(),
		ChannelID:   ulid.Make(),
		Permissions: uint32(flag.TextSendMessages),
		CreatedAt:   time.Now().UTC(),
	}

	t.Run("upsert notifies channel scope", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO channel_members`).
			WithArgs(m.UserID.String(), m.ChannelID.String(), int64(m.Permissions), m.CreatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec(`SELECT pg_notify\('perm_changed', \$1\)`).
			WithArgs("channel:" + m.ChannelID.String()).
			WillReturnResult(pgxmock.NewResult("SELECT", 1))
		mock.ExpectCommit()

		repo := NewMemberRepository(mock)
		require.NoError(t, repo.SetOverride(context.Background(), m))
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})

	t.Run("unknown channel maps foreign key violation", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO channel_members`).
			WithArgs(m.UserID.String(), m.ChannelID.String(), int64(m.Permissions), m.CreatedAt).
			WillReturnError(fkViolation())
		mock.ExpectRollback()

		repo := NewMemberRepository(mock)
		err = repo.SetOverride(context.Background(), m)
		require.Error(t, err)
		assert.ErrorIs(t, err, guild.ErrNotFound)
		errutil.AssertErrorCode(t, err, "CHANNEL_NOT_FOUND")
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})

	t.Run("commit failure surfaces", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO channel_members`).
			WithArgs(m.UserID.String(), m.ChannelID.String(), int64(m.Permissions), m.CreatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec(`SELECT pg_notify\('perm_changed', \$1\)`).
			WithArgs("channel:" + m.ChannelID.String()).
			WillReturnResult(pgxmock.NewResult("SELECT", 1))
		mock.ExpectCommit().WillReturnError(errors.New("commit failed"))

		repo := NewMemberRepository(mock)
		err = repo.SetOverride(context.Background(), m)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "commit failed")
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})
}

func TestMemberRepository_ClearOverride(t *testing.T) {
	userID := ulid.Make()
	channelID := ulid.Make()

	t.Run("clear notifies channel scope", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM channel_members`).
			WithArgs(userID.String(), channelID.String()).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))
		mock.ExpectExec(`SELECT pg_notify\('perm_changed', \$1\)`).
			WithArgs("channel:" + channelID.String()).
			WillReturnResult(pgxmock.NewResult("SELECT", 1))
		mock.ExpectCommit()

		repo := NewMemberRepository(mock)
		require.NoError(t, repo.ClearOverride(context.Background(), userID, channelID))
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})

	t.Run("clearing an absent row is a no-op", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM channel_members`).
			WithArgs(userID.String(), channelID.String()).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))
		mock.ExpectExec(`SELECT pg_notify\('perm_changed', \$1\)`).
			WithArgs("channel:" + channelID.String()).
			WillReturnResult(pgxmock.NewResult("SELECT", 1))
		mock.ExpectCommit()

		repo := NewMemberRepository(mock)
		require.NoError(t, repo.ClearOverride(context.Background(), userID, channelID))
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})
}

func TestMemberRepository_ListByChannel(t *testing.T) {
	channelID := ulid.Make()
	created := time.Now().UTC()

	t.Run("members returned", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		userA := ulid.Make()
		userB := ulid.Make()
		rows := pgxmock.NewRows([]string{"user_id", "channel_id", "permissions", "created_at"}).
			AddRow(userA.String(), channelID.String(), int64(uint32(flag.TextViewChannel)), created).
			AddRow(userB.String(), channelID.String(), int64(0), created)
		mock.ExpectQuery(`FROM channel_members WHERE channel_id`).
			WithArgs(channelID.String()).
			WillReturnRows(rows)

		repo := NewMemberRepository(mock)
		got, err := repo.ListByChannel(context.Background(), channelID)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, userA, got[0].UserID)
		assert.Equal(t, uint32(flag.TextViewChannel), got[0].Permissions)
		assert.Equal(t, uint32(0), got[1].Permissions)
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})

	t.Run("scan error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		rows := pgxmock.NewRows([]string{"user_id"}).AddRow("only-one-column")
		mock.ExpectQuery(`FROM channel_members WHERE channel_id`).
			WithArgs(channelID.String()).
			WillReturnRows(rows)

		repo := NewMemberRepository(mock)
		_, err = repo.ListByChannel(context.Background(), channelID)
		require.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})
}

// Test that the interfaces are correctly implemented
func TestMemberRepositoryInterface(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock")
	defer mock.Close()

	var _ guild.MemberRepository = NewMemberRepository(mock)
	var _ guild.OverrideSource = NewMemberRepository(mock)
}
