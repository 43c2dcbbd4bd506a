package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/notify-dispatch/internal/domain/model"
	"github.com/target/notify-dispatch/internal/testutil"
)

func TestInAppRepo_InsertValidation(t *testing.T) {
	repo := NewInAppRepo(nil, RepoConfig{})

	tests := []struct {
		name string
		n    *model.InAppNotification
	}{
		{name: "nil", n: nil},
		{name: "missing user", n: &model.InAppNotification{TenantID: "t"}},
		{name: "missing tenant", n: &model.InAppNotification{UserID: "u"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := repo.Insert(context.Background(), tt.n)
			require.Error(t, err)
		})
	}
}

func TestInAppRepo_Integration_InsertUnread(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		clock := NewManualClock(testutil.TestTime())
		repo := NewInAppRepo(db, RepoConfig{Clock: clock})

		out, err := repo.Insert(ctx, &model.InAppNotification{
			UserID:   "user-7",
			TenantID: "tenant-1",
			Title:    "Welcome",
			Body:     "Hi Asha",
			Metadata: json.RawMessage(`{"deep_link":"/home"}`),
		})
		require.NoError(t, err)
		assert.NotEmpty(t, out.ID)
		assert.False(t, out.IsRead)
		assert.True(t, out.CreatedAt.Equal(clock.Now()))
		assert.JSONEq(t, `{"deep_link":"/home"}`, string(out.Metadata))

		n, err := repo.CountUnread(ctx, "tenant-1", "user-7")
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		n, err = repo.CountUnread(ctx, "tenant-2", "user-7")
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})
}
