package conversation

import (
	"context"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/insightdeck/insightdeck/internal/apperr"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open("file:convrepo?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Conversation{}, &Message{}, &GeneratedContent{}))
	return db
}

func TestGet_ScopedToOwner(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()

	c, err := repo.Create(ctx, "owner", "hiring charts", nil)
	require.NoError(t, err)

	got, err := repo.Get(ctx, "owner", c.ID)
	require.NoError(t, err)
	require.Equal(t, c.ID, got.ID)

	_, err = repo.Get(ctx, "someone-else", c.ID)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = repo.Get(ctx, "owner", "no-such-id")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestMergeContext_OverlayWins(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()

	c, err := repo.Create(ctx, "u1", "t", map[string]any{"region": "Dubai", "domain": "hiring"})
	require.NoError(t, err)

	require.NoError(t, repo.MergeContext(ctx, c, map[string]any{"region": "Sharjah", "persona": "minister"}))

	reloaded, err := repo.Get(ctx, "u1", c.ID)
	require.NoError(t, err)
	m := repo.ContextMap(reloaded)
	require.Equal(t, "Sharjah", m["region"])
	require.Equal(t, "hiring", m["domain"])
	require.Equal(t, "minister", m["persona"])
}

func TestHistory_OldestFirstWithinLimit(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()

	c, err := repo.Create(ctx, "u2", "t", nil)
	require.NoError(t, err)

	// Force distinct timestamps so ordering is observable.
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	contents := []string{"one", "two", "three", "four"}
	for i, content := range contents {
		m, err := repo.AppendMessage(ctx, c.ID, "user", content, nil)
		require.NoError(t, err)
		require.NoError(t, repo.db.Model(m).
			Update("created_at", base.Add(time.Duration(i)*time.Second)).Error)
	}

	got, err := repo.History(ctx, c.ID, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, "two", got[0].Content)
	require.Equal(t, "four", got[2].Content)
}

func TestSaveGenerated_KeepsMessageLinkOptional(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()

	c, err := repo.Create(ctx, "u3", "t", nil)
	require.NoError(t, err)

	g, err := repo.SaveGenerated(ctx, c.ID, nil, ContentTypeCharts, `[{"title":"x"}]`, "Dubai")
	require.NoError(t, err)
	require.Nil(t, g.MessageID)

	msg, err := repo.AppendMessage(ctx, c.ID, "assistant", "here are charts", nil)
	require.NoError(t, err)
	g2, err := repo.SaveGenerated(ctx, c.ID, &msg.ID, ContentTypeInsights, `{"key_insights":["a"]}`, "")
	require.NoError(t, err)
	require.NotNil(t, g2.MessageID)
	require.Equal(t, msg.ID, *g2.MessageID)
}
