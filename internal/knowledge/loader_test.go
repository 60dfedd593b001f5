package knowledge

import (
	"context"
	"strings"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&File{}))
	return db
}

func seedFile(t *testing.T, db *gorm.DB, userID, name, content string) string {
	t.Helper()
	f := &File{
		ID:               uuid.NewString(),
		UserID:           userID,
		Filename:         name,
		OriginalFilename: name,
		ExtractedContent: content,
		MimeType:         "text/plain",
		FileSize:         int64(len(content)),
	}
	require.NoError(t, db.Create(f).Error)
	return f.ID
}

func TestContext_CapsPerFileLength(t *testing.T) {
	db := openTestDB(t)
	long := strings.Repeat("x", 5000)
	seedFile(t, db, "u1", "big.txt", long)

	l := NewLoader(db, 5, 2000)
	got := l.Context(context.Background(), "u1", nil)
	assert.Contains(t, got, "big.txt")
	// header + 2000 chars, nowhere near the raw 5000
	assert.Less(t, len(got), 2100)
}

func TestContext_CapsFileCount(t *testing.T) {
	db := openTestDB(t)
	for i := 0; i < 8; i++ {
		seedFile(t, db, "u1", "f.txt", "content")
	}

	l := NewLoader(db, 3, 2000)
	got := l.Context(context.Background(), "u1", nil)
	assert.Equal(t, 3, strings.Count(got, "--- f.txt ---"))
}

func TestContext_FiltersByIDAndUser(t *testing.T) {
	db := openTestDB(t)
	mine := seedFile(t, db, "u1", "mine.txt", "my data")
	seedFile(t, db, "u1", "other.txt", "other data")
	theirs := seedFile(t, db, "u2", "theirs.txt", "their data")

	l := NewLoader(db, 5, 2000)
	got := l.Context(context.Background(), "u1", []string{mine, theirs})
	assert.Contains(t, got, "my data")
	assert.NotContains(t, got, "their data")
	assert.NotContains(t, got, "other data")
}

func TestContext_DBErrorDegradesToEmpty(t *testing.T) {
	db := openTestDB(t)
	seedFile(t, db, "u1", "f.txt", "content")
	// drop the table out from under the loader
	require.NoError(t, db.Migrator().DropTable(&File{}))

	l := NewLoader(db, 5, 2000)
	assert.Equal(t, "", l.Context(context.Background(), "u1", nil))
	assert.Equal(t, 0, l.Count(context.Background(), "u1"))
}

func TestContext_EmptyUserIsEmpty(t *testing.T) {
	l := NewLoader(openTestDB(t), 5, 2000)
	assert.Equal(t, "", l.Context(context.Background(), "", nil))
}
