// Package knowledge loads user-uploaded document text as bounded prompt
// context.
package knowledge

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	DefaultMaxFiles   = 5
	HardMaxFiles      = 10
	DefaultMaxPerFile = 2000
)

type Loader struct {
	db         *gorm.DB
	maxFiles   int
	maxPerFile int
	log        *logrus.Entry
}

func NewLoader(db *gorm.DB, maxFiles, maxPerFile int) *Loader {
	if maxFiles <= 0 || maxFiles > HardMaxFiles {
		maxFiles = DefaultMaxFiles
	}
	if maxPerFile <= 0 {
		maxPerFile = DefaultMaxPerFile
	}
	return &Loader{
		db:         db,
		maxFiles:   maxFiles,
		maxPerFile: maxPerFile,
		log:        logrus.WithField("component", "knowledge"),
	}
}

// Context returns a text blob for prompt embedding, scoped to the user.
// fileIDs filters to specific uploads; empty means the user's most recent
// files. Caps bound prompt size; a database failure degrades to an empty
// blob rather than failing the request.
func (l *Loader) Context(ctx context.Context, userID string, fileIDs []string) string {
	if userID == "" {
		return ""
	}

	q := l.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(l.maxFiles)
	if len(fileIDs) > 0 {
		ids := fileIDs
		if len(ids) > l.maxFiles {
			ids = ids[:l.maxFiles]
		}
		q = q.Where("id IN ?", ids)
	}

	var files []File
	if err := q.Find(&files).Error; err != nil {
		l.log.WithError(err).WithField("user_id", userID).
			Warn("knowledge context load failed, continuing without context")
		return ""
	}
	if len(files) == 0 {
		return ""
	}

	var b strings.Builder
	for _, f := range files {
		content := strings.TrimSpace(f.ExtractedContent)
		if content == "" {
			continue
		}
		if len(content) > l.maxPerFile {
			content = content[:l.maxPerFile]
		}
		fmt.Fprintf(&b, "--- %s ---\n%s\n\n", f.OriginalFilename, content)
	}
	return strings.TrimSpace(b.String())
}

// Save records an uploaded file. Unlike context loading this is a real
// write and its error matters to the upload endpoint.
func (l *Loader) Save(ctx context.Context, f *File) error {
	return l.db.WithContext(ctx).Create(f).Error
}

// Count reports how many knowledge files the user has; load failures
// count as zero.
func (l *Loader) Count(ctx context.Context, userID string) int {
	var n int64
	if err := l.db.WithContext(ctx).Model(&File{}).
		Where("user_id = ?", userID).Count(&n).Error; err != nil {
		return 0
	}
	return int(n)
}
