// Package policycache is a best-effort read-through cache for generated
// policy payloads: Redis in front, an upserted table behind. There is no
// invalidation and no consistency guarantee; concurrent writers race and
// last write wins.
package policycache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Entry struct {
	ID             string    `gorm:"type:uuid;primaryKey"`
	Region         string    `gorm:"type:varchar(128);not null;uniqueIndex:uniq_policy_region_category,priority:1"`
	State          string    `gorm:"type:varchar(128)"`
	Country        string    `gorm:"type:varchar(128)"`
	PolicyCategory string    `gorm:"type:varchar(64);not null;uniqueIndex:uniq_policy_region_category,priority:2"`
	PolicyContent  string    `gorm:"type:jsonb;not null"`
	DataContext    string    `gorm:"type:text"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (Entry) TableName() string { return "ai_policies" }

const redisTTL = 6 * time.Hour

type Cache struct {
	db  *gorm.DB
	rds *redis.Client
	log *logrus.Entry
}

// NewCache builds a cache; rds may be nil, in which case only the table
// is consulted.
func NewCache(db *gorm.DB, rds *redis.Client) *Cache {
	return &Cache{db: db, rds: rds, log: logrus.WithField("component", "policycache")}
}

func key(region, category string) string {
	return fmt.Sprintf("policy:%s:%s", strings.ToLower(region), strings.ToLower(category))
}

// Get returns the cached policy JSON for (region, category), or "" on a
// miss. Lookup failures count as misses.
func (c *Cache) Get(ctx context.Context, region, category string) string {
	if region == "" {
		return ""
	}
	if category == "" {
		category = "general"
	}

	if c.rds != nil {
		if v, err := c.rds.Get(ctx, key(region, category)).Result(); err == nil && v != "" {
			return v
		}
	}

	var e Entry
	err := c.db.WithContext(ctx).
		Where("region = ? AND policy_category = ?", region, category).
		First(&e).Error
	if err != nil {
		return ""
	}

	if c.rds != nil {
		if err := c.rds.Set(ctx, key(region, category), e.PolicyContent, redisTTL).Err(); err != nil {
			c.log.WithError(err).Debug("redis backfill failed")
		}
	}
	return e.PolicyContent
}

// Put upserts the durable row and refreshes Redis. Failures are logged
// and swallowed; a dead cache never blocks a response.
func (c *Cache) Put(ctx context.Context, region, category, content, dataContext string) {
	if region == "" || content == "" {
		return
	}
	if category == "" {
		category = "general"
	}

	e := Entry{
		ID:             uuid.NewString(),
		Region:         region,
		PolicyCategory: category,
		PolicyContent:  content,
		DataContext:    dataContext,
	}
	err := c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "region"}, {Name: "policy_category"}},
		DoUpdates: clause.Assignments(map[string]any{
			"policy_content": content,
			"data_context":   dataContext,
			"updated_at":     time.Now(),
		}),
	}).Create(&e).Error
	if err != nil {
		c.log.WithError(err).WithField("region", region).Warn("policy upsert failed")
	}

	if c.rds != nil {
		if err := c.rds.Set(ctx, key(region, category), content, redisTTL).Err(); err != nil {
			c.log.WithError(err).Debug("redis set failed")
		}
	}
}
