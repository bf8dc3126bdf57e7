package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"knowledgehub/internal/repository"
)

// DirectoryCache is a read-through redis cache over the membership
// directory. Membership data is read-only on the retrieval path, so a short
// TTL bounds staleness without any invalidation protocol.
type DirectoryCache struct {
	client *redisv9.Client
	repo   *repository.DirectoryRepository
	ttl    time.Duration
}

func NewDirectoryCache(client *redisv9.Client, repo *repository.DirectoryRepository, ttl time.Duration) *DirectoryCache {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &DirectoryCache{
		client: client,
		repo:   repo,
		ttl:    ttl,
	}
}

// OrgProjectIDs returns the project ids under an organization, serving from
// redis when possible. A cache failure degrades to a direct database read.
func (c *DirectoryCache) OrgProjectIDs(ctx context.Context, orgID uint) ([]uint, error) {
	key := c.orgProjectsKey(orgID)
	raw, err := c.client.Get(ctx, key).Result()
	if err == nil {
		var ids []uint
		if err := json.Unmarshal([]byte(raw), &ids); err == nil {
			return ids, nil
		}
	} else if err != redisv9.Nil {
		log.Printf("redis get org projects failed: %v", err)
	}

	ids, err := c.repo.ProjectIDsByOrganization(orgID)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(ids); err == nil {
		if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			log.Printf("redis set org projects failed: %v", err)
		}
	}
	return ids, nil
}

// ProjectOrganization passes through to the repository; it is off the hot
// retrieval path.
func (c *DirectoryCache) ProjectOrganization(ctx context.Context, projectID uint) (uint, error) {
	return c.repo.ProjectOrganization(projectID)
}

// OrganizationExists passes through to the repository.
func (c *DirectoryCache) OrganizationExists(ctx context.Context, orgID uint) (bool, error) {
	return c.repo.OrganizationExists(orgID)
}

func (c *DirectoryCache) orgProjectsKey(orgID uint) string {
	return fmt.Sprintf("directory:org:%d:projects", orgID)
}
