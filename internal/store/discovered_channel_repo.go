package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/polyforge/polyforge/internal/types"
	"github.com/polyforge/polyforge/internal/types/interfaces"
	"gorm.io/gorm"
)

type discoveredChannelRepository struct {
	db *gorm.DB
}

// NewDiscoveredChannelRepository builds the gorm-backed DiscoveredChannelRepository.
func NewDiscoveredChannelRepository(db *gorm.DB) interfaces.DiscoveredChannelRepository {
	return &discoveredChannelRepository{db: db}
}

func (r *discoveredChannelRepository) Upsert(ctx context.Context, dc *types.DiscoveredChannel) error {
	existing, err := r.FindMatch(ctx, dc.PeerID, dc.Username, dc.InviteHash)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if existing == nil {
		dc.FirstSeenAt = now
		dc.LastSeenAt = now
		if dc.ReferenceCount == 0 {
			dc.ReferenceCount = 1
		}
		return r.db.WithContext(ctx).Create(dc).Error
	}

	existing.ReferenceCount++
	existing.LastSeenAt = now
	if dc.Title != "" {
		existing.Title = dc.Title
	}
	existing.SourceTypes = unionSourceTypes(existing.SourceTypes, dc.SourceTypes)
	*dc = *existing
	return r.db.WithContext(ctx).Save(existing).Error
}

// unionSourceTypes merges two comma-joined sets of DiscoverySourceType,
// deduplicating and keeping a stable order.
func unionSourceTypes(a, b string) string {
	seen := make(map[string]bool)
	var out []string
	for _, part := range append(strings.Split(a, ","), strings.Split(b, ",")...) {
		part = strings.TrimSpace(part)
		if part == "" || seen[part] {
			continue
		}
		seen[part] = true
		out = append(out, part)
	}
	return strings.Join(out, ",")
}

func (r *discoveredChannelRepository) FindMatch(ctx context.Context, peerID, username, inviteHash string) (*types.DiscoveredChannel, error) {
	q := r.db.WithContext(ctx)
	switch {
	case peerID != "":
		q = q.Where("peer_id = ?", peerID)
	case username != "":
		q = q.Where("username = ?", username)
	case inviteHash != "":
		q = q.Where("invite_hash = ?", inviteHash)
	default:
		return nil, nil
	}
	var dc types.DiscoveredChannel
	if err := q.First(&dc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &dc, nil
}

func (r *discoveredChannelRepository) Get(ctx context.Context, id string) (*types.DiscoveredChannel, error) {
	var dc types.DiscoveredChannel
	if err := r.db.WithContext(ctx).First(&dc, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &dc, nil
}

var discoveredChannelSortColumns = map[string]string{
	"reference_count": "reference_count desc",
	"first_seen_at":   "first_seen_at desc",
	"last_seen_at":    "last_seen_at desc",
	"title":           "title asc",
}

func (r *discoveredChannelRepository) List(ctx context.Context, sortBy string, limit, offset int) ([]*types.DiscoveredChannel, int64, error) {
	order, ok := discoveredChannelSortColumns[sortBy]
	if !ok {
		order = discoveredChannelSortColumns["reference_count"]
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&types.DiscoveredChannel{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var list []*types.DiscoveredChannel
	q := r.db.WithContext(ctx).Order(order)
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	if err := q.Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (r *discoveredChannelRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&types.DiscoveredChannel{}, "id = ?", id).Error
}

func (r *discoveredChannelRepository) Stats(ctx context.Context) (map[string]int64, error) {
	stats := make(map[string]int64)

	var total int64
	if err := r.db.WithContext(ctx).Model(&types.DiscoveredChannel{}).Count(&total).Error; err != nil {
		return nil, err
	}
	stats["total"] = total

	rows, err := r.db.WithContext(ctx).Model(&types.DiscoveredChannel{}).
		Select("source_types, count(*) as n").
		Group("source_types").
		Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var sourceTypes string
		var n int64
		if err := rows.Scan(&sourceTypes, &n); err != nil {
			return nil, err
		}
		for _, st := range strings.Split(sourceTypes, ",") {
			st = strings.TrimSpace(st)
			if st == "" {
				continue
			}
			stats[fmt.Sprintf("source_type:%s", st)] += n
		}
	}
	return stats, rows.Err()
}
