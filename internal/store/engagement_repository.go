package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/vouse/postqueue/internal/domain/engagement"
)

type EngagementRepository struct {
	db *gorm.DB
}

func NewEngagementRepository(db *gorm.DB) *EngagementRepository {
	return &EngagementRepository{db: db}
}

func (r *EngagementRepository) Create(ctx context.Context, e *engagement.Engagement) error {
	row := EngagementRow{
		PostIDX: e.PostIDX(), PostIDLocal: e.PostIDLocal(), UserID: e.UserID(),
		CreatedAt: e.CreatedAt(), UpdatedAt: e.UpdatedAt(),
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

// Save writes the current aggregate and appends the newest history
// point only (the in-memory aggregate already holds the full slice;
// only the tail is new since the last Save).
func (r *EngagementRepository) Save(ctx context.Context, e *engagement.Engagement) error {
	cur := e.Current()
	err := r.db.WithContext(ctx).Model(&EngagementRow{}).
		Where("post_id_x = ?", e.PostIDX()).
		Updates(map[string]interface{}{
			"likes":        cur.Likes,
			"retweets":     cur.Retweets,
			"quotes":       cur.Quotes,
			"replies":      cur.Replies,
			"impressions":  cur.Impressions,
			"updated_at":   e.UpdatedAt(),
		}).Error
	if err != nil {
		return err
	}

	history := e.History()
	if len(history) == 0 {
		return nil
	}
	latest := history[len(history)-1]
	histRow := EngagementHistoryRow{
		PostIDX: e.PostIDX(), Timestamp: latest.Timestamp,
		Likes: latest.Snapshot.Likes, Retweets: latest.Snapshot.Retweets,
		Quotes: latest.Snapshot.Quotes, Replies: latest.Snapshot.Replies,
		Impressions: latest.Snapshot.Impressions,
	}
	return r.db.WithContext(ctx).Create(&histRow).Error
}

func (r *EngagementRepository) FindByPostIDX(ctx context.Context, userID, postIDX string) (*engagement.Engagement, error) {
	var row EngagementRow
	err := r.db.WithContext(ctx).Where("user_id = ? AND post_id_x = ?", userID, postIDX).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, engagement.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return r.hydrate(ctx, row)
}

func (r *EngagementRepository) FindByPostIDLocal(ctx context.Context, userID, postIDLocal string) (*engagement.Engagement, error) {
	var row EngagementRow
	err := r.db.WithContext(ctx).Where("user_id = ? AND post_id_local = ?", userID, postIDLocal).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, engagement.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return r.hydrate(ctx, row)
}

func (r *EngagementRepository) ListForUser(ctx context.Context, userID string) ([]*engagement.Engagement, error) {
	var rows []EngagementRow
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*engagement.Engagement, 0, len(rows))
	for _, row := range rows {
		e, err := r.hydrate(ctx, row)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *EngagementRepository) ListStaleForCollection(ctx context.Context, cutoff time.Time) ([]*engagement.Engagement, error) {
	var rows []EngagementRow
	// A row never refreshed since creation still has updated_at = created_at.
	err := r.db.WithContext(ctx).Where("updated_at <= ? OR updated_at = created_at", cutoff).Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]*engagement.Engagement, 0, len(rows))
	for _, row := range rows {
		e, err := r.hydrate(ctx, row)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *EngagementRepository) hydrate(ctx context.Context, row EngagementRow) (*engagement.Engagement, error) {
	var histRows []EngagementHistoryRow
	err := r.db.WithContext(ctx).
		Where("post_id_x = ?", row.PostIDX).
		Order("timestamp ASC").
		Find(&histRows).Error
	if err != nil {
		return nil, err
	}
	history := make([]engagement.DataPoint, 0, len(histRows))
	for _, h := range histRows {
		history = append(history, engagement.DataPoint{
			Timestamp: h.Timestamp,
			Snapshot: engagement.Snapshot{
				Likes: h.Likes, Retweets: h.Retweets, Quotes: h.Quotes,
				Replies: h.Replies, Impressions: h.Impressions,
			},
		})
	}
	current := engagement.Snapshot{
		Likes: row.Likes, Retweets: row.Retweets, Quotes: row.Quotes,
		Replies: row.Replies, Impressions: row.Impressions,
	}
	return engagement.Reconstruct(row.PostIDX, row.PostIDLocal, row.UserID, current, history, row.CreatedAt, row.UpdatedAt), nil
}
