package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/vouse/postqueue/internal/domain/post"
)

type PostRepository struct {
	db *gorm.DB
}

func NewPostRepository(db *gorm.DB) *PostRepository {
	return &PostRepository{db: db}
}

func (r *PostRepository) Create(ctx context.Context, p *post.Post) error {
	row := postToRow(p)
	return r.db.WithContext(ctx).Create(&row).Error
}

// Save performs a compare-and-set on version so two workers racing to
// transition the same post don't both win, per spec.md §5.
func (r *PostRepository) Save(ctx context.Context, p *post.Post) error {
	row := postToRow(p)
	result := r.db.WithContext(ctx).
		Model(&PostRow{}).
		Where("id = ? AND version = ?", row.ID, row.Version-1).
		Updates(map[string]interface{}{
			"post_id_x":       row.PostIDX,
			"content":         row.Content,
			"title":           row.Title,
			"visibility":      row.Visibility,
			"cloud_image_urls": row.CloudImageURLs,
			"location_lat":    row.LocationLat,
			"location_lng":    row.LocationLng,
			"location_addr":   row.LocationAddr,
			"scheduled_at":    row.ScheduledAt,
			"published_at":    row.PublishedAt,
			"status":          row.Status,
			"failure_reason":  row.FailureReason,
			"attempt":         row.Attempt,
			"version":         row.Version,
			"updated_at":      row.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return post.ErrOptimisticLock
	}
	return nil
}

func (r *PostRepository) Delete(ctx context.Context, userID, id string) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND id = ?", userID, id).
		Delete(&PostRow{}).Error
}

func (r *PostRepository) FindByID(ctx context.Context, userID, id string) (*post.Post, error) {
	var row PostRow
	err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, post.ErrPostNotFound
	}
	if err != nil {
		return nil, err
	}
	return rowToPost(row), nil
}

func (r *PostRepository) FindByLocalID(ctx context.Context, userID, postIDLocal string) (*post.Post, error) {
	var row PostRow
	err := r.db.WithContext(ctx).Where("user_id = ? AND post_id_local = ?", userID, postIDLocal).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, post.ErrPostNotFound
	}
	if err != nil {
		return nil, err
	}
	return rowToPost(row), nil
}

func (r *PostRepository) FindByXID(ctx context.Context, userID, postIDX string) (*post.Post, error) {
	var row PostRow
	err := r.db.WithContext(ctx).Where("user_id = ? AND post_id_x = ?", userID, postIDX).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, post.ErrPostNotFound
	}
	if err != nil {
		return nil, err
	}
	return rowToPost(row), nil
}

func (r *PostRepository) ListForUser(ctx context.Context, userID string, offset, limit int) ([]*post.Post, error) {
	var rows []PostRow
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rowsToPosts(rows), nil
}

func (r *PostRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]*post.Post, error) {
	var rows []PostRow
	err := r.db.WithContext(ctx).
		Where("status = ? AND scheduled_at <= ?", string(post.StatusScheduled), now).
		Order("scheduled_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rowsToPosts(rows), nil
}

func (r *PostRepository) FindStuckPublishing(ctx context.Context) ([]*post.Post, error) {
	var rows []PostRow
	err := r.db.WithContext(ctx).
		Where("status = ?", string(post.StatusPublishing)).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rowsToPosts(rows), nil
}

func (r *PostRepository) FindPublished(ctx context.Context, offset, limit int) ([]*post.Post, error) {
	var rows []PostRow
	err := r.db.WithContext(ctx).
		Where("status = ?", string(post.StatusPublished)).
		Order("published_at DESC").
		Offset(offset).Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rowsToPosts(rows), nil
}

const imageURLSep = "\x1f" // unit separator, never legal in a URL

func postToRow(p *post.Post) PostRow {
	row := PostRow{
		ID:             p.ID(),
		PostIDLocal:    p.PostIDLocal(),
		PostIDX:        p.PostIDX(),
		UserID:         p.UserID(),
		Content:        p.Content(),
		Title:          p.Title(),
		Visibility:     string(p.Visibility()),
		CloudImageURLs: strings.Join(p.CloudImageURLs(), imageURLSep),
		ScheduledAt:    p.ScheduledAt(),
		PublishedAt:    p.PublishedAt(),
		Status:         string(p.Status()),
		FailureReason:  p.FailureReason(),
		Attempt:        p.Attempt(),
		Version:        p.Version(),
		CreatedAt:      p.CreatedAt(),
		UpdatedAt:      p.UpdatedAt(),
	}
	if loc := p.Location(); loc != nil {
		row.LocationLat = &loc.Lat
		row.LocationLng = &loc.Lng
		row.LocationAddr = loc.Address
	}
	return row
}

func rowToPost(row PostRow) *post.Post {
	var loc *post.Location
	if row.LocationLat != nil && row.LocationLng != nil {
		loc = &post.Location{Lat: *row.LocationLat, Lng: *row.LocationLng, Address: row.LocationAddr}
	}
	var images []string
	if row.CloudImageURLs != "" {
		images = strings.Split(row.CloudImageURLs, imageURLSep)
	}
	return post.Reconstruct(
		row.ID, row.PostIDLocal, row.PostIDX, row.UserID, row.Content, row.Title,
		post.Visibility(row.Visibility), images, loc,
		row.ScheduledAt, row.PublishedAt,
		post.Status(row.Status), row.FailureReason, row.Attempt, row.Version,
		row.CreatedAt, row.UpdatedAt,
	)
}

func rowsToPosts(rows []PostRow) []*post.Post {
	out := make([]*post.Post, 0, len(rows))
	for _, row := range rows {
		out = append(out, rowToPost(row))
	}
	return out
}
