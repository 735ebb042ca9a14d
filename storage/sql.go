package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"ewintr.nl/shortscout/model"
)

const videoColumns = `id, video_id, url, title, channel, category_id, region_code, view_count, like_count,
duration_seconds, published_at, discovered_at, velocity, source, status, updated_at`

// SQL is the video and run store on top of postgres or sqlite. Queries are
// written with ? placeholders and rebound for postgres.
type SQL struct {
	db      *sql.DB
	dialect Dialect
}

func (s *SQL) Close() error {
	return s.db.Close()
}

func (s *SQL) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQL) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func normalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func (s *SQL) Insert(ctx context.Context, v *model.Video) (*model.Video, bool, error) {
	v.PublishedAt = normalizeTime(v.PublishedAt)
	v.DiscoveredAt = normalizeTime(v.DiscoveredAt)
	v.UpdatedAt = normalizeTime(v.UpdatedAt)

	query := s.rebind(`INSERT INTO videos (` + videoColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (video_id) DO NOTHING`)
	res, err := s.db.ExecContext(ctx, query,
		v.ID, string(v.VideoID), v.URL, v.Title, v.Channel, v.CategoryID, v.RegionCode, v.ViewCount, v.LikeCount,
		v.DurationSeconds, v.PublishedAt, v.DiscoveredAt, v.Velocity, string(v.Source), string(v.Status), v.UpdatedAt,
	)
	if err != nil {
		if isCheckViolation(err) {
			return nil, false, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
		}
		return nil, false, fmt.Errorf("could not insert video: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("could not insert video: %w", err)
	}
	if n == 1 {
		return v, true, nil
	}

	existing, err := s.FindByVideoID(ctx, v.VideoID)
	if err != nil {
		return nil, false, fmt.Errorf("could not load existing video: %w", err)
	}
	return existing, false, nil
}

func (s *SQL) FindByVideoID(ctx context.Context, id model.YoutubeVideoID) (*model.Video, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+videoColumns+` FROM videos WHERE video_id = ?`), string(id))
	v, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (s *SQL) Find(ctx context.Context, q Query) ([]*model.Video, int, error) {
	q = q.normalized()

	where := []string{}
	args := []any{}
	if q.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(q.Status))
	}
	if q.CategoryID != "" {
		where = append(where, "category_id = ?")
		args = append(args, q.CategoryID)
	}
	if q.Search != "" {
		pattern := "%" + escapeLike(strings.ToLower(q.Search)) + "%"
		where = append(where, `(LOWER(title) LIKE ? ESCAPE '\' OR LOWER(channel) LIKE ? ESCAPE '\' OR LOWER(video_id) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern, pattern)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM videos`+clause), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("could not count videos: %w", err)
	}

	query := s.rebind(`SELECT ` + videoColumns + ` FROM videos` + clause + `
ORDER BY discovered_at DESC, video_id ASC LIMIT ? OFFSET ?`)
	args = append(args, q.Limit, (q.Page-1)*q.Limit)
	videos, err := s.queryVideos(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}

	return videos, total, nil
}

func (s *SQL) CountByStatus(ctx context.Context) (map[model.VideoStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM videos GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("could not count videos: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.VideoStatus]int, len(model.Statuses))
	for _, st := range model.Statuses {
		counts[st] = 0
	}
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[model.VideoStatus(status)] = count
	}

	return counts, rows.Err()
}

func (s *SQL) UpdateStatus(ctx context.Context, id model.YoutubeVideoID, to model.VideoStatus) (*model.Video, error) {
	current, err := s.FindByVideoID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !model.CanTransition(current.Status, to) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, current.Status, to)
	}

	now := normalizeTime(time.Now())
	res, err := s.db.ExecContext(ctx, s.rebind(`UPDATE videos SET status = ?, updated_at = ? WHERE video_id = ? AND status = ?`),
		string(to), now, string(id), string(current.Status))
	if err != nil {
		return nil, fmt.Errorf("could not update status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("could not update status: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: status of %s changed concurrently", ErrInvalidTransition, id)
	}

	current.Status = to
	current.UpdatedAt = now
	return current, nil
}

func (s *SQL) RecentViral(ctx context.Context, since time.Time, minViews int64, limit int) ([]*model.Video, error) {
	if limit < 1 || limit > MaxPageSize {
		limit = MaxPageSize
	}
	query := s.rebind(`SELECT ` + videoColumns + ` FROM videos
WHERE published_at >= ? AND view_count >= ?
ORDER BY velocity DESC, view_count DESC, video_id ASC LIMIT ?`)

	return s.queryVideos(ctx, query, normalizeTime(since), minViews, limit)
}

func (s *SQL) queryVideos(ctx context.Context, query string, args ...any) ([]*model.Video, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("could not query videos: %w", err)
	}
	defer rows.Close()

	videos := []*model.Video{}
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, v)
	}

	return videos, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanVideo(row scanner) (*model.Video, error) {
	var (
		v       model.Video
		videoID string
		source  string
		status  string
	)
	if err := row.Scan(
		&v.ID, &videoID, &v.URL, &v.Title, &v.Channel, &v.CategoryID, &v.RegionCode, &v.ViewCount, &v.LikeCount,
		&v.DurationSeconds, &v.PublishedAt, &v.DiscoveredAt, &v.Velocity, &source, &status, &v.UpdatedAt,
	); err != nil {
		return nil, err
	}
	v.VideoID = model.YoutubeVideoID(videoID)
	v.Source = model.Source(source)
	v.Status = model.VideoStatus(status)
	v.PublishedAt = v.PublishedAt.UTC()
	v.DiscoveredAt = v.DiscoveredAt.UTC()
	v.UpdatedAt = v.UpdatedAt.UTC()

	return &v, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
