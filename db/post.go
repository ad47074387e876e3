package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"firmware-risk-scanner/models"
)

// UpsertPost stores a post. New ids are inserted; for a known id only score and
// num_comments are refreshed and the processed flag is reset. It reports
// whether the row was newly inserted.
func (db *Database) UpsertPost(ctx context.Context, post *models.Post) (bool, error) {
	if post.ID == "" {
		return false, fmt.Errorf("failed to upsert post: empty id")
	}

	subreddit := post.Subreddit
	if subreddit == "" {
		subreddit = models.DefaultSubreddit
	}

	insert := `
		INSERT INTO posts (id, title, selftext, author, created_utc, score, num_comments,
		                   url, permalink, subreddit, fetched_at, processed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, FALSE)
		ON CONFLICT (id) DO NOTHING
	`

	result, err := db.conn.ExecContext(ctx, insert, post.ID, post.Title, post.Body, post.Author,
		post.CreatedUTC, post.Score, post.NumComments, post.URL, post.Permalink, subreddit, db.now())
	if err != nil {
		return false, fmt.Errorf("failed to insert post %s: %w", post.ID, err)
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected for post %s: %w", post.ID, err)
	}
	if inserted == 1 {
		return true, nil
	}

	update := `
		UPDATE posts
		SET score = ?, num_comments = ?, processed = FALSE
		WHERE id = ?
	`
	if _, err := db.conn.ExecContext(ctx, update, post.Score, post.NumComments, post.ID); err != nil {
		return false, fmt.Errorf("failed to update post %s: %w", post.ID, err)
	}

	return false, nil
}

// GetPost retrieves a post by id
func (db *Database) GetPost(ctx context.Context, id string) (*models.Post, error) {
	query := `
		SELECT id, title, selftext, author, created_utc, score, num_comments,
		       url, permalink, subreddit, fetched_at, processed
		FROM posts WHERE id = ?
	`

	post := &models.Post{}
	err := db.conn.QueryRowContext(ctx, query, id).Scan(
		&post.ID, &post.Title, &post.Body, &post.Author, &post.CreatedUTC,
		&post.Score, &post.NumComments, &post.URL, &post.Permalink,
		&post.Subreddit, &post.FetchedAt, &post.Processed,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("post %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get post: %w", err)
	}

	return post, nil
}

// CountPosts returns the number of stored posts
func (db *Database) CountPosts(ctx context.Context) (int, error) {
	var count int
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM posts").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count posts: %w", err)
	}
	return count, nil
}

// MarkPostsProcessed sets the processed flag on every given post
func (db *Database) MarkPostsProcessed(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	query := fmt.Sprintf("UPDATE posts SET processed = TRUE WHERE id IN (%s)", placeholders(len(ids)))
	if _, err := db.conn.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to mark posts processed: %w", err)
	}

	return nil
}
