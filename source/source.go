package source

import (
	"context"

	"firmware-risk-scanner/models"
)

// MaxPageSize is the largest page the upstream listing endpoint returns
const MaxPageSize = 100

// Source fetches the most recent posts from the community feed
type Source interface {
	FetchRecentPosts(ctx context.Context, limit int) ([]*models.Post, error)
}
