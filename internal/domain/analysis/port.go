package analysis

import "context"

// Repository port for persisting and querying analyses
type Repository interface {
	Save(ctx context.Context, r *Record) error
	// Get returns ErrNotFound when the tenant has no such analysis.
	Get(ctx context.Context, tenant string, id ID) (*Record, error)
	Paginate(ctx context.Context, tenant string, page, pageSize int) (PaginatedResult, error)
}

// ReportStore archives full analysis reports and returns where they live.
type ReportStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) (string, error)
}
