package types

const (
	DefaultPage     = 1
	DefaultPageSize = 12
	MaxPageSize     = 100
)

// PageParams is a validated page request.
type PageParams struct {
	Page  int
	Limit int
}

func (p PageParams) Offset() int {
	return (p.Page - 1) * p.Limit
}

// TotalPages is the number of pages needed for total rows.
func (p PageParams) TotalPages(total int64) int {
	if p.Limit <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(p.Limit) - 1) / int64(p.Limit))
}

type EventPage struct {
	Events      []EventResponse `json:"events"`
	TotalEvents int64           `json:"totalEvents"`
	TotalPages  int             `json:"totalPages"`
	CurrentPage int             `json:"currentPage"`
}
