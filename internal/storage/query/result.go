package query

import "github.com/skillvault/skillvault/internal/storage/types"

// TrendResult is the outcome of a trend query. Exactly three
// implementations exist: Success, NoData, and Error. Callers switch on the
// concrete type; the unexported method keeps the set closed.
type TrendResult interface {
	trendResult()
}

// Success carries the stitched trend points, sorted by timestamp ascending.
type Success struct {
	Points []types.TrendPoint
}

// NoData means the query ran fine but matched nothing.
type NoData struct {
	Reason string
}

// Error means the query itself could not be answered.
type Error struct {
	Message string
}

func (Success) trendResult() {}
func (NoData) trendResult()  {}
func (Error) trendResult()   {}
