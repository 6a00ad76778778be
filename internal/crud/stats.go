package crud

import (
	"context"
	"math"
	"time"

	"github.com/urbanisme-sn/portail/internal/schema"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RecentWindow is the period counted as recent by Stats.
const RecentWindow = 7 * 24 * time.Hour

// Stats summarises the size of a model table.
type Stats struct {
	Total  int64   `json:"total"`
	Recent int64   `json:"recent"`
	Growth float64 `json:"growth"` // recent share of total, in percent with one decimal
}

// Growth returns recent/total*100 rounded to one decimal, or 0 when either count is zero.
func Growth(recent, total int64) float64 {
	if recent == 0 || total == 0 {
		return 0
	}
	return math.Round(float64(recent)/float64(total)*1000) / 10
}

func (s *Service) live(ctx context.Context) *gorm.DB {
	q := s.table(ctx)
	if s.model.Features.Trash {
		q = q.Where(notDeleted())
	}
	return q
}

// Stats counts the live rows and those created during the last RecentWindow.
func (s *Service) Stats(ctx context.Context) (st *Stats, err error) {
	const op = "count"
	t := s.begin(op)
	defer t.done(&err)

	since := s.now().UTC().Add(-RecentWindow)
	var total, recent int64

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.live(gctx).Count(&total).Error
	})
	g.Go(func() error {
		return s.live(gctx).
			Where(clause.Gte{Column: col(schema.ColumnCreatedAt), Value: since}).
			Count(&recent).Error
	})
	if err := g.Wait(); err != nil {
		return nil, s.fail(op, err)
	}

	return &Stats{Total: total, Recent: recent, Growth: Growth(recent, total)}, nil
}
