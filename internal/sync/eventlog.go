package syncx

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mind-engage/quazian/internal/db"
)

type Event struct {
	Seq       int64  `json:"seq"`
	SiteID    string `json:"siteId"`
	Type      string `json:"type"`
	Key       string `json:"key"`
	DataJSON  string `json:"data"`
	CreatedAt int64  `json:"createdAt"`
}

// EventRepo appends to event_log through a DB or a running transaction.
type EventRepo struct {
	ex     db.Execer
	siteID string
	now    func() time.Time
}

func NewEventRepo(ex db.Execer) *EventRepo {
	return &EventRepo{ex: ex, siteID: "local", now: time.Now}
}

// WithSite returns a copy stamping events with siteID.
func (r *EventRepo) WithSite(siteID string) *EventRepo {
	cp := *r
	cp.siteID = siteID
	return &cp
}

// On returns a copy writing through ex, typically a *sql.Tx.
func (r *EventRepo) On(ex db.Execer) *EventRepo {
	cp := *r
	cp.ex = ex
	return &cp
}

func (r *EventRepo) Append(ctx context.Context, typ, key string, data any) error {
	buf, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("event %s: %w", typ, err)
	}
	_, err = r.ex.ExecContext(ctx,
		`INSERT INTO event_log (site_id, typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		r.siteID, typ, key, string(buf), db.Millis(r.now()))
	return err
}

// Since lists events after seq in order, up to limit.
func (r *EventRepo) Since(ctx context.Context, seq int64, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.ex.QueryContext(ctx,
		`SELECT seq, site_id, typ, key, data, created_at FROM event_log
		 WHERE seq > $1 ORDER BY seq LIMIT $2`, seq, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.Seq, &e.SiteID, &e.Type, &e.Key, &e.DataJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
