package syncx

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types appended by the attempt lifecycle.
const (
	TypeAttemptSubmitted = "AttemptSubmitted"
	TypeAttemptGraded    = "AttemptGraded"
)

type Event struct {
	Seq       int64  `json:"seq"`
	SiteID    string `json:"siteId"`
	Type      string `json:"type"`
	Key       string `json:"key"`
	DataJSON  string `json:"data"`
	CreatedAt int64  `json:"createdAt"`
}

// NewEvent builds an event with data encoded as JSON.
func NewEvent(typ, key string, data any) (Event, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: typ, Key: key, DataJSON: string(b)}, nil
}

// Journal records lifecycle events. Appends are best effort for callers.
type Journal interface {
	Append(ctx context.Context, e Event) error
}

type nopJournal struct{}

func (nopJournal) Append(context.Context, Event) error { return nil }

// Nop discards events; used when no database is configured.
func Nop() Journal { return nopJournal{} }

// EventRepo is the event_log table. Events without a SiteID are stamped
// with the repo's site, which tells apart instances sharing one database.
type EventRepo struct {
	db   *sql.DB
	site string
}

// NewEventRepo generates a random site id when siteID is empty.
func NewEventRepo(db *sql.DB, siteID string) *EventRepo {
	if siteID == "" {
		siteID = uuid.NewString()
	}
	return &EventRepo{db: db, site: siteID}
}

func (r *EventRepo) Site() string { return r.site }

func (r *EventRepo) Append(ctx context.Context, e Event) error {
	site := e.SiteID
	if site == "" {
		site = r.site
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO event_log (site_id, typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		site, e.Type, e.Key, e.DataJSON, time.Now().Unix())
	return err
}

// ListByKey returns events for one natural key in append order.
func (r *EventRepo) ListByKey(ctx context.Context, key string) ([]Event, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT seq, site_id, typ, key, data, created_at FROM event_log WHERE key=$1 ORDER BY seq`, key)
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
