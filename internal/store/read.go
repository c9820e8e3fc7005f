package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/crid/internal/ir"
	"github.com/roach88/crid/internal/registry"
)

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// readTx runs fn inside one read transaction, so every query in fn sees
// the same committed state even while another process appends.
func (s *Store) readTx(ctx context.Context, fn func(q queryer) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback() // Read-only; nothing to commit

	return fn(tx)
}

// Admin returns the recorded administrator, or ErrNotInitialized.
func (s *Store) Admin(ctx context.Context) (registry.Identity, error) {
	return readAdmin(ctx, s.db)
}

func readAdmin(ctx context.Context, q queryer) (registry.Identity, error) {
	var admin string
	err := q.QueryRowContext(ctx, `SELECT admin FROM registry_meta WHERE id = 1`).Scan(&admin)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotInitialized
	}
	if err != nil {
		return "", fmt.Errorf("read admin: %w", err)
	}
	return registry.Identity(admin), nil
}

// LastSeq returns the seq of the newest event, or 0 for an empty log.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	return readLastSeq(ctx, s.db)
}

func readLastSeq(ctx context.Context, q queryer) (int64, error) {
	var seq int64
	if err := q.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM events`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("read last seq: %w", err)
	}
	return seq, nil
}

// Load reads the full persisted state as a registry snapshot. All tables
// are read in one transaction.
func (s *Store) Load(ctx context.Context) (registry.Snapshot, error) {
	var snap registry.Snapshot
	err := s.readTx(ctx, func(q queryer) error {
		var err error
		snap, err = loadSnapshot(ctx, q)
		return err
	})
	return snap, err
}

func loadSnapshot(ctx context.Context, q queryer) (registry.Snapshot, error) {
	admin, err := readAdmin(ctx, q)
	if err != nil {
		return registry.Snapshot{}, err
	}
	seq, err := readLastSeq(ctx, q)
	if err != nil {
		return registry.Snapshot{}, err
	}
	courses, err := readCourses(ctx, q)
	if err != nil {
		return registry.Snapshot{}, err
	}
	enrollments, err := readEnrollments(ctx, q, "")
	if err != nil {
		return registry.Snapshot{}, err
	}
	return registry.Snapshot{
		Admin:       admin,
		Seq:         seq,
		Courses:     courses,
		Enrollments: enrollments,
	}, nil
}

// Registry restores the persisted registry and attaches the store as its
// journal, so further mutations are durable.
func (s *Store) Registry(ctx context.Context) (*registry.Registry, error) {
	snap, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	return registry.Restore(snap, registry.WithJournal(s))
}

// ReadCourses returns all courses ordered by code.
func (s *Store) ReadCourses(ctx context.Context) ([]registry.Course, error) {
	return readCourses(ctx, s.db)
}

func readCourses(ctx context.Context, q queryer) ([]registry.Course, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT code, max_capacity, confirmed_count
		FROM courses
		ORDER BY code COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query courses: %w", err)
	}
	defer rows.Close()

	courses := []registry.Course{}
	for rows.Next() {
		var (
			c              registry.Course
			max, confirmed int64
		)
		if err := rows.Scan(&c.Code, &max, &confirmed); err != nil {
			return nil, fmt.Errorf("scan course: %w", err)
		}
		c.MaxCapacity = uint32(max)
		c.ConfirmedCount = uint32(confirmed)
		courses = append(courses, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate courses: %w", err)
	}
	return courses, nil
}

// ReadEnrollments returns written enrollments ordered by code then
// participant. An empty code returns every course's enrollments.
func (s *Store) ReadEnrollments(ctx context.Context, code string) ([]registry.Enrollment, error) {
	return readEnrollments(ctx, s.db, code)
}

func readEnrollments(ctx context.Context, q queryer, code string) ([]registry.Enrollment, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT participant, code, state
		FROM enrollments
		WHERE ? = '' OR code = ?
		ORDER BY code COLLATE BINARY ASC, participant COLLATE BINARY ASC
	`, code, code)
	if err != nil {
		return nil, fmt.Errorf("query enrollments: %w", err)
	}
	defer rows.Close()

	enrollments := []registry.Enrollment{}
	for rows.Next() {
		var (
			e           registry.Enrollment
			participant string
			state       int64
		)
		if err := rows.Scan(&participant, &e.Code, &state); err != nil {
			return nil, fmt.Errorf("scan enrollment: %w", err)
		}
		e.Participant = registry.Identity(participant)
		e.State = registry.State(state)
		enrollments = append(enrollments, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate enrollments: %w", err)
	}
	return enrollments, nil
}

// ReadEvents returns events with seq > afterSeq in seq order.
// A limit <= 0 means no limit.
func (s *Store) ReadEvents(ctx context.Context, afterSeq int64, limit int) ([]registry.Event, error) {
	return readEvents(ctx, s.db, afterSeq, limit)
}

func readEvents(ctx context.Context, q queryer, afterSeq int64, limit int) ([]registry.Event, error) {
	if limit <= 0 {
		limit = -1 // SQLite: negative LIMIT means unbounded
	}
	return queryEvents(ctx, q, `
		SELECT seq, id, kind, payload, request_id
		FROM events
		WHERE seq > ?
		ORDER BY seq ASC
		LIMIT ?
	`, afterSeq, limit)
}

// ReadEventsByRequest returns the events stamped with requestID in seq order.
func (s *Store) ReadEventsByRequest(ctx context.Context, requestID string) ([]registry.Event, error) {
	return queryEvents(ctx, s.db, `
		SELECT seq, id, kind, payload, request_id
		FROM events
		WHERE request_id = ?
		ORDER BY seq ASC
	`, requestID)
}

func queryEvents(ctx context.Context, q queryer, query string, args ...any) ([]registry.Event, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []registry.Event{}
	for rows.Next() {
		var (
			seq                          int64
			id, kind, payload, requestID string
		)
		if err := rows.Scan(&seq, &id, &kind, &payload, &requestID); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		obj, err := ir.UnmarshalObject([]byte(payload))
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", seq, err)
		}
		ev, err := registry.EventFromPayload(registry.EventKind(kind), obj, seq)
		if err != nil {
			return nil, err
		}
		ev.ID = id
		ev.RequestID = requestID
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}
