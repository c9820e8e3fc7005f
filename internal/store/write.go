package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/crid/internal/ir"
	"github.com/roach88/crid/internal/registry"
)

// ErrNotInitialized is returned when no administrator has been recorded yet.
var ErrNotInitialized = errors.New("registry not initialized")

// ErrSeqConflict is returned when an appended event does not directly
// follow the last stored event.
var ErrSeqConflict = errors.New("event seq conflict")

// Init records admin as the registry's administrator.
//
// Calling Init again with the same administrator is a no-op. A different
// administrator is rejected with ALREADY_EXISTS: exactly one administrator
// exists for the registry's lifetime.
func (s *Store) Init(ctx context.Context, admin registry.Identity) error {
	access, err := registry.NewAccessControl(admin)
	if err != nil {
		return err
	}
	admin = access.Admin()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("init: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var existing string
	err = tx.QueryRowContext(ctx, `SELECT admin FROM registry_meta WHERE id = 1`).Scan(&existing)
	switch {
	case err == nil:
		if registry.Identity(existing) != admin {
			return &registry.Error{
				Code:    registry.CodeAlreadyExists,
				Message: "registry already initialized with a different administrator",
				Details: map[string]string{"admin": existing},
			}
		}
		return nil
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("init: read admin: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO registry_meta (id, admin, registry_version, schema_version)
		VALUES (1, ?, ?, ?)
	`, string(admin), ir.RegistryVersion, ir.SchemaVersion)
	if err != nil {
		return fmt.Errorf("init: insert admin: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init: commit: %w", err)
	}
	return nil
}

// Append implements registry.Journal. The event row and the resulting
// course and enrollment rows are written in a single transaction.
func (s *Store) Append(ctx context.Context, ch registry.Change) error {
	ev := ch.Event
	payload, err := ir.MarshalCanonical(ev.Payload())
	if err != nil {
		return fmt.Errorf("append: marshal payload: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var last int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM events`).Scan(&last); err != nil {
		return fmt.Errorf("append: read last seq: %w", err)
	}
	if ev.Seq != last+1 {
		return fmt.Errorf("append: %w: got seq %d after %d", ErrSeqConflict, ev.Seq, last)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO events (seq, id, kind, payload, request_id, schema_version)
		VALUES (?, ?, ?, ?, ?, ?)
	`, ev.Seq, ev.ID, string(ev.Kind), string(payload), ev.RequestID, ir.SchemaVersion)
	if err != nil {
		return fmt.Errorf("append: insert event: %w", err)
	}

	c := ch.Course
	_, err = tx.ExecContext(ctx, `
		INSERT INTO courses (code, max_capacity, confirmed_count, created_seq)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET confirmed_count = excluded.confirmed_count
	`, c.Code, int64(c.MaxCapacity), int64(c.ConfirmedCount), ev.Seq)
	if err != nil {
		return fmt.Errorf("append: write course: %w", err)
	}

	if e := ch.Enrollment; e != nil {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO enrollments (participant, code, state, updated_seq)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(participant, code) DO UPDATE SET
				state = excluded.state,
				updated_seq = excluded.updated_seq
		`, string(e.Participant), e.Code, int64(e.State), ev.Seq)
		if err != nil {
			return fmt.Errorf("append: write enrollment: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("append: commit: %w", err)
	}
	return nil
}
