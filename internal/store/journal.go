package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/liftsync/internal/fleet"
)

// JournalEntry is one received snapshot.
type JournalEntry struct {
	Seq      int64
	Snapshot fleet.Snapshot
}

// journalElevator is the payload encoding of one elevator, using the wire
// field names.
type journalElevator struct {
	ID        int             `json:"elevator_id"`
	Floor     int             `json:"current_floor"`
	Direction fleet.Direction `json:"direction"`
	DoorOpen  bool            `json:"is_door_open"`
	UpStops   []int           `json:"up_stops"`
	DownStops []int           `json:"down_stops"`
}

// AppendSnapshot adds snap to the journal and returns its sequence number.
func (s *Store) AppendSnapshot(ctx context.Context, snap fleet.Snapshot) (int64, error) {
	payload := make([]journalElevator, len(snap.Elevators))
	for i, e := range snap.Elevators {
		payload[i] = journalElevator{
			ID:        e.ID,
			Floor:     e.Position,
			Direction: e.Direction,
			DoorOpen:  e.DoorOpen,
			UpStops:   e.UpStops,
			DownStops: e.DownStops,
		}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("append snapshot: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshot_journal (timestamp_ms, total_floors, payload)
		VALUES (?, ?, ?)
	`, snap.Timestamp.UnixMilli(), snap.TotalFloors, string(data))
	if err != nil {
		return 0, fmt.Errorf("append snapshot: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("append snapshot: %w", err)
	}
	return seq, nil
}

// ReadJournal returns up to limit of the most recent entries, oldest first.
// A non-positive limit returns every entry.
//
// Returns an empty slice (not nil) if the journal is empty.
func (s *Store) ReadJournal(ctx context.Context, limit int) ([]JournalEntry, error) {
	query := `
		SELECT seq, timestamp_ms, total_floors, payload FROM (
			SELECT seq, timestamp_ms, total_floors, payload
			FROM snapshot_journal
			ORDER BY seq DESC
			LIMIT ?
		) ORDER BY seq ASC
	`
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	entries := []JournalEntry{}
	for rows.Next() {
		var (
			seq, ts int64
			floors  int
			payload string
		)
		if err := rows.Scan(&seq, &ts, &floors, &payload); err != nil {
			return nil, fmt.Errorf("scan journal: %w", err)
		}
		var elevators []journalElevator
		if err := json.Unmarshal([]byte(payload), &elevators); err != nil {
			return nil, fmt.Errorf("decode journal entry %d: %w", seq, err)
		}

		snap := fleet.Snapshot{
			TotalFloors: floors,
			Timestamp:   time.UnixMilli(ts),
			Elevators:   make([]fleet.ElevatorStatus, len(elevators)),
		}
		for i, e := range elevators {
			snap.Elevators[i] = fleet.ElevatorStatus{
				ID:        e.ID,
				Position:  e.Floor,
				Direction: e.Direction,
				DoorOpen:  e.DoorOpen,
				UpStops:   e.UpStops,
				DownStops: e.DownStops,
			}
		}
		entries = append(entries, JournalEntry{Seq: seq, Snapshot: snap})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal: %w", err)
	}
	return entries, nil
}

// TruncateJournal deletes every entry except the newest keep entries.
// It returns how many entries were removed.
func (s *Store) TruncateJournal(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM snapshot_journal
		WHERE seq NOT IN (
			SELECT seq FROM snapshot_journal ORDER BY seq DESC LIMIT ?
		)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("truncate journal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("truncate journal: %w", err)
	}
	return n, nil
}
