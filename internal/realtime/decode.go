package realtime

import (
	"encoding/json"
	"fmt"
	"time"
)

// wireChange is the postgres_changes payload shape shared by the hosted
// backend's websocket stream and the issue_changes NOTIFY trigger
type wireChange struct {
	Record          map[string]any `json:"record"`
	OldRecord       map[string]any `json:"old_record"`
	Schema          string         `json:"schema"`
	Table           string         `json:"table"`
	Type            string         `json:"type"`
	CommitTimestamp string         `json:"commit_timestamp"`
}

// DecodeChange parses a postgres_changes payload.
// Returns an error for unknown tables or operations.
func DecodeChange(data []byte) (Change, error) {
	var wire wireChange
	if err := json.Unmarshal(data, &wire); err != nil {
		return Change{}, fmt.Errorf("failed to parse change payload: %w", err)
	}

	changeType := ChangeType(wire.Type)
	switch changeType {
	case ChangeInsert, ChangeUpdate, ChangeDelete:
	default:
		return Change{}, fmt.Errorf("unknown change type %q", wire.Type)
	}

	// Deletes only carry the old row
	row := wire.Record
	if changeType == ChangeDelete || len(row) == 0 {
		row = wire.OldRecord
	}

	var idField string
	switch wire.Table {
	case TableIssues:
		idField = "id"
	case TableUpvotes:
		idField = "issue_id"
	default:
		return Change{}, fmt.Errorf("unexpected table %q", wire.Table)
	}

	recordID, _ := row[idField].(string)

	receivedAt := time.Now().UTC()
	if wire.CommitTimestamp != "" {
		if ts, err := time.Parse(time.RFC3339Nano, wire.CommitTimestamp); err == nil {
			receivedAt = ts.UTC()
		}
	}

	return Change{
		Table:      wire.Table,
		Type:       changeType,
		RecordID:   recordID,
		ReceivedAt: receivedAt,
	}, nil
}
