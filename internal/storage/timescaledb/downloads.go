package timescaledb

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/chrissnell/meteodb/internal/log"
	"github.com/chrissnell/meteodb/internal/types"
)

// JobState is the processing state of a downloaded payload.
type JobState int

const (
	DownloadPending JobState = iota
	DownloadDone
	DownloadFailed
)

// Download is one raw payload fetched by a connector.
type Download struct {
	ID        int64
	Station   types.StationID
	Time      time.Time
	Connector string
	Content   string
	Inserted  time.Time
	JobState  JobState
}

// InsertDownload appends d to the downloads log and fills in its ID and
// insertion time.
func (t *Storage) InsertDownload(ctx context.Context, d *Download) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	err := t.insertDownload.QueryRowContext(ctx, d.Station.UUID(), d.Time, d.Connector, d.Content, int(d.JobState)).
		Scan(&d.ID, &d.Inserted)
	if err != nil {
		log.Errorf("could not insert %s download of %s: %v", d.Connector, d.Station, err)
		return transient("inserting download", err)
	}
	return nil
}

// GetPendingDownloads returns up to limit pending payloads of connector,
// oldest first.
func (t *Storage) GetPendingDownloads(ctx context.Context, connector string, limit int) ([]*Download, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rows, err := t.TimescaleDBConn.WithContext(ctx).Raw(selectPendingDownloadsSQL, connector, int(DownloadPending), limit).Rows()
	if err != nil {
		log.Errorf("could not read pending %s downloads: %v", connector, err)
		return nil, transient("reading pending downloads", err)
	}
	defer rows.Close()

	var out []*Download
	for rows.Next() {
		var (
			d       Download
			station uuid.UUID
			content sql.NullString
			state   int
		)
		if err := rows.Scan(&d.ID, &station, &d.Time, &d.Connector, &content, &d.Inserted, &state); err != nil {
			return nil, transient("scanning downloads", err)
		}
		d.Station = types.StationID(station)
		d.Content = content.String
		d.JobState = JobState(state)
		out = append(out, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, transient("reading pending downloads", err)
	}
	return out, nil
}

// UpdateDownloadJobState records the processing outcome of a download.
func (t *Storage) UpdateDownloadJobState(ctx context.Context, id int64, state JobState) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.TimescaleDBConn.WithContext(ctx).Exec(updateDownloadJobStateSQL, int(state), id).Error; err != nil {
		log.Errorf("could not update download %d: %v", id, err)
		return transient("updating download state", err)
	}
	return nil
}
