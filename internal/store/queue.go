package store

import (
	"database/sql"
	"time"
)

// QueueStatus enumerates the lifecycle of one upload_queue row.
type QueueStatus string

const (
	QueuePending   QueueStatus = "pending"
	QueueUploading QueueStatus = "uploading"
	QueueSuccess   QueueStatus = "success"
	QueueFailed    QueueStatus = "failed"
)

// QueueEntry mirrors the upload_queue table.
type QueueEntry struct {
	ID            int64
	ASIN          string
	Platform      string
	AccountID     string
	ScheduledTime time.Time
	Priority      int
	Status        QueueStatus
	RetryCount    int
	ErrorMessage  string
	CreatedAt     time.Time
	ProcessedAt   *time.Time
}

// Enqueue inserts a new pending entry, or is a no-op if one already
// exists for (asin, platform, account_id); the upload queue's unique
// constraint is the dedup boundary.
func (s *Store) Enqueue(asin, platform, accountID string, scheduledTime time.Time, priority int) error {
	return s.withTx(func(tx *sql.Tx) error {
		now := time.Now().UTC()
		_, err := tx.Exec(`
			INSERT INTO upload_queue (asin, platform, account_id, scheduled_time, priority, status, retry_count, created_at)
			VALUES (?, ?, ?, ?, ?, 'pending', 0, ?)
			ON CONFLICT(asin, platform, account_id) DO NOTHING`,
			asin, platform, accountID, scheduledTime.UTC().Unix(), priority, now.Unix())
		return err
	})
}

// ClaimBatch atomically moves up to limit pending, due entries for the
// given platform to 'uploading' and returns them, ordered by priority
// descending then scheduled_time ascending, the order a worker should
// process them in. Each platform runs its own worker, so claims are
// scoped to platform: a worker must never see, let alone strand in
// 'uploading', another platform's rows.
func (s *Store) ClaimBatch(platform string, limit int) ([]QueueEntry, error) {
	var claimed []QueueEntry
	err := s.withTx(func(tx *sql.Tx) error {
		now := time.Now().UTC().Unix()
		rows, err := tx.Query(`
			SELECT id, asin, platform, account_id, scheduled_time, priority, status, retry_count, error_message, created_at, processed_at
			FROM upload_queue
			WHERE status = 'pending' AND platform = ? AND scheduled_time <= ?
			ORDER BY priority DESC, scheduled_time ASC
			LIMIT ?`, platform, now, limit)
		if err != nil {
			return err
		}
		var ids []int64
		for rows.Next() {
			e, err := scanQueueEntry(rows)
			if err != nil {
				rows.Close()
				return err
			}
			claimed = append(claimed, *e)
			ids = append(ids, e.ID)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()

		for _, id := range ids {
			if _, err := tx.Exec(`UPDATE upload_queue SET status='uploading' WHERE id=?`, id); err != nil {
				return err
			}
		}
		for i := range claimed {
			claimed[i].Status = QueueUploading
		}
		return nil
	})
	return claimed, err
}

// FailQueueEntry marks an entry failed outright, without touching its
// retry counter: for terminal conditions (validation errors, detected
// duplicates) that no amount of retrying can fix.
func (s *Store) FailQueueEntry(id int64, errMsg string) error {
	return s.withTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`UPDATE upload_queue SET status='failed', error_message=?, processed_at=? WHERE id=?`,
			errMsg, time.Now().UTC().Unix(), id)
		return err
	})
}

// CompleteQueueEntry marks an entry success or failed. On failure,
// retryCount is incremented and the entry reverts to pending unless
// maxRetries has been reached, in which case it is left failed.
func (s *Store) CompleteQueueEntry(id int64, success bool, errMsg string, maxRetries int) error {
	return s.withTx(func(tx *sql.Tx) error {
		now := time.Now().UTC().Unix()
		if success {
			_, err := tx.Exec(`UPDATE upload_queue SET status='success', processed_at=?, error_message=NULL WHERE id=?`, now, id)
			return err
		}

		var retryCount int
		if err := tx.QueryRow(`SELECT retry_count FROM upload_queue WHERE id=?`, id).Scan(&retryCount); err != nil {
			return err
		}
		retryCount++

		status := string(QueuePending)
		if retryCount >= maxRetries {
			status = string(QueueFailed)
		}
		_, err := tx.Exec(`UPDATE upload_queue SET status=?, retry_count=?, error_message=?, processed_at=? WHERE id=?`,
			status, retryCount, errMsg, now, id)
		return err
	})
}

func scanQueueEntry(rows *sql.Rows) (*QueueEntry, error) {
	var e QueueEntry
	var status string
	var errMsg sql.NullString
	var scheduledTime, createdAt int64
	var processedAt sql.NullInt64

	err := rows.Scan(&e.ID, &e.ASIN, &e.Platform, &e.AccountID, &scheduledTime, &e.Priority, &status,
		&e.RetryCount, &errMsg, &createdAt, &processedAt)
	if err != nil {
		return nil, err
	}

	e.Status = QueueStatus(status)
	e.ErrorMessage = errMsg.String
	e.ScheduledTime = time.Unix(scheduledTime, 0).UTC()
	e.CreatedAt = time.Unix(createdAt, 0).UTC()
	if processedAt.Valid {
		t := time.Unix(processedAt.Int64, 0).UTC()
		e.ProcessedAt = &t
	}
	return &e, nil
}
