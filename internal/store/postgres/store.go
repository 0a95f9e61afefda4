// Package postgres implements the console's persistence against PostgreSQL:
// job definitions, executor groups, the heartbeat registry, and trigger logs.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/djlord-it/jobadmin/internal/api"
	"github.com/djlord-it/jobadmin/internal/callback"
	"github.com/djlord-it/jobadmin/internal/dispatch"
	"github.com/djlord-it/jobadmin/internal/domain"
	"github.com/djlord-it/jobadmin/internal/registry"
)

// Store implements the dispatch, registry, callback, and api store
// interfaces using PostgreSQL.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL store with the given database connection.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (domain.Job, error) {
	var (
		job         domain.Job
		glueUpdated sql.NullTime
	)
	err := row.Scan(
		&job.ID,
		&job.GroupID,
		&job.Description,
		&job.Author,
		&job.ScheduleType,
		&job.ScheduleConf,
		&job.Handler,
		&job.Param,
		&job.BlockStrategy,
		&job.TimeoutSec,
		&job.FailRetryCount,
		&job.GlueType,
		&job.GlueSource,
		&glueUpdated,
		&job.TriggerStatus,
		&job.TriggerLastTime,
		&job.TriggerNextTime,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return domain.Job{}, err
	}
	if glueUpdated.Valid {
		job.GlueUpdatedAt = glueUpdated.Time
	}
	return job, nil
}

// GetJob returns a job by its ID.
// Returns dispatch.ErrNotFound if the job does not exist.
func (s *Store) GetJob(ctx context.Context, jobID int64) (domain.Job, error) {
	job, err := scanJob(s.db.QueryRowContext(ctx, queryGetJob, jobID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Job{}, dispatch.ErrNotFound
	}
	return job, err
}

// CreateJob inserts a new job and returns its assigned ID.
func (s *Store) CreateJob(ctx context.Context, job domain.Job, now time.Time) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, queryInsertJob,
		job.GroupID,
		job.Description,
		job.Author,
		string(job.ScheduleType),
		job.ScheduleConf,
		job.Handler,
		job.Param,
		job.BlockStrategy,
		job.TimeoutSec,
		job.FailRetryCount,
		job.GlueType,
		job.GlueSource,
		nullTime(job.GlueUpdatedAt),
		int(job.TriggerStatus),
		job.TriggerLastTime,
		job.TriggerNextTime,
		now,
	).Scan(&id)
	return id, err
}

// UpdateJob rewrites a job's editable fields. Trigger bookkeeping columns are
// only touched through UpdateJobTrigger.
func (s *Store) UpdateJob(ctx context.Context, job domain.Job, now time.Time) error {
	result, err := s.db.ExecContext(ctx, queryUpdateJob,
		job.ID,
		job.GroupID,
		job.Description,
		job.Author,
		string(job.ScheduleType),
		job.ScheduleConf,
		job.Handler,
		job.Param,
		job.BlockStrategy,
		job.TimeoutSec,
		job.FailRetryCount,
		job.GlueType,
		job.GlueSource,
		nullTime(job.GlueUpdatedAt),
		now,
	)
	if err != nil {
		return err
	}
	return requireRowAffected(result)
}

// DeleteJob removes a job and its trigger logs.
func (s *Store) DeleteJob(ctx context.Context, jobID int64) error {
	var deletedID int64
	err := s.db.QueryRowContext(ctx, queryDeleteJob, jobID).Scan(&deletedID)
	if errors.Is(err, sql.ErrNoRows) {
		return dispatch.ErrNotFound
	}
	return err
}

// ListJobs returns jobs filtered by group, trigger status, and a description
// substring, paginated. groupID 0 matches all groups; status -1 matches all
// statuses; desc "" matches all descriptions.
func (s *Store) ListJobs(ctx context.Context, groupID int64, status int, desc string, limit, offset int) ([]domain.Job, error) {
	rows, err := s.db.QueryContext(ctx, queryListJobs, groupID, status, desc, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, job)
	}
	return result, rows.Err()
}

// UpdateJobTrigger applies a partial update to a job's trigger bookkeeping
// columns. Nil fields in the update are not touched.
// Returns dispatch.ErrNotFound if the job does not exist.
func (s *Store) UpdateJobTrigger(ctx context.Context, jobID int64, update dispatch.JobTriggerUpdate) error {
	var (
		sets []string
		args = []any{jobID}
	)
	if update.TriggerStatus != nil {
		args = append(args, int(*update.TriggerStatus))
		sets = append(sets, fmt.Sprintf("trigger_status = $%d", len(args)))
	}
	if update.TriggerLastTime != nil {
		args = append(args, *update.TriggerLastTime)
		sets = append(sets, fmt.Sprintf("trigger_last_time = $%d", len(args)))
	}
	if update.TriggerNextTime != nil {
		args = append(args, *update.TriggerNextTime)
		sets = append(sets, fmt.Sprintf("trigger_next_time = $%d", len(args)))
	}
	if len(sets) == 0 {
		return nil
	}

	query := fmt.Sprintf("UPDATE job_info SET %s WHERE id = $1", strings.Join(sets, ", "))
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return requireRowAffected(result)
}

// GetGroup returns an executor group by its ID.
// Returns dispatch.ErrNotFound if the group does not exist.
func (s *Store) GetGroup(ctx context.Context, groupID int64) (domain.Group, error) {
	var group domain.Group
	err := s.db.QueryRowContext(ctx, queryGetGroup, groupID).Scan(
		&group.ID,
		&group.Name,
		&group.Title,
		&group.AddressMode,
		&group.AddressList,
		&group.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Group{}, dispatch.ErrNotFound
	}
	return group, err
}

// ListGroups returns all executor groups.
func (s *Store) ListGroups(ctx context.Context) ([]domain.Group, error) {
	rows, err := s.db.QueryContext(ctx, queryListGroups)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Group
	for rows.Next() {
		var group domain.Group
		if err := rows.Scan(&group.ID, &group.Name, &group.Title, &group.AddressMode, &group.AddressList, &group.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, group)
	}
	return result, rows.Err()
}

// CreateGroup inserts a new executor group and returns its assigned ID.
func (s *Store) CreateGroup(ctx context.Context, group domain.Group, now time.Time) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, queryInsertGroup,
		group.Name,
		group.Title,
		int(group.AddressMode),
		group.AddressList,
		now,
	).Scan(&id)
	return id, err
}

// UpdateGroup rewrites an executor group.
func (s *Store) UpdateGroup(ctx context.Context, group domain.Group, now time.Time) error {
	result, err := s.db.ExecContext(ctx, queryUpdateGroup,
		group.ID,
		group.Name,
		group.Title,
		int(group.AddressMode),
		group.AddressList,
		now,
	)
	if err != nil {
		return err
	}
	return requireRowAffected(result)
}

// DeleteGroup removes an executor group.
// Returns api.ErrGroupInUse when jobs still reference the group and
// api.ErrLastGroup when it is the only group left.
func (s *Store) DeleteGroup(ctx context.Context, groupID int64) error {
	var jobs int
	if err := s.db.QueryRowContext(ctx, queryCountJobsInGroup, groupID).Scan(&jobs); err != nil {
		return err
	}
	if jobs > 0 {
		return api.ErrGroupInUse
	}

	var groups int
	if err := s.db.QueryRowContext(ctx, queryCountGroups).Scan(&groups); err != nil {
		return err
	}
	if groups <= 1 {
		return api.ErrLastGroup
	}

	var deletedID int64
	err := s.db.QueryRowContext(ctx, queryDeleteGroup, groupID).Scan(&deletedID)
	if errors.Is(err, sql.ErrNoRows) {
		return dispatch.ErrNotFound
	}
	return err
}

// InsertTriggerLog persists a pending log row and returns its assigned ID.
func (s *Store) InsertTriggerLog(ctx context.Context, entry domain.TriggerLog) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, queryInsertTriggerLog,
		entry.JobID,
		entry.GroupID,
		entry.ExecutorAddress,
		entry.Handler,
		entry.Param,
		entry.ShardingParam,
		entry.FailRetryCount,
		entry.TriggerTime,
		entry.TriggerCode,
		entry.TriggerMsg,
	).Scan(&id)
	return id, err
}

// UpdateTriggerResult sets the trigger-phase fields of a log row after the
// attempt sequence completed.
func (s *Store) UpdateTriggerResult(ctx context.Context, logID int64, address string, code int, msg string) error {
	result, err := s.db.ExecContext(ctx, queryUpdateTriggerResult, logID, address, code, msg)
	if err != nil {
		return err
	}
	return requireRowAffected(result)
}

func scanLog(row rowScanner) (domain.TriggerLog, error) {
	var (
		entry      domain.TriggerLog
		handleTime sql.NullTime
	)
	err := row.Scan(
		&entry.ID,
		&entry.JobID,
		&entry.GroupID,
		&entry.ExecutorAddress,
		&entry.Handler,
		&entry.Param,
		&entry.ShardingParam,
		&entry.FailRetryCount,
		&entry.TriggerTime,
		&entry.TriggerCode,
		&entry.TriggerMsg,
		&handleTime,
		&entry.HandleCode,
		&entry.HandleMsg,
	)
	if err != nil {
		return domain.TriggerLog{}, err
	}
	if handleTime.Valid {
		entry.HandleTime = handleTime.Time
	}
	return entry, nil
}

// GetLog returns a trigger log by its ID.
func (s *Store) GetLog(ctx context.Context, logID int64) (domain.TriggerLog, error) {
	entry, err := scanLog(s.db.QueryRowContext(ctx, queryGetLog, logID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.TriggerLog{}, dispatch.ErrNotFound
	}
	return entry, err
}

// ListLogs returns trigger logs filtered by job and group, newest first.
// jobID and groupID 0 match everything.
func (s *Store) ListLogs(ctx context.Context, jobID, groupID int64, limit, offset int) ([]domain.TriggerLog, error) {
	rows, err := s.db.QueryContext(ctx, queryListLogs, jobID, groupID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TriggerLog
	for rows.Next() {
		entry, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

// ApplyCallback sets the handle fields of a log row, exactly once.
// The guard lives in the WHERE clause so the check and the write are one
// atomic statement: PostgreSQL acquires the row lock before evaluating
// WHERE, serializing concurrent duplicates.
// Returns callback.ErrDuplicateCallback when the handle fields were already
// set, callback.ErrLogNotFound when the row does not exist.
func (s *Store) ApplyCallback(ctx context.Context, logID int64, handleCode int, handleMsg string, handleTime time.Time) error {
	result, err := s.db.ExecContext(ctx, queryApplyCallback, logID, handleTime, handleCode, handleMsg)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		// Either the row is missing or a callback already landed.
		var currentCode int
		err := s.db.QueryRowContext(ctx, queryGetLogHandleCode, logID).Scan(&currentCode)
		if errors.Is(err, sql.ErrNoRows) {
			return callback.ErrLogNotFound
		}
		if err != nil {
			return err
		}
		return callback.ErrDuplicateCallback
	}
	return nil
}

// KillLog force-fails a running log entry: handle code 500, a note appended
// to the handle message. A log that already reported success cannot be
// killed; that yields api.ErrKillDenied.
func (s *Store) KillLog(ctx context.Context, logID int64, msg string, now time.Time) error {
	result, err := s.db.ExecContext(ctx, queryKillLog, logID, now, msg)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		var currentCode int
		err := s.db.QueryRowContext(ctx, queryGetLogHandleCode, logID).Scan(&currentCode)
		if errors.Is(err, sql.ErrNoRows) {
			return callback.ErrLogNotFound
		}
		if err != nil {
			return err
		}
		return api.ErrKillDenied
	}
	return nil
}

// UpsertRegistryEntry refreshes an executor heartbeat. The upsert is keyed by
// the full (group, key, value) triple, so each executor instance owns one row.
func (s *Store) UpsertRegistryEntry(ctx context.Context, registryGroup, registryKey, registryValue string, now time.Time) error {
	_, err := s.db.ExecContext(ctx, queryUpsertRegistryEntry, registryGroup, registryKey, registryValue, now)
	return err
}

// RemoveRegistryEntry deletes an executor's registry row on graceful shutdown.
func (s *Store) RemoveRegistryEntry(ctx context.Context, registryGroup, registryKey, registryValue string) error {
	_, err := s.db.ExecContext(ctx, queryRemoveRegistryEntry, registryGroup, registryKey, registryValue)
	return err
}

// ListRegistryEntries returns registry rows for one group and key.
func (s *Store) ListRegistryEntries(ctx context.Context, registryGroup, registryKey string) ([]domain.RegistryEntry, error) {
	rows, err := s.db.QueryContext(ctx, queryListRegistryEntries, registryGroup, registryKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.RegistryEntry
	for rows.Next() {
		var entry domain.RegistryEntry
		if err := rows.Scan(&entry.ID, &entry.RegistryGroup, &entry.RegistryKey, &entry.RegistryValue, &entry.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

// DeleteRegistryEntriesOlderThan removes up to limit registry rows whose
// heartbeat lapsed before the cutoff, oldest first.
func (s *Store) DeleteRegistryEntriesOlderThan(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	result, err := s.db.ExecContext(ctx, queryDeleteDeadRegistryEntries, cutoff, limit)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func requireRowAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return dispatch.ErrNotFound
	}
	return nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

// Compile-time interface assertions
var (
	_ dispatch.Store        = (*Store)(nil)
	_ registry.Store        = (*Store)(nil)
	_ registry.JanitorStore = (*Store)(nil)
	_ callback.Store        = (*Store)(nil)
	_ api.Store             = (*Store)(nil)
)
