package postgres

const queryGetJob = `
SELECT
    id, job_group, job_desc, author,
    schedule_type, schedule_conf,
    executor_handler, executor_param, executor_block_strategy,
    executor_timeout, executor_fail_retry_count,
    glue_type, glue_source, glue_updatetime,
    trigger_status, trigger_last_time, trigger_next_time,
    add_time, update_time
FROM job_info
WHERE id = $1
`

const queryInsertJob = `
INSERT INTO job_info (
    job_group, job_desc, author,
    schedule_type, schedule_conf,
    executor_handler, executor_param, executor_block_strategy,
    executor_timeout, executor_fail_retry_count,
    glue_type, glue_source, glue_updatetime,
    trigger_status, trigger_last_time, trigger_next_time,
    add_time, update_time
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $17)
RETURNING id
`

const queryUpdateJob = `
UPDATE job_info
SET job_group = $2, job_desc = $3, author = $4,
    schedule_type = $5, schedule_conf = $6,
    executor_handler = $7, executor_param = $8, executor_block_strategy = $9,
    executor_timeout = $10, executor_fail_retry_count = $11,
    glue_type = $12, glue_source = $13, glue_updatetime = $14,
    update_time = $15
WHERE id = $1
`

const queryDeleteJob = `
WITH deleted_logs AS (
    DELETE FROM job_log WHERE job_id = $1
)
DELETE FROM job_info WHERE id = $1
RETURNING id`

const queryListJobs = `
SELECT
    id, job_group, job_desc, author,
    schedule_type, schedule_conf,
    executor_handler, executor_param, executor_block_strategy,
    executor_timeout, executor_fail_retry_count,
    glue_type, glue_source, glue_updatetime,
    trigger_status, trigger_last_time, trigger_next_time,
    add_time, update_time
FROM job_info
WHERE ($1 = 0 OR job_group = $1)
  AND ($2 = -1 OR trigger_status = $2)
  AND ($3 = '' OR job_desc ILIKE '%' || $3 || '%')
ORDER BY id
LIMIT $4 OFFSET $5
`

const queryGetGroup = `
SELECT id, app_name, title, address_type, address_list, update_time
FROM job_group
WHERE id = $1
`

const queryListGroups = `
SELECT id, app_name, title, address_type, address_list, update_time
FROM job_group
ORDER BY app_name, title
`

const queryInsertGroup = `
INSERT INTO job_group (app_name, title, address_type, address_list, update_time)
VALUES ($1, $2, $3, $4, $5)
RETURNING id
`

const queryUpdateGroup = `
UPDATE job_group
SET app_name = $2, title = $3, address_type = $4, address_list = $5, update_time = $6
WHERE id = $1
`

const queryCountJobsInGroup = `
SELECT COUNT(*) FROM job_info WHERE job_group = $1
`

const queryCountGroups = `
SELECT COUNT(*) FROM job_group
`

const queryDeleteGroup = `
DELETE FROM job_group WHERE id = $1
RETURNING id`

const queryInsertTriggerLog = `
INSERT INTO job_log (
    job_id, job_group, executor_address, executor_handler, executor_param,
    executor_sharding_param, executor_fail_retry_count,
    trigger_time, trigger_code, trigger_msg,
    handle_code, handle_msg
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0, '')
RETURNING id
`

const queryUpdateTriggerResult = `
UPDATE job_log
SET executor_address = $2, trigger_code = $3, trigger_msg = $4
WHERE id = $1
`

const queryGetLog = `
SELECT
    id, job_id, job_group, executor_address, executor_handler, executor_param,
    executor_sharding_param, executor_fail_retry_count,
    trigger_time, trigger_code, trigger_msg,
    handle_time, handle_code, handle_msg
FROM job_log
WHERE id = $1
`

const queryListLogs = `
SELECT
    id, job_id, job_group, executor_address, executor_handler, executor_param,
    executor_sharding_param, executor_fail_retry_count,
    trigger_time, trigger_code, trigger_msg,
    handle_time, handle_code, handle_msg
FROM job_log
WHERE ($1 = 0 OR job_id = $1)
  AND ($2 = 0 OR job_group = $2)
ORDER BY trigger_time DESC
LIMIT $3 OFFSET $4
`

const queryApplyCallback = `
UPDATE job_log
SET handle_time = $2,
    handle_code = $3,
    handle_msg = CASE
        WHEN handle_msg IS NULL OR handle_msg = '' THEN $4
        ELSE handle_msg || E'\n' || $4
    END
WHERE id = $1
  AND handle_code = 0
`

const queryGetLogHandleCode = `
SELECT handle_code FROM job_log WHERE id = $1
`

const queryKillLog = `
UPDATE job_log
SET handle_time = $2,
    handle_code = 500,
    handle_msg = CASE
        WHEN handle_msg IS NULL OR handle_msg = '' THEN $3
        ELSE handle_msg || E'\n' || $3
    END
WHERE id = $1
  AND handle_code <> 200
`

const queryUpsertRegistryEntry = `
INSERT INTO job_registry (registry_group, registry_key, registry_value, update_time)
VALUES ($1, $2, $3, $4)
ON CONFLICT (registry_group, registry_key, registry_value)
DO UPDATE SET update_time = EXCLUDED.update_time
`

const queryRemoveRegistryEntry = `
DELETE FROM job_registry
WHERE registry_group = $1 AND registry_key = $2 AND registry_value = $3
`

const queryListRegistryEntries = `
SELECT id, registry_group, registry_key, registry_value, update_time
FROM job_registry
WHERE registry_group = $1 AND registry_key = $2
ORDER BY registry_value
`

const queryDeleteDeadRegistryEntries = `
DELETE FROM job_registry
WHERE id IN (
    SELECT id FROM job_registry
    WHERE update_time < $1
    ORDER BY update_time ASC
    LIMIT $2
)
`
