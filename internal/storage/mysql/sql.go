package mysql

const upsertRunSQL = `
INSERT INTO search_runs
  (id, generation, location, filters, state, total, received, degraded, started_at, finished_at)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  state       = VALUES(state),
  total       = VALUES(total),
  received    = VALUES(received),
  degraded    = VALUES(degraded),
  finished_at = COALESCE(VALUES(finished_at), search_runs.finished_at),
  updated_at  = CURRENT_TIMESTAMP
`

const insertMissSQL = `
INSERT INTO fetch_misses (run_id, page, reason)
VALUES (?, ?, ?)
`

const listRunsSQL = `
SELECT id, generation, location, filters, state, total, received, degraded, started_at, finished_at
FROM search_runs
ORDER BY started_at DESC, generation DESC
LIMIT ?
`
