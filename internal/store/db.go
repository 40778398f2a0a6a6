package store

import (
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

var db *sql.DB

// InitDB opens the run journal database and creates the tables.
func InitDB(dbPath string) error {
	var err error
	db, err = sql.Open("sqlite3", dbPath)
	if err != nil {
		return err
	}

	runTable := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		spec TEXT,
		mode TEXT,
		status TEXT,
		created_at DATETIME,
		updated_at DATETIME
	);
	`
	fileTable := `
	CREATE TABLE IF NOT EXISTS run_files (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT,
		input_path TEXT,
		order_key INTEGER,
		result_path TEXT,
		rw REAL,
		reduced_chi2 REAL,
		completed_at DATETIME
	);
	`
	errorTable := `
	CREATE TABLE IF NOT EXISTS run_errors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT,
		error_message TEXT,
		created_at DATETIME
	);
	`
	logTable := `
	CREATE TABLE IF NOT EXISTS run_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT,
		stage TEXT,
		level TEXT,
		message TEXT,
		details TEXT,
		created_at DATETIME
	);
	`

	for _, stmt := range []string{runTable, fileTable, errorTable, logTable} {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// CloseDB closes the run journal database.
func CloseDB() error {
	if db == nil {
		return nil
	}
	err := db.Close()
	db = nil
	return err
}

// Enabled reports whether the run journal has been opened. Journal
// writes are no-ops when it has not.
func Enabled() bool {
	return db != nil
}

// SaveRun stores a new sequential run with its configuration.
func SaveRun(runID, mode string, spec interface{}) error {
	if db == nil {
		return nil
	}
	specJSON, err := json.Marshal(spec)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	_, err = db.Exec(`INSERT INTO runs (id, spec, mode, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		runID, specJSON, mode, "pending", now, now)
	return err
}

// SaveRunError records an error for a run.
func SaveRunError(runID string, err error) error {
	if db == nil || err == nil {
		return nil
	}
	now := time.Now().UTC()
	_, e := db.Exec(`INSERT INTO run_errors (run_id, error_message, created_at) VALUES (?, ?, ?)`,
		runID, err.Error(), now)
	return e
}

// UpdateRunStatus updates run status.
func UpdateRunStatus(runID string, status string) error {
	if db == nil {
		return nil
	}
	now := time.Now().UTC()
	_, err := db.Exec(`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`, status, now, runID)
	return err
}

// SaveProcessedFile records one completed input file with its result
// location and headline fit metrics.
func SaveProcessedFile(runID, inputPath string, orderKey int64, resultPath string, rw, reducedChi2 float64) error {
	if db == nil {
		return nil
	}
	now := time.Now().UTC()
	_, err := db.Exec(`INSERT INTO run_files (run_id, input_path, order_key, result_path, rw, reduced_chi2, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, inputPath, orderKey, resultPath, rw, reducedChi2, now)
	return err
}

// SaveRunLog records a structured log line for a run stage.
func SaveRunLog(runID, stage, level, message string, details map[string]interface{}) error {
	if db == nil {
		return nil
	}
	detailsJSON := "{}"
	if details != nil {
		data, err := json.Marshal(details)
		if err != nil {
			return err
		}
		detailsJSON = string(data)
	}
	now := time.Now().UTC()
	_, err := db.Exec(`INSERT INTO run_logs (run_id, stage, level, message, details, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		runID, stage, level, message, detailsJSON, now)
	return err
}

// ListRuns returns all runs with basic info.
func ListRuns() ([]map[string]interface{}, error) {
	rows, err := db.Query(`SELECT id, mode, status, created_at, updated_at FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []map[string]interface{}
	for rows.Next() {
		var id, mode, status string
		var createdAt, updatedAt time.Time
		if err := rows.Scan(&id, &mode, &status, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		runs = append(runs, map[string]interface{}{
			"id":        id,
			"mode":      mode,
			"status":    status,
			"createdAt": createdAt,
			"updatedAt": updatedAt,
		})
	}
	return runs, rows.Err()
}

// GetRun fetches full run spec and status.
func GetRun(runID string) (map[string]interface{}, error) {
	var specJSON, mode, status string
	var createdAt, updatedAt time.Time

	err := db.QueryRow(`SELECT spec, mode, status, created_at, updated_at FROM runs WHERE id = ?`, runID).
		Scan(&specJSON, &mode, &status, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	var spec map[string]interface{}
	if err := json.Unmarshal([]byte(specJSON), &spec); err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"id":        runID,
		"spec":      spec,
		"mode":      mode,
		"status":    status,
		"createdAt": createdAt,
		"updatedAt": updatedAt,
	}, nil
}

// ListProcessedFiles returns the processed files of a run in completion order.
func ListProcessedFiles(runID string) ([]map[string]interface{}, error) {
	rows, err := db.Query(`SELECT input_path, order_key, result_path, rw, reduced_chi2, completed_at
		FROM run_files WHERE run_id = ? ORDER BY id ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []map[string]interface{}
	for rows.Next() {
		var inputPath, resultPath string
		var orderKey int64
		var rw, reducedChi2 float64
		var completedAt time.Time
		if err := rows.Scan(&inputPath, &orderKey, &resultPath, &rw, &reducedChi2, &completedAt); err != nil {
			return nil, err
		}
		files = append(files, map[string]interface{}{
			"inputPath":   inputPath,
			"orderKey":    orderKey,
			"resultPath":  resultPath,
			"rw":          rw,
			"reducedChi2": reducedChi2,
			"completedAt": completedAt,
		})
	}
	return files, rows.Err()
}

// ListRunErrors returns the recorded errors of a run.
func ListRunErrors(runID string) ([]map[string]interface{}, error) {
	rows, err := db.Query(`SELECT error_message, created_at FROM run_errors WHERE run_id = ? ORDER BY id ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var errs []map[string]interface{}
	for rows.Next() {
		var message string
		var createdAt time.Time
		if err := rows.Scan(&message, &createdAt); err != nil {
			return nil, err
		}
		errs = append(errs, map[string]interface{}{
			"message":   message,
			"createdAt": createdAt,
		})
	}
	return errs, rows.Err()
}

// ListRunLogs returns the structured logs of a run.
func ListRunLogs(runID string) ([]map[string]interface{}, error) {
	rows, err := db.Query(`SELECT stage, level, message, details, created_at FROM run_logs WHERE run_id = ? ORDER BY id ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []map[string]interface{}
	for rows.Next() {
		var stage, level, message, detailsJSON string
		var createdAt time.Time
		if err := rows.Scan(&stage, &level, &message, &detailsJSON, &createdAt); err != nil {
			return nil, err
		}
		var details map[string]interface{}
		if err := json.Unmarshal([]byte(detailsJSON), &details); err != nil {
			details = map[string]interface{}{}
		}
		logs = append(logs, map[string]interface{}{
			"stage":     stage,
			"level":     level,
			"message":   message,
			"details":   details,
			"createdAt": createdAt,
		})
	}
	return logs, rows.Err()
}
