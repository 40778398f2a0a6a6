// Package handler implements the read-only monitoring endpoints over the
// run journal. The sequential pipeline itself is driven by the CLI; the
// API only observes.
package handler

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"

	"go-refine-pipeline/internal/store"
)

const runsPrefix = "/api/v1/runs/"

// runIDFromPath extracts the run ID between the prefix and an optional
// suffix segment. Empty string means the path was malformed.
func runIDFromPath(path, suffix string) string {
	if !strings.HasPrefix(path, runsPrefix) || !strings.HasSuffix(path, suffix) {
		return ""
	}
	end := len(path) - len(suffix)
	if end <= len(runsPrefix) {
		return ""
	}
	return path[len(runsPrefix):end]
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payload)
}

// ListRuns retrieves all sequential runs.
func ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := store.ListRuns()
	if err != nil {
		http.Error(w, "Failed to fetch runs", http.StatusInternalServerError)
		return
	}
	writeJSON(w, runs)
}

// GetRun retrieves a specific run with its configuration and status.
func GetRun(w http.ResponseWriter, r *http.Request) {
	runID := runIDFromPath(r.URL.Path, "")
	if runID == "" {
		http.Error(w, "Run ID is required", http.StatusBadRequest)
		return
	}

	run, err := store.GetRun(runID)
	if err != nil {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	writeJSON(w, run)
}

// GetRunFiles retrieves the processed input files of a run in completion
// order.
func GetRunFiles(w http.ResponseWriter, r *http.Request) {
	runID := runIDFromPath(r.URL.Path, "/files")
	if runID == "" {
		http.Error(w, "Run ID is required", http.StatusBadRequest)
		return
	}

	files, err := store.ListProcessedFiles(runID)
	if err != nil {
		http.Error(w, "Failed to retrieve files", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]interface{}{
		"run_id": runID,
		"files":  files,
		"count":  len(files),
	})
}

// GetRunErrors retrieves all errors recorded for a run.
func GetRunErrors(w http.ResponseWriter, r *http.Request) {
	runID := runIDFromPath(r.URL.Path, "/errors")
	if runID == "" {
		http.Error(w, "Run ID is required", http.StatusBadRequest)
		return
	}

	errors, err := store.ListRunErrors(runID)
	if err != nil {
		http.Error(w, "Failed to retrieve errors", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]interface{}{
		"run_id": runID,
		"errors": errors,
		"count":  len(errors),
	})
}

// GetRunLogs retrieves the structured stage logs of a run.
func GetRunLogs(w http.ResponseWriter, r *http.Request) {
	runID := runIDFromPath(r.URL.Path, "/logs")
	if runID == "" {
		http.Error(w, "Run ID is required", http.StatusBadRequest)
		return
	}

	logs, err := store.ListRunLogs(runID)
	if err != nil {
		http.Error(w, "Failed to retrieve logs", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]interface{}{
		"run_id": runID,
		"logs":   logs,
		"count":  len(logs),
	})
}

// GetRunResults streams the persisted result records of a run by reading
// the result files recorded in the journal.
func GetRunResults(w http.ResponseWriter, r *http.Request) {
	runID := runIDFromPath(r.URL.Path, "/results")
	if runID == "" {
		http.Error(w, "Run ID is required", http.StatusBadRequest)
		return
	}

	files, err := store.ListProcessedFiles(runID)
	if err != nil {
		http.Error(w, "Failed to retrieve files", http.StatusInternalServerError)
		return
	}

	var results []map[string]interface{}
	for _, file := range files {
		resultPath, _ := file["resultPath"].(string)
		data, err := os.ReadFile(resultPath)
		if err != nil {
			continue
		}
		var record map[string]interface{}
		if err := json.Unmarshal(data, &record); err != nil {
			continue
		}
		results = append(results, map[string]interface{}{
			"inputPath":  file["inputPath"],
			"resultPath": resultPath,
			"record":     record,
		})
	}
	writeJSON(w, map[string]interface{}{
		"run_id":  runID,
		"results": results,
		"count":   len(results),
	})
}
