// Package alert decides, across repeated unattended runs, when a persistent
// failure surfaces as a webhook notification and when recovery clears it.
package alert

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"calmirror/internal/log"
)

// Status values persisted in the state record.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// State is the persisted alert record. It is created on the first scheduled
// run, mutated once per run, and overwritten in place atomically.
type State struct {
	LastRun             *time.Time `json:"last_run"`
	LastStatus          string     `json:"last_status"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastError           string     `json:"last_error"`
	LastAlertSentAt     *time.Time `json:"last_alert_sent_at"`
}

// Load reads the state record from path. A missing file yields a fresh OK
// state; a corrupt file is logged and also treated as fresh so a damaged
// record can never wedge scheduled runs.
func Load(path string) State {
	fresh := State{LastStatus: StatusOK}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Error("alert state unreadable, starting fresh", err, "path", path)
		}
		return fresh
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		log.Error("alert state corrupt, starting fresh", err, "path", path)
		return fresh
	}
	if st.LastStatus == "" {
		st.LastStatus = StatusOK
	}
	if st.ConsecutiveFailures < 0 {
		st.ConsecutiveFailures = 0
	}
	return st
}

// Save writes the state record atomically: temp file in the same directory,
// fsync, chmod 0600, rename. A crash mid-write can never corrupt the record.
func Save(path string, st State) error {
	if path == "" {
		return errors.New("alert state path is empty")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(&st, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".calmirror-state-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
