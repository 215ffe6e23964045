package api

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"github.com/avikhandakar-dev/vibe/internal/uuid"
)

var projectBucket = []byte("provisioned_projects")

// ProjectEntry records one provisioned workspace for operational auditing.
// The admin key is deliberately not recorded.
type ProjectEntry struct {
	ID             string `json:"id"`
	UserID         string `json:"user_id"`
	ProjectSlug    string `json:"project_slug"`
	TeamSlug       string `json:"team_slug"`
	DeploymentName string `json:"deployment_name"`
	CreatedAt      string `json:"created_at"`
}

// ProjectLog persists provisioned-project records in a BBolt database.
type ProjectLog struct {
	db *bbolt.DB
}

// NewProjectLog opens (or creates) the project log at path.
func NewProjectLog(path string) (*ProjectLog, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("opening project log: %w", err)
	}
	return &ProjectLog{db: db}, nil
}

// Close closes the underlying database.
func (l *ProjectLog) Close() error {
	return l.db.Close()
}

// Append records a provisioned project.
func (l *ProjectLog) Append(userID, projectSlug, teamSlug, deploymentName string) error {
	entry := ProjectEntry{
		ID:             uuid.New(),
		UserID:         userID,
		ProjectSlug:    projectSlug,
		TeamSlug:       teamSlug,
		DeploymentName: deploymentName,
		CreatedAt:      time.Now().UTC().Format(time.RFC3339),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return l.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(projectBucket)
		if err != nil {
			return err
		}
		return b.Put([]byte(entry.ID), data)
	})
}

// List returns all recorded projects, newest first.
func (l *ProjectLog) List() ([]ProjectEntry, error) {
	var entries []ProjectEntry
	err := l.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(projectBucket)
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, data []byte) error {
			var entry ProjectEntry
			if err := json.Unmarshal(data, &entry); err != nil {
				return nil // skip corrupt entries
			}
			entries = append(entries, entry)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt > entries[j].CreatedAt
	})
	return entries, nil
}
