package models

import "time"

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusCloning    Status = "CLONING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

var statusOrder = map[Status]int{
	StatusPending:    0,
	StatusCloning:    1,
	StatusProcessing: 2,
	StatusCompleted:  3,
	StatusFailed:     3,
}

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether a codebase may move from s to next.
// Statuses only move forward; Failed may be entered from any non-terminal status.
func (s Status) CanTransition(next Status) bool {
	if s.Terminal() {
		return false
	}
	if next == StatusFailed {
		return true
	}
	from, ok := statusOrder[s]
	if !ok {
		return false
	}
	to, ok := statusOrder[next]
	if !ok {
		return false
	}
	return to == from+1
}

type Codebase struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Owner     string    `json:"owner"`
	Name      string    `json:"name"`
	OriginURL string    `json:"originUrl"`
	Language  string    `json:"language"`
	FileCount int       `json:"fileCount"`
	Status    Status    `json:"status"`
	ErrorMsg  string    `json:"errorMsg,omitempty"`
	CommitSHA string    `json:"commitSha,omitempty"`
	Parsed    bool      `json:"parsed"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Identity is the logical repository a codebase was ingested from.
func (c *Codebase) Identity() string {
	return RepoIdentity(c.UserID, c.Owner, c.Name)
}

func RepoIdentity(userID, owner, name string) string {
	return userID + "/" + owner + "/" + name
}

type IngestRequest struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
}
