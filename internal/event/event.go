// Package event turns authenticated webhook deliveries into merged pull
// request records.
package event

import (
	"fmt"
	"strings"
	"time"
)

// Type is the normalized kind of a delivery.
type Type string

// TypeMerged is the only delivery kind that is recorded.
const TypeMerged Type = "merged"

// Event is a normalized merged pull request.
type Event struct {
	Type Type

	// Provider is the platform (github, gitlab).
	Provider string

	// Host is the web host of the pull request URL.
	Host string

	// Owner is the repository owner, or the full namespace on GitLab.
	Owner string
	Repo  string

	Number int
	Title  string
	URL    string
	Author string

	MergedAt time.Time

	// RawPayload is the original webhook payload.
	RawPayload []byte
}

// RepoIdentifier returns host/owner/repo in lower case.
func (e *Event) RepoIdentifier() string {
	return strings.ToLower(e.Host + "/" + e.Owner + "/" + e.Repo)
}

// Key returns a unique key for this event (used for debouncing).
func (e *Event) Key() string {
	return e.Provider + "/" + e.RepoIdentifier() + "/" + string(e.Type) + "/" + fmt.Sprint(e.Number)
}
