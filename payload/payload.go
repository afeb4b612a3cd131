// Package payload defines the commit-export record handed to the delivery
// engine and the helpers that shape it before delivery.
//
// The engine treats a payload as opaque: it serializes whatever it is given
// and only attaches the job_minutes field. The types here describe the
// contract producers are expected to follow.
package payload

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"time"
)

// JobMinutesField is the JSON key the engine attaches to every payload.
const JobMinutesField = "job_minutes"

// ErrNotObject is returned when a payload does not serialize to a JSON object.
var ErrNotObject = errors.New("payload: value must serialize to a JSON object")

// Payload is the commit batch exported for a single automation run.
type Payload struct {
	// Repo is the repository name.
	Repo string `json:"repo"`

	// Owner is the repository owner (user or organization).
	Owner string `json:"owner"`

	// Branch is the branch the commits were pushed to.
	Branch string `json:"branch,omitempty"`

	// Commits is the ordered list of commits. Always serialized as an array.
	Commits []Commit `json:"commits"`

	// JobMinutes is the rounded-up duration of the enclosing run.
	// Set by the engine; producers leave it zero.
	JobMinutes int `json:"job_minutes,omitempty"`
}

// Commit is a single commit record.
type Commit struct {
	ID        string      `json:"id"`
	Message   string      `json:"message"`
	Author    Author      `json:"author"`
	Timestamp time.Time   `json:"timestamp"`
	URL       string      `json:"url"`
	Additions *int        `json:"additions,omitempty"`
	Deletions *int        `json:"deletions,omitempty"`
	Files     FileChanges `json:"files"`
}

// Author identifies a commit author.
type Author struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// FileChanges is the per-commit file breakdown.
type FileChanges struct {
	Added    []string `json:"added"`
	Modified []string `json:"modified"`
	Removed  []string `json:"removed"`
	Total    int      `json:"total"`
}

// MarshalJSON keeps the path lists as arrays when they are empty.
func (f FileChanges) MarshalJSON() ([]byte, error) {
	type alias FileChanges
	out := alias(f)
	if out.Added == nil {
		out.Added = []string{}
	}
	if out.Modified == nil {
		out.Modified = []string{}
	}
	if out.Removed == nil {
		out.Removed = []string{}
	}
	return json.Marshal(out)
}

// WithJobMinutes returns a shallow copy of v with job_minutes set.
//
// Payload and *Payload are copied by value; map[string]any is copied one
// level deep. Anything else is round-tripped through JSON and must encode to
// an object. The input is never modified.
func WithJobMinutes(v any, minutes int) (any, error) {
	switch p := v.(type) {
	case Payload:
		return p.withJobMinutes(minutes), nil
	case *Payload:
		if p == nil {
			return nil, ErrNotObject
		}
		return p.withJobMinutes(minutes), nil
	case map[string]any:
		if p == nil {
			return nil, ErrNotObject
		}
		out := maps.Clone(p)
		out[JobMinutesField] = minutes
		return out, nil
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("payload: marshal: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil || obj == nil {
		return nil, ErrNotObject
	}
	obj[JobMinutesField] = minutes
	return obj, nil
}

func (p Payload) withJobMinutes(minutes int) Payload {
	if p.Commits == nil {
		p.Commits = []Commit{}
	}
	p.JobMinutes = minutes
	return p
}
