// Package delayqueue holds steps that must not run before a given time.
package delayqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrMalformedEntry = errors.New("malformed delay queue entry")

// Entry identifies one postponed step of an execution. Action, Reason and
// Attempt are carried through unchanged for the scheduler.
type Entry struct {
	ExecutionID string `json:"id"`
	Step        int    `json:"step"`
	Action      string `json:"action,omitempty"`
	Reason      string `json:"reason,omitempty"`
	Attempt     int    `json:"attempt,omitempty"`
}

// member encodes plain steps as "id|step" and anything carrying more as JSON.
func (e Entry) member() string {
	if e.Action == "" && e.Reason == "" && e.Attempt == 0 {
		return e.ExecutionID + "|" + strconv.Itoa(e.Step)
	}

	data, err := json.Marshal(e)
	if err != nil {
		return e.ExecutionID + "|" + strconv.Itoa(e.Step)
	}

	return string(data)
}

func parseMember(member string) (Entry, error) {
	if strings.HasPrefix(member, "{") {
		var entry Entry
		if err := json.Unmarshal([]byte(member), &entry); err != nil || entry.ExecutionID == "" {
			return Entry{}, fmt.Errorf("%w: %q", ErrMalformedEntry, member)
		}

		return entry, nil
	}

	idx := strings.LastIndex(member, "|")
	if idx <= 0 {
		return Entry{}, fmt.Errorf("%w: %q", ErrMalformedEntry, member)
	}

	step, err := strconv.Atoi(member[idx+1:])
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %q", ErrMalformedEntry, member)
	}

	return Entry{ExecutionID: member[:idx], Step: step}, nil
}

// Queue stores entries until they are due. Due claims entries: each one is
// returned to exactly one caller.
type Queue interface {
	Schedule(ctx context.Context, entry Entry, at time.Time) error
	Due(ctx context.Context, now time.Time, limit int) ([]Entry, error)
}
