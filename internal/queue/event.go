// Package queue defines message payloads exchanged over the message broker
// and the consumer that turns them into an audit log.
package queue

import (
    "strconv"
    "time"

    "github.com/iliyamo/movieflix/internal/model"
)

// EntryEventType names what happened to an entry.
type EntryEventType string

const (
    EntryCreated EntryEventType = "entry.created"
    EntryUpdated EntryEventType = "entry.updated"
    EntryDeleted EntryEventType = "entry.deleted"
)

// EntriesQueue is the durable RabbitMQ queue entry events are sent to.
const EntriesQueue = "entry.events"

// EntryEvent is published after an entry is created, updated or deleted.
// It carries enough to log or index the change without querying the
// primary database.
type EntryEvent struct {
    Type       EntryEventType `json:"type"`
    EntryID    uint64         `json:"entryId"`
    UserID     uint64         `json:"userId"`
    Title      string         `json:"title"`
    EntryType  string         `json:"entryType"`
    OccurredAt time.Time      `json:"occurredAt"`
}

// NewEntryEvent builds the event for e.
func NewEntryEvent(t EntryEventType, e *model.Entry, at time.Time) EntryEvent {
    return EntryEvent{
        Type:       t,
        EntryID:    e.ID,
        UserID:     e.UserID,
        Title:      e.Title,
        EntryType:  string(e.Type),
        OccurredAt: at.UTC(),
    }
}

// Key is the partition key used by brokers that support one: the owner, so
// a user's events stay ordered.
func (ev EntryEvent) Key() string { return strconv.FormatUint(ev.UserID, 10) }
