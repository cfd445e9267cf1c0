package models

// Feed notice types.
const (
	FeedClaimsChanged = "claims_changed"
	FeedCellsChanged  = "cells_changed"

	// Sent once to a new subscriber with the current revision.
	FeedHello = "hello"
)

// FeedNotice tells feed subscribers that the claims or the cells of a map
// changed. Subscribers are expected to refresh through the HTTP API.
type FeedNotice struct {
	Type     string `json:"type"`
	MapID    string `json:"mapId,omitempty"`
	Revision uint64 `json:"revision"`
}
