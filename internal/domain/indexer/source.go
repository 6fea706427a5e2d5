package indexer

import (
	"context"
	"time"
)

// SourceMessage is one post as returned by the channel history source.
type SourceMessage struct {
	ID        int64
	Date      time.Time
	HasSender bool
	Text      string
	Views     int64
	Forwards  int64
	HasMedia  bool
	MediaType string
}

// Source reads channel history.
type Source interface {
	// Fetch returns up to limit messages of the channel identified by ref, newest first,
	// restricted to ids below offsetID. offsetID 0 starts from the newest message. An empty
	// page means the history is exhausted.
	Fetch(ctx context.Context, ref string, offsetID int64, limit int) ([]SourceMessage, error)
}
