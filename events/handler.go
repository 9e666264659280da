package events

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"simcheck/types"
)

// TypedMessageHandler decodes JSON messages into T before processing them.
type TypedMessageHandler[T any] struct {
	// Validate rejects messages that should not be processed.
	Validate func(msg *T) bool
	// Process handles a decoded message. A non-nil error leaves the message
	// unmarked unless Permanent reports it as not worth retrying.
	Process func(ctx context.Context, msg *T) error
	// Permanent reports errors that retrying cannot fix.
	Permanent func(err error) bool
	// AlwaysMark marks undecodable and invalid messages so they are skipped.
	AlwaysMark bool
}

// HandleMessage implements MessageHandler.
func (h *TypedMessageHandler[T]) HandleMessage(ctx context.Context, message []byte) (bool, error) {
	var msg T
	if err := json.Unmarshal(message, &msg); err != nil {
		log.Printf("❌ Failed to unmarshal message: %v", err)
		return h.AlwaysMark, nil
	}

	if h.Validate != nil && !h.Validate(&msg) {
		return h.AlwaysMark, nil
	}

	if err := h.Process(ctx, &msg); err != nil {
		if h.Permanent != nil && h.Permanent(err) {
			return true, err
		}
		return false, err
	}
	return true, nil
}

// DocumentHooks receives document change notifications.
type DocumentHooks interface {
	HandleEvent(ctx context.Context, event types.DocumentEvent) error
}

// NewDocumentEventHandler routes document-events messages to hooks.
// Events for documents that no longer exist, or that are malformed, are
// committed; transient failures are left for redelivery.
func NewDocumentEventHandler(hooks DocumentHooks) *TypedMessageHandler[types.DocumentEvent] {
	return &TypedMessageHandler[types.DocumentEvent]{
		Validate: func(msg *types.DocumentEvent) bool {
			if msg.DocumentID == "" {
				log.Printf("❌ Document event missing document_id, skipping")
				return false
			}
			return true
		},
		Process: func(ctx context.Context, msg *types.DocumentEvent) error {
			if err := hooks.HandleEvent(ctx, *msg); err != nil {
				return err
			}
			log.Printf("✅ Applied %s event for document %s", msg.Type, msg.DocumentID)
			return nil
		},
		Permanent: func(err error) bool {
			return !errors.Is(err, types.ErrTransientIO)
		},
		AlwaysMark: true,
	}
}
