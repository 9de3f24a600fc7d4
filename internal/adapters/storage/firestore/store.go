// Package firestore persists sessions in Cloud Firestore: one document
// per session, messages in a subcollection ordered by index.
package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/safirlabs/safir-agent/internal/domain"
)

type Store struct {
	client *firestore.Client
}

// NewStore creates a Firestore-backed session store for the project.
func NewStore(ctx context.Context, projectID string) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required for Firestore store")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	return &Store{client: client}, nil
}

func (s *Store) Close() error { return s.client.Close() }

// ─────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────

func (s *Store) sessionsCol() *firestore.CollectionRef {
	return s.client.Collection("sessions")
}

func (s *Store) sessionDocRef(id domain.SessionID) *firestore.DocumentRef {
	return s.sessionsCol().Doc(string(id))
}

func (s *Store) messagesCol(sessionID domain.SessionID) *firestore.CollectionRef {
	return s.sessionDocRef(sessionID).Collection("messages")
}

// ─────────────────────────────────────────
// Firestore Types
// ─────────────────────────────────────────

type sessionDoc struct {
	Summary            string    `firestore:"conversation_summary"`
	SummaryUpToIndex   int       `firestore:"summary_up_to_index"`
	UserMode           string    `firestore:"user_mode"`
	ClickCount         int       `firestore:"suggestion_click_count"`
	LastFromSuggestion bool      `firestore:"last_message_from_suggestion"`
	ClickPending       bool      `firestore:"suggestion_click_pending"`
	LastHandler        string    `firestore:"last_agent"`
	EntryPath          string    `firestore:"entry_path"`
	MessageCount       int       `firestore:"message_count"`
	UpdatedAt          time.Time `firestore:"updated_at"`
}

type messageDoc struct {
	Index     int       `firestore:"index"`
	Role      string    `firestore:"role"`
	Text      string    `firestore:"content"`
	CreatedAt time.Time `firestore:"timestamp"`
}

// ─────────────────────────────────────────
// SessionStore implementation
// ─────────────────────────────────────────

// Get returns the session record, or (nil, nil) when unknown.
func (s *Store) Get(ctx context.Context, id domain.SessionID) (*domain.SessionRecord, error) {
	snap, err := s.sessionDocRef(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("firestore Get: %w", err)
	}

	var doc sessionDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("firestore Get decode: %w", err)
	}

	messages, err := s.loadMessages(ctx, id)
	if err != nil {
		return nil, err
	}

	return &domain.SessionRecord{
		ID:       id,
		Messages: messages,
		Meta: domain.SessionMeta{
			Summary: domain.SummaryState{
				Summary:   doc.Summary,
				UpToIndex: doc.SummaryUpToIndex,
			},
			Suggest: domain.SuggestionState{
				Mode:               domain.UserMode(doc.UserMode),
				ClickCount:         doc.ClickCount,
				LastFromSuggestion: doc.LastFromSuggestion,
				ClickPending:       doc.ClickPending,
			},
			LastHandler: domain.HandlerKey(doc.LastHandler),
			EntryPath:   doc.EntryPath,
		},
		UpdatedAt: doc.UpdatedAt,
	}, nil
}

// Upsert writes the session document and rewrites its message
// subcollection in one batch.
func (s *Store) Upsert(ctx context.Context, rec *domain.SessionRecord) error {
	doc := sessionDoc{
		Summary:            rec.Meta.Summary.Summary,
		SummaryUpToIndex:   rec.Meta.Summary.UpToIndex,
		UserMode:           string(rec.Meta.Suggest.Mode),
		ClickCount:         rec.Meta.Suggest.ClickCount,
		LastFromSuggestion: rec.Meta.Suggest.LastFromSuggestion,
		ClickPending:       rec.Meta.Suggest.ClickPending,
		LastHandler:        string(rec.Meta.LastHandler),
		EntryPath:          rec.Meta.EntryPath,
		MessageCount:       len(rec.Messages),
		UpdatedAt:          rec.UpdatedAt,
	}

	batch := s.client.BulkWriter(ctx)
	if _, err := batch.Set(s.sessionDocRef(rec.ID), doc); err != nil {
		return fmt.Errorf("firestore Upsert session: %w", err)
	}
	for i, m := range rec.Messages {
		md := messageDoc{
			Index:     i,
			Role:      string(m.Role),
			Text:      m.Text,
			CreatedAt: m.CreatedAt,
		}
		ref := s.messagesCol(rec.ID).Doc(fmt.Sprintf("%06d", i))
		if _, err := batch.Set(ref, md); err != nil {
			return fmt.Errorf("firestore Upsert message %d: %w", i, err)
		}
	}
	batch.End()
	return nil
}

// Delete removes the session document and its messages.
func (s *Store) Delete(ctx context.Context, id domain.SessionID) error {
	iter := s.messagesCol(id).Documents(ctx)
	defer iter.Stop()
	for {
		snap, err := iter.Next()
		if err != nil {
			if err == iterator.Done {
				break
			}
			return fmt.Errorf("firestore Delete messages: %w", err)
		}
		if _, err := snap.Ref.Delete(ctx); err != nil {
			return fmt.Errorf("firestore Delete message: %w", err)
		}
	}
	if _, err := s.sessionDocRef(id).Delete(ctx); err != nil {
		return fmt.Errorf("firestore Delete session: %w", err)
	}
	return nil
}

func (s *Store) loadMessages(ctx context.Context, id domain.SessionID) ([]domain.Message, error) {
	iter := s.messagesCol(id).OrderBy("index", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var out []domain.Message
	for {
		snap, err := iter.Next()
		if err != nil {
			if err == iterator.Done {
				break
			}
			return nil, fmt.Errorf("firestore loadMessages: %w", err)
		}

		var doc messageDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode messageDoc: %w", err)
		}

		out = append(out, domain.Message{
			ID:        domain.MessageID(snap.Ref.ID),
			Role:      domain.Role(doc.Role),
			Text:      doc.Text,
			CreatedAt: doc.CreatedAt,
		})
	}
	return out, nil
}
