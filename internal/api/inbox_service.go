package api

import (
	"context"
	"fmt"
	"strings"

	"curator/internal/inbox"
	"curator/internal/services"
	"curator/internal/store"
)

// InboxStore abstracts the read side of the review surface.
type InboxStore interface {
	GetInboxItem(ctx context.Context, id int64) (*store.InboxItem, error)
	ListInboxItems(ctx context.Context, filter store.InboxFilter) ([]*store.InboxItem, error)
	CountUnreviewed(ctx context.Context) (int, error)
}

// Reviewer abstracts the review workflow actions.
type Reviewer interface {
	Approve(ctx context.Context, id int64, overrides inbox.ApproveOverrides) (*store.Entry, error)
	Reject(ctx context.Context, id int64) error
	Reprobe(ctx context.Context, id int64) (*store.InboxItem, error)
	Redownload(ctx context.Context, id int64) (*store.InboxItem, error)
	Reclassify(ctx context.Context, id int64) (*store.InboxItem, error)
}

// InboxService exposes the inbox control surface.
type InboxService struct {
	store    InboxStore
	reviewer Reviewer
}

// NewInboxService constructs an InboxService.
func NewInboxService(st InboxStore, reviewer Reviewer) *InboxService {
	if st == nil || reviewer == nil {
		return nil
	}
	return &InboxService{store: st, reviewer: reviewer}
}

// List returns review items, optionally filtered by type and reviewed state.
// typeFilter is an inbox type name or empty; reviewed is a tri-state flag.
func (s *InboxService) List(ctx context.Context, typeFilter string, reviewed *bool) ([]InboxRecord, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	filter := store.InboxFilter{Reviewed: reviewed}
	if trimmed := strings.TrimSpace(typeFilter); trimmed != "" {
		parsed, ok := store.ParseInboxType(trimmed)
		if !ok {
			return nil, services.Wrap(services.ErrValidation, "api", "list inbox",
				fmt.Sprintf("unknown inbox type %q", trimmed), nil)
		}
		filter.Type = parsed
	}
	items, err := s.store.ListInboxItems(ctx, filter)
	if err != nil {
		return nil, err
	}
	return FromInboxItems(items), nil
}

// Describe fetches a single review item, returning nil when absent.
func (s *InboxService) Describe(ctx context.Context, id int64) (*InboxRecord, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	item, err := s.store.GetInboxItem(ctx, id)
	if err != nil || item == nil {
		return nil, err
	}
	record := FromInboxItem(item)
	return &record, nil
}

// Unreviewed returns the count of items awaiting review.
func (s *InboxService) Unreviewed(ctx context.Context) (int, error) {
	if s == nil || s.store == nil {
		return 0, nil
	}
	return s.store.CountUnreviewed(ctx)
}

// Approve resolves an item, committing an entry unless it is a duplicate.
func (s *InboxService) Approve(ctx context.Context, id int64, req ApproveRequest) (ApproveResponse, error) {
	if s == nil || s.reviewer == nil {
		return ApproveResponse{}, services.Wrap(services.ErrConfiguration, "api", "approve", "review workflow unavailable", nil)
	}
	entry, err := s.reviewer.Approve(ctx, id, inbox.ApproveOverrides{
		LibraryID:   req.LibraryID,
		Title:       strings.TrimSpace(req.Title),
		Subfolder:   strings.TrimSpace(req.Subfolder),
		Description: strings.TrimSpace(req.Description),
	})
	if err != nil {
		return ApproveResponse{}, err
	}
	record, err := s.Describe(ctx, id)
	if err != nil {
		return ApproveResponse{}, err
	}
	response := ApproveResponse{Entry: FromEntry(entry)}
	if record != nil {
		response.Item = *record
	}
	return response, nil
}

// Reject resolves an item without committing anything.
func (s *InboxService) Reject(ctx context.Context, id int64) error {
	if s == nil || s.reviewer == nil {
		return services.Wrap(services.ErrConfiguration, "api", "reject", "review workflow unavailable", nil)
	}
	return s.reviewer.Reject(ctx, id)
}

// Reprobe refreshes the stored source metadata.
func (s *InboxService) Reprobe(ctx context.Context, id int64) (*InboxRecord, error) {
	if s == nil || s.reviewer == nil {
		return nil, services.Wrap(services.ErrConfiguration, "api", "reprobe", "review workflow unavailable", nil)
	}
	return s.retry(ctx, id, s.reviewer.Reprobe)
}

// Redownload fetches the artifact again and refreshes technical data.
func (s *InboxService) Redownload(ctx context.Context, id int64) (*InboxRecord, error) {
	if s == nil || s.reviewer == nil {
		return nil, services.Wrap(services.ErrConfiguration, "api", "redownload", "review workflow unavailable", nil)
	}
	return s.retry(ctx, id, s.reviewer.Redownload)
}

// Reclassify re-runs classification and refreshes the suggestion.
func (s *InboxService) Reclassify(ctx context.Context, id int64) (*InboxRecord, error) {
	if s == nil || s.reviewer == nil {
		return nil, services.Wrap(services.ErrConfiguration, "api", "reclassify", "review workflow unavailable", nil)
	}
	return s.retry(ctx, id, s.reviewer.Reclassify)
}

func (s *InboxService) retry(ctx context.Context, id int64, action func(context.Context, int64) (*store.InboxItem, error)) (*InboxRecord, error) {
	item, err := action(ctx, id)
	if err != nil {
		return nil, err
	}
	record := FromInboxItem(item)
	return &record, nil
}
