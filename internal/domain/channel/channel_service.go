package channel

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	lru "github.com/hashicorp/golang-lru"

	"github.com/facksten/PushRSP-Telegram-bot/internal/infrastructure/logger"
	"github.com/facksten/PushRSP-Telegram-bot/internal/utils/platformerrors"
)

// AdminChecker reports whether a telegram user may curate channels.
type AdminChecker func(userID int64) bool

type Service struct {
	repo     Repository
	isAdmin  AdminChecker
	validate *validator.Validate
	cache    *lru.Cache
	now      func() time.Time

	// cacheMu orders cache fills against purges; generation counts purges.
	cacheMu    sync.Mutex
	generation uint64
}

func NewService(repo Repository, isAdmin AdminChecker, cacheSize int) *Service {
	if cacheSize <= 0 {
		cacheSize = 128
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		log := logger.GetLogger()
		log.Error().Err(err).Msg("failed to create channel cache")
	}
	return &Service{
		repo:     repo,
		isAdmin:  isAdmin,
		validate: validator.New(),
		cache:    cache,
		now:      time.Now,
	}
}

type SuggestInput struct {
	Ref         string `validate:"required,max=255"`
	Username    string `validate:"omitempty,max=64"`
	Title       string `validate:"max=255"`
	Reason      string `validate:"max=1000"`
	SuggestedBy int64
}

type AddInput struct {
	Ref         string   `validate:"required,max=255"`
	Username    string   `validate:"omitempty,max=64"`
	Title       string   `validate:"max=255"`
	Description string   `validate:"max=2000"`
	Topics      []string `validate:"max=16,dive,min=2,max=64"`
	Level       Level    `validate:"omitempty,oneof=beginner intermediate advanced"`
	Language    string   `validate:"omitempty,oneof=fa en mixed"`
	AddedBy     int64
}

type MetadataInput struct {
	Topics   []string `validate:"max=16,dive,min=2,max=64"`
	Level    Level    `validate:"omitempty,oneof=beginner intermediate advanced"`
	Language string   `validate:"omitempty,oneof=fa en mixed"`
}

// Suggest records a user suggestion. Suggesting a channel that is already pending returns
// the existing record with created=false.
func (s *Service) Suggest(ctx context.Context, input SuggestInput) (*Channel, bool, error) {
	input.Ref = NormalizeRef(input.Ref)
	if err := s.validate.Struct(input); err != nil {
		return nil, false, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "invalid channel suggestion", err, "4a7d53c2-52f6-4b93-9a0e-6d1c1e58b2f1")
	}

	existing, err := s.repo.FindByRef(ctx, input.Ref)
	if err != nil {
		return nil, false, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to look up channel")
	}
	if existing != nil {
		switch existing.Status {
		case StatusPending:
			return existing, false, nil
		case StatusApproved:
			return existing, false, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeConflict, "channel is already approved", nil, "9d1b0f26-0c0a-4a3e-b5b8-0f7e5d3d8e11")
		default:
			return existing, false, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeConflict, "channel was rejected by an admin", nil, "c3e4a1f0-77b2-4e53-8d0f-2a7c9b6e5d40")
		}
	}

	created, err := s.repo.Create(ctx, &Channel{
		Ref:           input.Ref,
		Username:      strings.TrimPrefix(input.Username, "@"),
		Title:         strings.TrimSpace(input.Title),
		Status:        StatusPending,
		Language:      "fa",
		SuggestedBy:   input.SuggestedBy,
		SuggestReason: strings.TrimSpace(input.Reason),
	})
	if err != nil {
		return nil, false, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to create channel suggestion")
	}
	return created, true, nil
}

// Add lets an admin register a channel directly; a pending suggestion for the same ref is approved.
func (s *Service) Add(ctx context.Context, input AddInput) (*Channel, error) {
	if err := s.requireAdmin(ctx, input.AddedBy); err != nil {
		return nil, err
	}
	input.Ref = NormalizeRef(input.Ref)
	if err := s.validate.Struct(input); err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "invalid channel", err, "5f0c8e2a-1d3b-4c6e-9a7f-3b2d1c0e9f8a")
	}

	existing, err := s.repo.FindByRef(ctx, input.Ref)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to look up channel")
	}
	if existing != nil {
		switch existing.Status {
		case StatusPending:
			return s.transition(ctx, existing.ID, input.AddedBy, StatusApproved, "added by admin")
		case StatusApproved:
			return existing, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeConflict, "channel is already approved", nil, "0e6f3c1d-8b2a-47d9-a5e4-1c3b2a0f9e8d")
		default:
			return existing, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeConflict, "channel was rejected; resubmit it before approving", nil, "7b8c9d0e-1f2a-4b3c-8d4e-5f6a7b8c9d0e")
		}
	}

	language := input.Language
	if language == "" {
		language = "fa"
	}
	now := s.now().UTC()
	created, err := s.repo.Create(ctx, &Channel{
		Ref:         input.Ref,
		Username:    strings.TrimPrefix(input.Username, "@"),
		Title:       strings.TrimSpace(input.Title),
		Description: input.Description,
		Status:      StatusApproved,
		Topics:      normalizeTopics(input.Topics),
		Level:       input.Level,
		Language:    language,
		SuggestedBy: input.AddedBy,
		ReviewedBy:  input.AddedBy,
		ReviewedAt:  &now,
	})
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to add channel")
	}
	return created, nil
}

func (s *Service) Approve(ctx context.Context, id uint, adminID int64, note string) (*Channel, error) {
	return s.transition(ctx, id, adminID, StatusApproved, note)
}

// Reject moves a pending or approved channel to rejected. The row is kept.
func (s *Service) Reject(ctx context.Context, id uint, adminID int64, note string) (*Channel, error) {
	return s.transition(ctx, id, adminID, StatusRejected, note)
}

// Resubmit moves a rejected channel back to pending.
func (s *Service) Resubmit(ctx context.Context, id uint, adminID int64) (*Channel, error) {
	return s.transition(ctx, id, adminID, StatusPending, "resubmitted")
}

func (s *Service) transition(ctx context.Context, id uint, adminID int64, to Status, note string) (*Channel, error) {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	ch, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(ch.Status, to) {
		return nil, platformerrors.NewErrorWithContext(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeConflict,
			fmt.Sprintf("cannot move channel from %s to %s", ch.Status, to), nil, "2c4e6a8b-0d1f-4e3a-9b5c-7d9e1f3a5b7c",
			map[string]any{"channel_id": id})
	}

	from := ch.Status
	now := s.now().UTC()
	updated := *ch
	updated.Status = to
	updated.ReviewedBy = adminID
	updated.ReviewNote = strings.TrimSpace(note)
	updated.ReviewedAt = &now

	ok, err := s.repo.UpdateStatus(ctx, &updated, from)
	s.purge()
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to update channel status")
	}
	if !ok {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeConflict, "channel status changed concurrently", nil, "8e0a2c4d-6f1b-4a3c-b5d7-9e1f3a5c7e9b")
	}

	log := logger.GetLogger()
	log.Info().
		Uint("channel_id", id).
		Str("from", string(from)).
		Str("to", string(to)).
		Int64("admin_id", adminID).
		Msg("channel status changed")
	return &updated, nil
}

// UpdateMetadata replaces topics, level and language of a channel.
func (s *Service) UpdateMetadata(ctx context.Context, id uint, adminID int64, input MetadataInput) (*Channel, error) {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	if err := s.validate.Struct(input); err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "invalid channel metadata", err, "3d5f7b9a-1c2e-4f6a-8b0d-2e4a6c8e0b1d")
	}
	ch, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	updated := *ch
	updated.Topics = normalizeTopics(input.Topics)
	if input.Level != "" {
		updated.Level = input.Level
	}
	if input.Language != "" {
		updated.Language = input.Language
	}
	err = s.repo.UpdateMetadata(ctx, &updated)
	s.purge()
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to update channel metadata")
	}
	return &updated, nil
}

// Get returns a channel by internal id, or a NOT_FOUND error.
func (s *Service) Get(ctx context.Context, id uint) (*Channel, error) {
	var generation uint64
	if s.cache != nil {
		if cached, ok := s.cache.Get(id); ok {
			ch := *cached.(*Channel)
			return &ch, nil
		}
		generation = s.cacheGeneration()
	}
	ch, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load channel")
	}
	if ch == nil {
		return nil, notFound(ctx, strconv.FormatUint(uint64(id), 10))
	}
	if s.cache != nil {
		s.fill(id, ch, generation)
	}
	return ch, nil
}

// Resolve finds a channel by external ref, falling back to the internal id for numeric input.
func (s *Service) Resolve(ctx context.Context, ref string) (*Channel, error) {
	normalized := NormalizeRef(ref)
	if normalized == "" {
		return nil, notFound(ctx, ref)
	}
	ch, err := s.repo.FindByRef(ctx, normalized)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to resolve channel")
	}
	if ch != nil {
		return ch, nil
	}
	if id, parseErr := strconv.ParseUint(normalized, 10, 64); parseErr == nil && id > 0 {
		return s.Get(ctx, uint(id))
	}
	return nil, notFound(ctx, ref)
}

// ResolveApproved is Resolve restricted to channels that may be indexed or searched.
// Unknown and non-approved channels are both reported as NOT_FOUND.
func (s *Service) ResolveApproved(ctx context.Context, ref string) (*Channel, error) {
	ch, err := s.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	if !ch.IsApproved() {
		return nil, notFound(ctx, ref)
	}
	return ch, nil
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Channel, error) {
	channels, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to list channels")
	}
	return channels, nil
}

func (s *Service) ListApproved(ctx context.Context) ([]*Channel, error) {
	return s.List(ctx, ListFilter{Statuses: []Status{StatusApproved}})
}

func (s *Service) ListPending(ctx context.Context) ([]*Channel, error) {
	return s.List(ctx, ListFilter{Statuses: []Status{StatusPending}})
}

func (s *Service) CountByStatus(ctx context.Context) (map[Status]int64, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to count channels")
	}
	return counts, nil
}

// MarkIndexed stamps the time of the last successful indexing run.
func (s *Service) MarkIndexed(ctx context.Context, id uint, at time.Time) error {
	err := s.repo.MarkIndexed(ctx, id, at.UTC())
	s.purge()
	if err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to mark channel indexed")
	}
	return nil
}

func (s *Service) requireAdmin(ctx context.Context, userID int64) error {
	if s.isAdmin == nil || !s.isAdmin(userID) {
		return platformerrors.NewErrorWithContext(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeForbidden,
			"channel curation requires an admin", nil, "6a8c0e2b-4d6f-4a1c-9e3b-5d7f9a1c3e5b", map[string]any{"user_id": userID})
	}
	return nil
}

func (s *Service) cacheGeneration() uint64 {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	return s.generation
}

// fill caches ch unless a mutation purged the cache after the row was read.
func (s *Service) fill(id uint, ch *Channel, generation uint64) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if s.generation != generation {
		return
	}
	stored := *ch
	s.cache.Add(id, &stored)
}

func (s *Service) purge() {
	if s.cache == nil {
		return
	}
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.generation++
	s.cache.Purge()
}

func notFound(ctx context.Context, ref string) error {
	return platformerrors.NewErrorWithContext(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound,
		"channel not found", nil, "1b3d5f7a-9c0e-4b2d-8f4a-6c8e0a2c4e6f", map[string]any{"channel_ref": ref})
}

func normalizeTopics(topics []string) []string {
	seen := make(map[string]struct{}, len(topics))
	result := make([]string, 0, len(topics))
	for _, topic := range topics {
		t := strings.ToLower(strings.TrimSpace(topic))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		result = append(result, t)
	}
	return result
}
