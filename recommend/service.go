package recommend

import (
	"context"
	"fmt"
	"strings"

	apperrors "nomadmatch/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// DefaultResults is the store width used when a caller does not ask for one.
	DefaultResults = 10
	// QuickSearchWidth is how many candidates the quick path asks the store for.
	QuickSearchWidth = 10
)

// Options tunes result widths.
type Options struct {
	DefaultResults int
	MaxResults     int
}

// Service sequences the store, scorers, preference filter and advice
// generator into the public lookup and preference operations. It holds no
// per-request state and is safe for concurrent use.
type Service struct {
	store        DocumentStore
	preferences  PreferenceStore
	advisor      AdviceGenerator
	entitlements EntitlementChecker
	logger       *zap.Logger
	opts         Options
}

func NewService(store DocumentStore, preferences PreferenceStore, advisor AdviceGenerator, entitlements EntitlementChecker, logger *zap.Logger, opts Options) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.DefaultResults <= 0 {
		opts.DefaultResults = DefaultResults
	}
	if opts.MaxResults < opts.DefaultResults {
		opts.MaxResults = opts.DefaultResults
	}
	return &Service{
		store:        store,
		preferences:  preferences,
		advisor:      advisor,
		entitlements: entitlements,
		logger:       logger,
		opts:         opts,
	}
}

// QuickLookup returns the top three cities for a free-text message. No
// authentication applies; sessionID is echoed back unchanged.
func (s *Service) QuickLookup(ctx context.Context, message, sessionID string) (QuickResult, error) {
	candidates, err := s.store.SimilaritySearch(ctx, message, QuickSearchWidth)
	if err != nil {
		return QuickResult{}, apperrors.Collaborator("document store", err)
	}

	cities := Summarize(candidates, QuickLimit)

	s.logger.Debug("Quick lookup completed",
		zap.String("session_id", sessionID),
		zap.Int("candidates", len(candidates)),
		zap.Int("cities", len(cities)))

	return QuickResult{
		Summary:   fmt.Sprintf("Found %d cities for you", len(cities)),
		SessionID: sessionID,
		Cities:    cities,
	}, nil
}

// PremiumLookup runs the full ranking path for an entitled user: store
// search of width k, premium ranking, removal of disliked cities and advice
// generation. k <= 0 selects the default width. A user without the premium
// entitlement is rejected before the store is contacted.
func (s *Service) PremiumLookup(ctx context.Context, query string, k int, user User) (PremiumResult, error) {
	premium, err := s.entitlements.IsPremium(ctx, user)
	if err != nil {
		return PremiumResult{}, apperrors.WrapError(err, "check premium entitlement")
	}
	if !premium {
		return PremiumResult{}, apperrors.WrapErrorf(apperrors.ErrForbidden, "premium subscription required for user %s", user.ID)
	}

	k = s.resolveWidth(k)

	candidates, err := s.store.SimilaritySearch(ctx, query, k)
	if err != nil {
		return PremiumResult{}, apperrors.Collaborator("document store", err)
	}

	ranked := RankPremium(candidates, k)

	dislikes, err := s.preferences.ListDislikes(ctx, user.ID)
	if err != nil {
		return PremiumResult{}, apperrors.WrapError(err, "list disliked cities")
	}
	results := FilterDisliked(ranked, NewDislikeSet(dislikes))

	advice, err := s.advisor.Generate(ctx, query, results)
	if err != nil {
		return PremiumResult{}, apperrors.Collaborator("advice generator", err)
	}

	s.logger.Debug("Premium lookup completed",
		zap.String("user_id", user.ID.String()),
		zap.Int("k", k),
		zap.Int("candidates", len(candidates)),
		zap.Int("filtered_out", len(ranked)-len(results)))

	return PremiumResult{
		Results: results,
		Query:   query,
		Count:   len(results),
		Advice:  advice,
	}, nil
}

func (s *Service) resolveWidth(k int) int {
	if k <= 0 {
		return s.opts.DefaultResults
	}
	return min(k, s.opts.MaxResults)
}

// ParseAction validates a raw action value.
func ParseAction(raw string) (Action, error) {
	switch Action(raw) {
	case ActionLike, ActionDislike:
		return Action(raw), nil
	default:
		return "", apperrors.WrapErrorf(apperrors.ErrInvalidInput, "action must be '%s' or '%s', got %q", ActionLike, ActionDislike, raw)
	}
}

// SetPreference stores a like or dislike for a city, replacing any earlier
// action the user recorded for the same city.
func (s *Service) SetPreference(ctx context.Context, userID uuid.UUID, cityName string, rawAction string) (Preference, error) {
	action, err := ParseAction(rawAction)
	if err != nil {
		return Preference{}, err
	}
	cityName = strings.TrimSpace(cityName)
	if cityName == "" {
		return Preference{}, apperrors.WrapError(apperrors.ErrInvalidInput, "city name is required")
	}

	pref, err := s.preferences.UpsertPreference(ctx, userID, cityName, action)
	if err != nil {
		return Preference{}, apperrors.WrapErrorf(err, "save preference for %s", cityName)
	}

	s.logger.Info("City preference saved",
		zap.String("user_id", userID.String()),
		zap.String("city_name", pref.CityName),
		zap.String("action", string(pref.Action)))
	return pref, nil
}

// ListPreferences returns every preference of a user plus the liked and
// disliked city names.
func (s *Service) ListPreferences(ctx context.Context, userID uuid.UUID) (PreferenceList, error) {
	prefs, err := s.preferences.ListPreferences(ctx, userID)
	if err != nil {
		return PreferenceList{}, apperrors.WrapError(err, "list preferences")
	}

	list := PreferenceList{
		UserID:      userID,
		Preferences: make([]Preference, 0, len(prefs)),
		Likes:       []string{},
		Dislikes:    []string{},
	}
	for _, p := range prefs {
		list.Preferences = append(list.Preferences, p)
		switch p.Action {
		case ActionLike:
			list.Likes = append(list.Likes, p.CityName)
		case ActionDislike:
			list.Dislikes = append(list.Dislikes, p.CityName)
		}
	}
	return list, nil
}

// DeletePreference removes the user's preference for a city. A missing
// preference is reported as not found.
func (s *Service) DeletePreference(ctx context.Context, userID uuid.UUID, cityName string) error {
	found, err := s.preferences.DeletePreference(ctx, userID, strings.TrimSpace(cityName))
	if err != nil {
		return apperrors.WrapErrorf(err, "delete preference for %s", cityName)
	}
	if !found {
		return apperrors.WrapErrorf(apperrors.ErrNotFound, "no preference for %s", cityName)
	}

	s.logger.Info("City preference deleted",
		zap.String("user_id", userID.String()),
		zap.String("city_name", cityName))
	return nil
}
