package recommend

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	apperrors "nomadmatch/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(store *fakeStore, prefs *memoryPreferences, advisor *fakeAdvisor) *Service {
	return NewService(store, prefs, advisor, flagEntitlements{}, zap.NewNop(), Options{})
}

func TestQuickLookupReturnsTopThree(t *testing.T) {
	store := &fakeStore{candidates: sampleCandidates()}
	svc := newTestService(store, newMemoryPreferences(), &fakeAdvisor{})

	result, err := svc.QuickLookup(context.Background(), "sunny and cheap", "session-42")

	require.NoError(t, err)
	assert.Equal(t, QuickSearchWidth, store.lastK)
	require.Len(t, result.Cities, 3)
	assert.Equal(t, 91.0, result.Cities[0].Score)
	assert.Equal(t, "Lisbon", result.Cities[0].City)
	assert.Equal(t, "session-42", result.SessionID)
	assert.Equal(t, "Found 3 cities for you", result.Summary)
}

func TestQuickLookupNeverExceedsThree(t *testing.T) {
	var candidates []Candidate
	for i := 0; i < 10; i++ {
		candidates = append(candidates, city(fmt.Sprintf("City%d", i), 0.9-float64(i)/100))
	}
	svc := newTestService(&fakeStore{candidates: candidates}, newMemoryPreferences(), &fakeAdvisor{})

	result, err := svc.QuickLookup(context.Background(), "anything", "")

	require.NoError(t, err)
	assert.Len(t, result.Cities, QuickLimit)
}

func TestQuickLookupEmptyStoreIsSuccess(t *testing.T) {
	svc := newTestService(&fakeStore{}, newMemoryPreferences(), &fakeAdvisor{})

	result, err := svc.QuickLookup(context.Background(), "mars colony", "s")

	require.NoError(t, err)
	assert.Empty(t, result.Cities)
	assert.NotNil(t, result.Cities)
	assert.Equal(t, "Found 0 cities for you", result.Summary)
}

func TestQuickLookupStoreFailure(t *testing.T) {
	svc := newTestService(&fakeStore{err: context.DeadlineExceeded}, newMemoryPreferences(), &fakeAdvisor{})

	_, err := svc.QuickLookup(context.Background(), "beach", "s")

	require.Error(t, err)
	assert.True(t, apperrors.IsCollaboratorFailure(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPremiumLookupRejectsNonPremiumBeforeCollaborators(t *testing.T) {
	store := &fakeStore{candidates: sampleCandidates()}
	advisor := &fakeAdvisor{advice: "go to Lisbon"}
	svc := newTestService(store, newMemoryPreferences(), advisor)

	_, err := svc.PremiumLookup(context.Background(), "beach", 10, User{ID: uuid.New(), IsPremium: false})

	require.Error(t, err)
	assert.True(t, apperrors.IsForbidden(err))
	assert.False(t, apperrors.IsInvalidInput(err))
	assert.Zero(t, store.calls)
	assert.Zero(t, advisor.calls)
}

func TestPremiumLookupFiltersDislikes(t *testing.T) {
	user := User{ID: uuid.New(), IsPremium: true}
	prefs := newMemoryPreferences()
	_, err := prefs.UpsertPreference(context.Background(), user.ID, "porto", ActionDislike)
	require.NoError(t, err)
	_, err = prefs.UpsertPreference(context.Background(), user.ID, "Lisbon", ActionLike)
	require.NoError(t, err)

	store := &fakeStore{candidates: sampleCandidates()}
	advisor := &fakeAdvisor{advice: "Try Medellin in spring."}
	svc := newTestService(store, prefs, advisor)

	result, err := svc.PremiumLookup(context.Background(), "warm city with fast wifi", 0, user)

	require.NoError(t, err)
	assert.Equal(t, DefaultResults, store.lastK)
	assert.Equal(t, []string{"Lisbon", "Medellin", "Tbilisi"}, cityNames(result.Results))
	assert.Equal(t, 3, result.Count)
	assert.Equal(t, "warm city with fast wifi", result.Query)
	assert.Equal(t, "Try Medellin in spring.", result.Advice)
	assert.Equal(t, result.Results, advisor.received)
}

func TestPremiumLookupCountNeverExceedsK(t *testing.T) {
	var candidates []Candidate
	for i := 0; i < 20; i++ {
		candidates = append(candidates, city(fmt.Sprintf("City%d", i), 0.99-float64(i)/100))
	}
	user := User{ID: uuid.New(), IsPremium: true}
	svc := newTestService(&fakeStore{candidates: candidates}, newMemoryPreferences(), &fakeAdvisor{})

	result, err := svc.PremiumLookup(context.Background(), "q", 5, user)

	require.NoError(t, err)
	assert.Equal(t, 5, result.Count)
	assert.Len(t, result.Results, 5)
}

func TestPremiumLookupEmptyStoreIsSuccess(t *testing.T) {
	user := User{ID: uuid.New(), IsPremium: true}
	advisor := &fakeAdvisor{advice: "No matches yet."}
	svc := newTestService(&fakeStore{}, newMemoryPreferences(), advisor)

	result, err := svc.PremiumLookup(context.Background(), "q", 10, user)

	require.NoError(t, err)
	assert.Zero(t, result.Count)
	assert.Empty(t, result.Results)
	assert.Equal(t, 1, advisor.calls)
}

func TestPremiumLookupCollaboratorFailures(t *testing.T) {
	user := User{ID: uuid.New(), IsPremium: true}

	t.Run("store", func(t *testing.T) {
		advisor := &fakeAdvisor{}
		svc := newTestService(&fakeStore{err: errors.New("connection refused")}, newMemoryPreferences(), advisor)

		_, err := svc.PremiumLookup(context.Background(), "q", 10, user)

		require.Error(t, err)
		assert.True(t, apperrors.IsCollaboratorFailure(err))
		assert.Contains(t, err.Error(), "connection refused")
		assert.Zero(t, advisor.calls)
	})

	t.Run("advice", func(t *testing.T) {
		svc := newTestService(&fakeStore{candidates: sampleCandidates()}, newMemoryPreferences(), &fakeAdvisor{err: context.DeadlineExceeded})

		_, err := svc.PremiumLookup(context.Background(), "q", 10, user)

		require.Error(t, err)
		assert.True(t, apperrors.IsCollaboratorFailure(err))
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestSetPreferenceValidatesAction(t *testing.T) {
	svc := newTestService(&fakeStore{}, newMemoryPreferences(), &fakeAdvisor{})

	_, err := svc.SetPreference(context.Background(), uuid.New(), "Lisbon", "love")

	require.Error(t, err)
	assert.True(t, apperrors.IsInvalidInput(err))
	assert.Contains(t, err.Error(), "'like' or 'dislike'")

	_, err = svc.SetPreference(context.Background(), uuid.New(), "   ", "like")
	assert.True(t, apperrors.IsInvalidInput(err))
}

func TestSetPreferenceTwiceKeepsOneRow(t *testing.T) {
	prefs := newMemoryPreferences()
	svc := newTestService(&fakeStore{}, prefs, &fakeAdvisor{})
	userID := uuid.New()

	_, err := svc.SetPreference(context.Background(), userID, "Lisbon", "like")
	require.NoError(t, err)
	pref, err := svc.SetPreference(context.Background(), userID, "LISBON", "dislike")
	require.NoError(t, err)

	assert.Equal(t, 1, prefs.count(userID))
	assert.Equal(t, ActionDislike, pref.Action)
	assert.Equal(t, "Lisbon", pref.CityName)

	list, err := svc.ListPreferences(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, list.Preferences, 1)
	assert.Equal(t, []string{"Lisbon"}, list.Dislikes)
	assert.Empty(t, list.Likes)
}

func TestSetPreferenceConcurrentWritersLeaveOneRow(t *testing.T) {
	prefs := newMemoryPreferences()
	svc := newTestService(&fakeStore{}, prefs, &fakeAdvisor{})
	userID := uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			action := "like"
			if i%2 == 0 {
				action = "dislike"
			}
			_, err := svc.SetPreference(context.Background(), userID, "Bali", action)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, prefs.count(userID))
}

func TestListPreferencesGroupsByAction(t *testing.T) {
	prefs := newMemoryPreferences()
	svc := newTestService(&fakeStore{}, prefs, &fakeAdvisor{})
	userID := uuid.New()
	other := uuid.New()

	for city, action := range map[string]string{"Lisbon": "like", "Porto": "dislike"} {
		_, err := svc.SetPreference(context.Background(), userID, city, action)
		require.NoError(t, err)
	}
	_, err := svc.SetPreference(context.Background(), other, "Bangkok", "like")
	require.NoError(t, err)

	list, err := svc.ListPreferences(context.Background(), userID)

	require.NoError(t, err)
	assert.Equal(t, userID, list.UserID)
	assert.Len(t, list.Preferences, 2)
	assert.Equal(t, []string{"Lisbon"}, list.Likes)
	assert.Equal(t, []string{"Porto"}, list.Dislikes)
}

func TestDeletePreference(t *testing.T) {
	prefs := newMemoryPreferences()
	svc := newTestService(&fakeStore{}, prefs, &fakeAdvisor{})
	userID := uuid.New()

	err := svc.DeletePreference(context.Background(), userID, "Atlantis")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))

	_, err = svc.SetPreference(context.Background(), userID, "Chiang Mai", "like")
	require.NoError(t, err)
	require.NoError(t, svc.DeletePreference(context.Background(), userID, "chiang mai"))
	assert.Zero(t, prefs.count(userID))

	err = svc.DeletePreference(context.Background(), userID, "Chiang Mai")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestResolveWidth(t *testing.T) {
	svc := NewService(&fakeStore{}, newMemoryPreferences(), &fakeAdvisor{}, flagEntitlements{}, nil, Options{DefaultResults: 10, MaxResults: 25})

	assert.Equal(t, 10, svc.resolveWidth(0))
	assert.Equal(t, 10, svc.resolveWidth(-4))
	assert.Equal(t, 7, svc.resolveWidth(7))
	assert.Equal(t, 25, svc.resolveWidth(100))
}
