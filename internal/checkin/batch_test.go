package checkin

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func searchThree(t *testing.T, f *fakeRegistry) *Session {
	t.Helper()
	f.searchJSON = `{"data":[{"_id":"p1","nombreCompleto":"Juan Pérez"},{"_id":"p2","nombreCompleto":"Juan Pereira"},{"_id":"p3","nombreCompleto":"Juan Peralta"}]}`
	session, _ := f.newSession(Config{})
	state, err := session.Search(context.Background(), "Juan")
	require.NoError(t, err)
	require.Equal(t, StateManyMatches, state)
	return session
}

func TestMarkSelected_StopOnErrorAbandonsRemainder(t *testing.T) {
	f := newFakeRegistry(t)
	session := searchThree(t, f)
	f.markResponse = func(personaID string, call int) (int, string) {
		if personaID == "p2" {
			return http.StatusInternalServerError, `{"message":"boom"}`
		}
		return http.StatusOK, `{"registered":true}`
	}

	result, err := session.MarkSelected(context.Background(), []string{"p1", "p2", "p3"}, PolicyStopOnError)
	require.Error(t, err)
	require.Equal(t, 1, result.Marked)
	require.Equal(t, 1, result.Failed)

	require.True(t, session.Attended("p1"))
	require.False(t, session.Attended("p2"))
	require.False(t, session.Attended("p3"))

	// p3 was never attempted: the batch stops at the failing call.
	require.Equal(t, []string{"act1/p1", "act1/p2"}, f.calls())
	require.Equal(t, StateError, session.State())
}

func TestMarkSelected_ContinueOnErrorAggregates(t *testing.T) {
	f := newFakeRegistry(t)
	session := searchThree(t, f)
	f.markResponse = func(personaID string, call int) (int, string) {
		if personaID == "p2" {
			return http.StatusInternalServerError, `{"message":"boom"}`
		}
		return http.StatusOK, `{"registered":true}`
	}

	result, err := session.MarkSelected(context.Background(), []string{"p1", "p2", "p3"}, PolicyContinueOnError)
	require.Error(t, err)
	require.Equal(t, 2, result.Marked)
	require.Equal(t, 1, result.Failed)
	require.Len(t, result.Items, 3)

	require.True(t, session.Attended("p1"))
	require.False(t, session.Attended("p2"))
	require.True(t, session.Attended("p3"))
	require.Equal(t, []string{"act1/p1", "act1/p2", "act1/p3"}, f.calls())
}

func TestMarkSelected_SequentialInSelectionOrder(t *testing.T) {
	f := newFakeRegistry(t)
	session := searchThree(t, f)

	require.NoError(t, session.Select("p3"))
	require.NoError(t, session.Select("p1"))
	require.NoError(t, session.Select("p3")) // dedupe, keeps first position

	result, err := session.MarkSelected(context.Background(), nil, PolicyStopOnError)
	require.NoError(t, err)
	require.Equal(t, 2, result.Marked)
	require.Equal(t, []string{"act1/p3", "act1/p1"}, f.calls())
	require.Equal(t, StateMarked, session.State())
	require.Empty(t, session.Selection(), "selection clears on completion")
}

func TestMarkSelected_SkipsAlreadyAttended(t *testing.T) {
	f := newFakeRegistry(t)
	session := searchThree(t, f)

	_, err := session.Confirm(context.Background(), "p1")
	require.NoError(t, err)
	require.Equal(t, []string{"act1/p1"}, f.calls())

	result, err := session.MarkSelected(context.Background(), []string{"p1", "p2"}, PolicyStopOnError)
	require.NoError(t, err)
	require.Equal(t, 1, result.Marked)
	require.Equal(t, 1, result.Skipped)
	require.Equal(t, []string{"act1/p1", "act1/p2"}, f.calls())
}

func TestMarkSelected_NoActivityToday(t *testing.T) {
	f := newFakeRegistry(t)
	session := searchThree(t, f)
	f.mu.Lock()
	f.activitiesJSON = `{"data":[]}`
	f.mu.Unlock()

	_, err := session.MarkSelected(context.Background(), []string{"p1"}, PolicyStopOnError)
	require.ErrorIs(t, err, ErrNoActivityToday)
	require.Empty(t, f.calls())
	require.Equal(t, StateManyMatches, session.State())
}

func TestMarkSelected_EmptySelection(t *testing.T) {
	f := newFakeRegistry(t)
	session := searchThree(t, f)

	_, err := session.MarkSelected(context.Background(), []string{}, PolicyStopOnError)
	require.ErrorIs(t, err, ErrNothingSelected)
}

func TestSelect_UnknownPerson(t *testing.T) {
	f := newFakeRegistry(t)
	session := searchThree(t, f)
	require.ErrorIs(t, session.Select("ghost"), ErrUnknownPerson)
}
