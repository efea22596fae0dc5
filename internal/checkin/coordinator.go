// Package checkin drives the attendance reconciliation dialog: search,
// disambiguation, confirmation, and idempotent marking against today's
// activity.
package checkin

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"asistencia/internal/backend"
	"asistencia/internal/handoff"
	"asistencia/internal/metrics"
	"asistencia/internal/resolver"
)

// State names one step of the check-in dialog.
type State string

const (
	StateIdle          State = "idle"
	StateSearching     State = "searching"
	StateNoMatch       State = "no_match"
	StateOneMatch      State = "one_match"
	StateManyMatches   State = "many_matches"
	StateMarking       State = "marking"
	StateMarked        State = "marked"
	StateAlreadyMarked State = "already_marked"
	StateError         State = "error"
)

var (
	// ErrBusy rejects re-entrant submissions while a network call is in
	// flight.
	ErrBusy = errors.New("operation already in progress")
	// ErrNoActivityToday is the first-class "nothing to do" outcome: no
	// activity is scheduled for today, so no mark call is issued. It is not
	// a failure and does not move the session to StateError.
	ErrNoActivityToday = errors.New("no activity scheduled for today")
	// ErrUnknownPerson is returned when a confirmation names a person that
	// is not among the current candidates.
	ErrUnknownPerson = errors.New("person is not a current candidate")
	// ErrNothingSelected rejects a batch mark with an empty selection.
	ErrNothingSelected = errors.New("nothing selected")
)

const (
	msgSearchFailed = "Error al buscar. Intenta de nuevo."
	msgNotFound     = "No se encontró una persona con esos datos."
	msgNoActivity   = "No hay actividades programadas para hoy."
	msgMarkFailed   = "No se pudo registrar la asistencia."
)

// Config carries the session's fixed wiring.
type Config struct {
	// ActivityID, when set, pins every mark call to that activity instead
	// of resolving today's.
	ActivityID string
	Log        zerolog.Logger
}

// Candidate is one search result with its session-local attended marker.
// The marker only renders check state; the backend owns attendance.
type Candidate struct {
	Person   backend.Person `json:"person"`
	Attended bool           `json:"attended"`
}

// Result is a terminal success of a single mark.
type Result struct {
	State   State
	Person  backend.Person
	Outcome backend.Outcome
	Message string
}

// Session is the state machine for one open check-in dialog. All durable
// data lives on the backend; the session only holds the current search and
// its ephemeral attended markers.
type Session struct {
	client   *backend.Client
	resolver *resolver.Resolver
	handoff  handoff.Store
	log      zerolog.Logger

	activityID string

	mu         sync.Mutex
	busy       bool
	state      State
	query      string
	kind       resolver.QueryKind
	candidates []backend.Person
	selection  []string
	attended   map[string]bool
	message    string
	prefill    handoff.Prefill
}

// NewSession creates an idle session.
func NewSession(client *backend.Client, res *resolver.Resolver, store handoff.Store, cfg Config) *Session {
	return &Session{
		client:     client,
		resolver:   res,
		handoff:    store,
		log:        cfg.Log.With().Str("component", "checkin").Logger(),
		activityID: cfg.ActivityID,
		state:      StateIdle,
		attended:   make(map[string]bool),
	}
}

// State returns the current dialog state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Message returns the current user-facing message.
func (s *Session) Message() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.message
}

// Candidates returns the current search results with their attended markers.
func (s *Session) Candidates() []Candidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Candidate, 0, len(s.candidates))
	for _, p := range s.candidates {
		out = append(out, Candidate{Person: p, Attended: s.attended[p.ID]})
	}
	return out
}

// Prefill returns the registration prefill exposed by the NoMatch branch.
func (s *Session) Prefill() handoff.Prefill {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefill
}

// Attended reports the session-local attended marker for a person.
func (s *Session) Attended(personID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attended[personID]
}

// Reset discards the dialog: search state, selection, messages, and the
// attended markers. The next Search starts a fresh session. Any in-flight
// request keeps running; its result is ignored by the caller.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateIdle
	s.query = ""
	s.candidates = nil
	s.selection = nil
	s.attended = make(map[string]bool)
	s.message = ""
	s.prefill = nil
}

// begin marks the session busy in the given transient state.
func (s *Session) begin(transient State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return ErrBusy
	}
	s.busy = true
	s.state = transient
	return nil
}

func (s *Session) finish(state State, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	s.state = state
	s.message = message
}

// Search classifies the query, resolves it against the registry, and moves
// the session to NoMatch, OneMatch, or ManyMatches. A new query resets
// search-scoped state (candidates, selection, message) but not the attended
// markers; the target activity is recomputed per mark call.
func (s *Session) Search(ctx context.Context, query string) (State, error) {
	if err := s.begin(StateSearching); err != nil {
		return s.State(), err
	}

	s.mu.Lock()
	s.query = query
	s.candidates = nil
	s.selection = nil
	s.message = ""
	s.prefill = nil
	s.mu.Unlock()

	persons, kind, err := s.resolver.Resolve(ctx, query)
	if err != nil {
		if errors.Is(err, resolver.ErrEmptyQuery) {
			s.finish(StateIdle, "")
			return StateIdle, err
		}
		s.log.Error().Err(err).Str("query", query).Msg("search failed")
		s.finish(StateError, msgSearchFailed)
		return StateError, err
	}
	if kind == resolver.KindID {
		metrics.Searches.WithLabelValues("cedula").Inc()
	} else {
		metrics.Searches.WithLabelValues("nombre").Inc()
	}

	s.mu.Lock()
	s.kind = kind
	s.mu.Unlock()

	if len(persons) == 0 {
		prefill := handoff.Prefill(resolver.Prefill(query))
		s.mu.Lock()
		s.prefill = prefill
		s.mu.Unlock()
		if s.handoff != nil {
			if err := s.handoff.Put(ctx, prefill); err != nil {
				s.log.Error().Err(err).Msg("staging prefill failed")
			}
		}
		s.finish(StateNoMatch, msgNotFound)
		return StateNoMatch, nil
	}

	if kind == resolver.KindID {
		// A cedula search confirms against the first record only.
		s.mu.Lock()
		s.candidates = persons[:1]
		s.mu.Unlock()
		s.finish(StateOneMatch, "")
		return StateOneMatch, nil
	}

	s.mu.Lock()
	s.candidates = persons
	s.mu.Unlock()
	s.finish(StateManyMatches, "")
	return StateManyMatches, nil
}

// candidate looks up a person among the current candidates. An empty id
// selects the single OneMatch candidate.
func (s *Session) candidate(personID string) (backend.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if personID == "" && len(s.candidates) == 1 {
		return s.candidates[0], nil
	}
	for _, p := range s.candidates {
		if p.ID == personID {
			return p, nil
		}
	}
	return backend.Person{}, ErrUnknownPerson
}

// resolveActivity picks the mark target: an explicitly pinned activity wins,
// otherwise the first of today's activities as listed by the backend.
func (s *Session) resolveActivity(ctx context.Context) (backend.Activity, error) {
	if s.activityID != "" {
		return backend.Activity{ID: s.activityID}, nil
	}
	activities, err := s.client.ActivitiesForDate(ctx, backend.Today())
	if err != nil {
		return backend.Activity{}, err
	}
	if len(activities) == 0 {
		return backend.Activity{}, ErrNoActivityToday
	}
	return activities[0], nil
}

// Confirm marks attendance for one confirmed person. registered=false from
// the backend is the idempotent no-op confirmation and lands in
// StateAlreadyMarked, still a success; true or unknown lands in StateMarked.
// A transport failure moves to StateError and leaves the person's attended
// marker untouched; there is no automatic retry.
func (s *Session) Confirm(ctx context.Context, personID string) (Result, error) {
	person, err := s.candidate(personID)
	if err != nil {
		return Result{}, err
	}
	if err := s.begin(StateMarking); err != nil {
		return Result{}, err
	}

	activity, err := s.resolveActivity(ctx)
	if err != nil {
		if errors.Is(err, ErrNoActivityToday) {
			// Nothing to do: no mark call, not an error state.
			s.mu.Lock()
			branch := stateForCandidates(len(s.candidates), s.kind)
			s.mu.Unlock()
			s.finish(branch, msgNoActivity)
			return Result{}, err
		}
		s.log.Error().Err(err).Msg("activity lookup failed")
		s.finish(StateError, msgMarkFailed)
		return Result{}, err
	}

	outcome, err := s.client.MarkAttendance(ctx, activity.ID, person.ID)
	if err != nil {
		metrics.Marks.WithLabelValues("error").Inc()
		s.log.Error().Err(err).Str("persona", person.ID).Msg("mark attendance failed")
		s.finish(StateError, msgMarkFailed)
		return Result{}, err
	}

	s.mu.Lock()
	s.attended[person.ID] = true
	s.mu.Unlock()

	res := Result{Person: person, Outcome: outcome}
	if outcome.AlreadyMarked() {
		metrics.Marks.WithLabelValues("already_marked").Inc()
		res.State = StateAlreadyMarked
		res.Message = outcome.Message
		if res.Message == "" {
			res.Message = fmt.Sprintf("La persona %s ya estaba registrada para esta clase.", person.DisplayName())
		}
	} else {
		metrics.Marks.WithLabelValues("marked").Inc()
		res.State = StateMarked
		res.Message = outcome.Message
		if res.Message == "" {
			res.Message = fmt.Sprintf("Asistencia registrada para %s.", person.DisplayName())
		}
	}
	s.finish(res.State, res.Message)
	return res, nil
}

// stateForCandidates restores the disambiguation branch after a no-activity
// outcome.
func stateForCandidates(n int, kind resolver.QueryKind) State {
	switch {
	case n == 0:
		return StateNoMatch
	case kind == resolver.KindID:
		return StateOneMatch
	default:
		return StateManyMatches
	}
}
