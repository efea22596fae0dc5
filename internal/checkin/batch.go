package checkin

import (
	"context"
	"errors"
	"fmt"

	"asistencia/internal/backend"
	"asistencia/internal/metrics"
)

// Policy names the batch failure policy.
type Policy int

const (
	// PolicyStopOnError abandons the batch at the first failed mark call.
	// Persons marked before the failure keep their attended marker; the
	// backend state of the remainder is unknown.
	PolicyStopOnError Policy = iota
	// PolicyContinueOnError attempts every selected person and aggregates
	// per-item results. The operation still reports failure if any item
	// failed.
	PolicyContinueOnError
)

// ItemResult is the per-person result of a batch mark.
type ItemResult struct {
	PersonID string
	Outcome  backend.Outcome
	Err      error
	// Skipped marks persons already attended this session; no call is
	// issued for them.
	Skipped bool
}

// BatchResult aggregates one batch operation.
type BatchResult struct {
	Activity backend.Activity
	Items    []ItemResult
	Failed   int
	Marked   int
	Skipped  int
}

// Select adds a person to the batch selection, keeping selection order.
// Persons already attended this session are not selectable.
func (s *Session) Select(personID string) error {
	if _, err := s.candidate(personID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attended[personID] {
		return nil
	}
	for _, id := range s.selection {
		if id == personID {
			return nil
		}
	}
	s.selection = append(s.selection, personID)
	return nil
}

// Deselect removes a person from the batch selection.
func (s *Session) Deselect(personID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, id := range s.selection {
		if id == personID {
			s.selection = append(s.selection[:i], s.selection[i+1:]...)
			return
		}
	}
}

// Selection returns the selected person ids in selection order.
func (s *Session) Selection() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.selection...)
}

// MarkSelected marks attendance for the given persons, one sequential call
// per person in selection order. A nil ids slice uses the session's
// selection. The activity is resolved once for the whole batch. On full
// success the selection is cleared.
func (s *Session) MarkSelected(ctx context.Context, ids []string, policy Policy) (BatchResult, error) {
	if ids == nil {
		ids = s.Selection()
	}
	if len(ids) == 0 {
		return BatchResult{}, ErrNothingSelected
	}
	if err := s.begin(StateMarking); err != nil {
		return BatchResult{}, err
	}

	activity, err := s.resolveActivity(ctx)
	if err != nil {
		if errors.Is(err, ErrNoActivityToday) {
			s.mu.Lock()
			branch := stateForCandidates(len(s.candidates), s.kind)
			s.mu.Unlock()
			s.finish(branch, msgNoActivity)
			return BatchResult{}, err
		}
		s.log.Error().Err(err).Msg("activity lookup failed")
		s.finish(StateError, msgMarkFailed)
		return BatchResult{}, err
	}

	res := BatchResult{Activity: activity}
	var firstErr error
	for _, id := range ids {
		if s.Attended(id) {
			res.Items = append(res.Items, ItemResult{PersonID: id, Skipped: true})
			res.Skipped++
			continue
		}
		outcome, err := s.client.MarkAttendance(ctx, activity.ID, id)
		if err != nil {
			metrics.Marks.WithLabelValues("error").Inc()
			s.log.Error().Err(err).Str("persona", id).Msg("batch mark failed")
			res.Items = append(res.Items, ItemResult{PersonID: id, Err: err})
			res.Failed++
			if firstErr == nil {
				firstErr = err
			}
			if policy == PolicyStopOnError {
				break
			}
			continue
		}
		if outcome.AlreadyMarked() {
			metrics.Marks.WithLabelValues("already_marked").Inc()
		} else {
			metrics.Marks.WithLabelValues("marked").Inc()
		}
		s.mu.Lock()
		s.attended[id] = true
		s.mu.Unlock()
		res.Items = append(res.Items, ItemResult{PersonID: id, Outcome: outcome})
		res.Marked++
	}

	if res.Failed > 0 {
		s.finish(StateError, msgMarkFailed)
		return res, fmt.Errorf("batch mark: %d of %d failed: %w", res.Failed, len(ids), firstErr)
	}

	s.mu.Lock()
	s.selection = nil
	s.mu.Unlock()
	s.finish(StateMarked, fmt.Sprintf("Asistencia registrada para %d persona(s).", res.Marked))
	return res, nil
}
