package backend

import (
	"encoding/json"
	"errors"
)

// The backend is inconsistent about envelopes: some endpoints wrap the
// payload in {status, data}, others return it bare. All shape checks live
// here so call sites never re-probe responses.

// Page is a normalized paginated listing.
type Page[T any] struct {
	Data        []T
	CurrentPage int
	TotalPages  int
	TotalItems  int
	Limit       int
}

// decodePage accepts {data: [...], totalItems, ...}, {data: [...]}, or a
// bare array. Anything else normalizes to an empty zero-total page, so a
// malformed success and a genuine empty listing are indistinguishable past
// this point.
func decodePage[T any](raw json.RawMessage) Page[T] {
	if len(raw) == 0 {
		return emptyPage[T]()
	}
	var wrapped struct {
		Data        []T `json:"data"`
		CurrentPage int `json:"currentPage"`
		TotalPages  int `json:"totalPages"`
		TotalItems  int `json:"totalItems"`
		Limit       int `json:"limit"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Data != nil {
		p := Page[T]{
			Data:        wrapped.Data,
			CurrentPage: wrapped.CurrentPage,
			TotalPages:  wrapped.TotalPages,
			TotalItems:  wrapped.TotalItems,
			Limit:       wrapped.Limit,
		}
		if p.CurrentPage == 0 {
			p.CurrentPage = 1
		}
		if p.TotalPages == 0 {
			p.TotalPages = 1
		}
		if p.TotalItems == 0 {
			p.TotalItems = len(p.Data)
		}
		return p
	}
	var bare []T
	if err := json.Unmarshal(raw, &bare); err == nil && bare != nil {
		return Page[T]{Data: bare, CurrentPage: 1, TotalPages: 1, TotalItems: len(bare), Limit: len(bare)}
	}
	return emptyPage[T]()
}

func emptyPage[T any]() Page[T] {
	return Page[T]{CurrentPage: 1, TotalPages: 1}
}

// decodeList is decodePage without pagination, for endpoints that never page.
func decodeList[T any](raw json.RawMessage) []T {
	if len(raw) == 0 {
		return nil
	}
	var env struct {
		Data []T `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err == nil && env.Data != nil {
		return env.Data
	}
	var bare []T
	if err := json.Unmarshal(raw, &bare); err == nil {
		return bare
	}
	return nil
}

// unwrapObject decodes {data: {...}} or the bare object into out.
func unwrapObject(raw json.RawMessage, out any) error {
	if len(raw) == 0 {
		return errors.New("empty response")
	}
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err == nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err == nil {
			return nil
		}
	}
	return json.Unmarshal(raw, out)
}

// Outcome is the normalized result of a mark-attendance call. Registered is
// nil when the response carried neither field; callers must treat that as
// success with unknown novelty, never as "already marked" and never as a
// failure.
type Outcome struct {
	Registered *bool
	Message    string
}

// NewlyMarked reports whether the mark counts as a fresh registration.
// Unknown counts as fresh.
func (o Outcome) NewlyMarked() bool {
	return o.Registered == nil || *o.Registered
}

// AlreadyMarked reports the idempotent no-op confirmation.
func (o Outcome) AlreadyMarked() bool {
	return o.Registered != nil && !*o.Registered
}

type outcomeFields struct {
	Registered *bool   `json:"registered"`
	Message    *string `json:"message"`
}

// decodeOutcome accepts the registered/message pair at the top level or
// nested once under data.
func decodeOutcome(raw json.RawMessage) Outcome {
	if len(raw) == 0 {
		return Outcome{}
	}
	var shape struct {
		outcomeFields
		Data *outcomeFields `json:"data"`
	}
	if err := json.Unmarshal(raw, &shape); err != nil {
		return Outcome{}
	}
	if shape.Registered != nil || shape.Message != nil {
		return outcomeFrom(shape.outcomeFields)
	}
	if shape.Data != nil && (shape.Data.Registered != nil || shape.Data.Message != nil) {
		return outcomeFrom(*shape.Data)
	}
	return Outcome{}
}

func outcomeFrom(f outcomeFields) Outcome {
	o := Outcome{Registered: f.Registered}
	if f.Message != nil {
		o.Message = *f.Message
	}
	return o
}
