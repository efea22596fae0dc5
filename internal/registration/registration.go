// Package registration handles sign-ups against the remote registry and the
// opportunistic attendance mark that follows a successful one.
package registration

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"asistencia/internal/backend"
	"asistencia/internal/metrics"
)

// Input is the sign-up form payload.
type Input struct {
	Cedula          string `json:"cedula"`
	Nombre          string `json:"nombre" validate:"required"`
	Apellido        string `json:"apellido" validate:"required"`
	Email           string `json:"email" validate:"omitempty,email"`
	Telefono        string `json:"telefono"`
	FechaNacimiento string `json:"fecha_nacimiento" validate:"required,datetime=2006-01-02"`
	Direccion       string `json:"direccion"`
	Ministerio      string `json:"ministerio"`
	NivelAcademico  string `json:"nivel_academico"`
	Ocupacion       string `json:"ocupacion"`
	Bautizado       bool   `json:"bautizado"`
	Genero          string `json:"genero"`
}

// FieldErrors maps form fields to user-facing messages. It is returned both
// for local validation failures and for backend-reported duplicates.
type FieldErrors map[string]string

// Error implements the error interface.
func (e FieldErrors) Error() string {
	parts := make([]string, 0, len(e))
	for field, msg := range e {
		parts = append(parts, field+": "+msg)
	}
	return "invalid registration: " + strings.Join(parts, "; ")
}

// Result is a successful registration.
type Result struct {
	Person backend.Person
	// Message is the user-facing confirmation, extended with an attendance
	// acknowledgment only when the backend actually returned one.
	Message string
	// AttendanceAcknowledged is true when the auto-mark side effect got a
	// backend message back.
	AttendanceAcknowledged bool
}

const (
	baseMessage     = "¡Gracias por registrarte en el Grupo de Jóvenes con Propósito!"
	followupMessage = " Pronto recibirás información sobre las actividades de los Jóvenes."
	attendedMessage = "\n¡Y por asistir a la clase de hoy!"
)

// The backend's own attendance message opens with a thank-you; strip it so
// the confirmation does not thank twice.
var gratitudePrefix = regexp.MustCompile(`^\s*¡?Gracias[.,!\s-]*`)

// Service registers persons and runs the auto-mark side effect.
type Service struct {
	client     *backend.Client
	validate   *validator.Validate
	log        zerolog.Logger
	activityID string
}

// NewService creates a service. activityID optionally pins the auto-mark to
// a fixed activity; empty resolves today's first.
func NewService(client *backend.Client, log zerolog.Logger, activityID string) *Service {
	return &Service{
		client:     client,
		validate:   validator.New(),
		log:        log.With().Str("component", "registration").Logger(),
		activityID: activityID,
	}
}

// Register validates the form, creates the person, and attempts the
// auto-mark. Duplicate-key conflicts come back as FieldErrors; any failure
// inside the side effect is logged and swallowed and never alters the
// registration outcome.
func (s *Service) Register(ctx context.Context, in Input) (Result, error) {
	if errs := s.validateInput(in); len(errs) > 0 {
		return Result{}, errs
	}

	created, err := s.client.CreatePerson(ctx, backend.CreatePersonInput{
		Cedula:          in.Cedula,
		Nombre:          in.Nombre,
		Apellido:        in.Apellido,
		Email:           in.Email,
		Telefono:        in.Telefono,
		FechaNacimiento: in.FechaNacimiento,
		Direccion:       in.Direccion,
		Ministerio:      in.Ministerio,
		NivelAcademico:  in.NivelAcademico,
		Ocupacion:       in.Ocupacion,
		Bautizado:       in.Bautizado,
		Genero:          in.Genero,
	})
	if err != nil {
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) && apiErr.Code() == "DUPLICATE_KEY" {
			metrics.Registrations.WithLabelValues("duplicate").Inc()
			return Result{}, duplicateFieldErrors(apiErr)
		}
		metrics.Registrations.WithLabelValues("error").Inc()
		s.log.Error().Err(err).Msg("create persona failed")
		return Result{}, err
	}
	metrics.Registrations.WithLabelValues("created").Inc()

	res := Result{Person: created, Message: baseMessage}
	if msg, ok := s.autoMark(ctx, created, in.Cedula); ok && msg != "" {
		res.AttendanceAcknowledged = true
		res.Message += attendedMessage
	}
	if in.Email != "" || in.Telefono != "" {
		res.Message += followupMessage
	}
	return res, nil
}

func (s *Service) validateInput(in Input) FieldErrors {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return FieldErrors{"form": "Datos inválidos."}
	}
	out := FieldErrors{}
	for _, fe := range verrs {
		switch fe.Field() {
		case "Nombre":
			out["nombre"] = "El nombre es requerido."
		case "Apellido":
			out["apellido"] = "El apellido es requerido."
		case "FechaNacimiento":
			out["fecha_nacimiento"] = "La fecha de nacimiento es requerida."
		case "Email":
			out["email"] = "El correo no es válido."
		}
	}
	return out
}

func duplicateFieldErrors(apiErr *backend.APIError) FieldErrors {
	out := FieldErrors{}
	for _, conflict := range apiErr.FieldConflicts() {
		switch conflict.Field {
		case "cedula":
			msg := conflict.Message
			if msg == "" {
				msg = "La cédula ya está registrada."
			}
			out["cedula"] = msg
		case "email":
			msg := conflict.Message
			if msg == "" {
				msg = "El correo ya está registrado."
			}
			out["email"] = msg
		}
	}
	if len(out) == 0 {
		out["form"] = apiErr.Message
	}
	return out
}

// autoMark looks up today's activities and, when one exists, marks the new
// person as attending the first. The person id from the create response is
// preferred; a fresh cedula search is the fallback when the backend did not
// return one. Every failure here is logged and swallowed.
func (s *Service) autoMark(ctx context.Context, created backend.Person, cedula string) (string, bool) {
	activityID := s.activityID
	if activityID == "" {
		activities, err := s.client.ActivitiesForDate(ctx, backend.Today())
		if err != nil {
			s.log.Error().Err(err).Msg("today's activities lookup failed")
			return "", false
		}
		if len(activities) == 0 {
			return "", false
		}
		activityID = activities[0].ID
	}

	personID := created.ID
	if personID == "" && cedula != "" {
		page, err := s.client.SearchPersons(ctx, backend.SearchFilter{Cedula: cedula})
		if err != nil {
			s.log.Error().Err(err).Msg("cedula lookup after create failed")
			return "", false
		}
		if len(page.Data) > 0 {
			personID = page.Data[0].ID
		}
	}
	if personID == "" {
		return "", false
	}

	outcome, err := s.client.MarkAttendance(ctx, activityID, personID)
	if err != nil {
		s.log.Error().Err(err).Str("persona", personID).Msg("auto mark failed")
		return "", false
	}
	if outcome.AlreadyMarked() {
		metrics.Marks.WithLabelValues("already_marked").Inc()
	} else {
		metrics.Marks.WithLabelValues("marked").Inc()
	}
	msg := strings.TrimSpace(gratitudePrefix.ReplaceAllString(outcome.Message, ""))
	return msg, msg != ""
}
