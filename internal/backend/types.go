package backend

import (
	"encoding/json"
	"strings"
)

// FlexString decodes a JSON string or bare number into a string. The
// registry stores cedulas and phone numbers as either depending on how the
// record was created.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (s *FlexString) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		*s = ""
		return nil
	}
	if b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = FlexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*s = FlexString(n.String())
	return nil
}

// String returns the underlying value.
func (s FlexString) String() string { return string(s) }

// Person is a registry record. Reads come back in camelCase, but older
// records carry nombre/apellido instead of nombreCompleto and
// fecha_nacimiento instead of fechaNacimiento.
type Person struct {
	ID              string     `json:"_id"`
	Cedula          FlexString `json:"cedula"`
	NombreCompleto  string     `json:"nombreCompleto"`
	Nombre          string     `json:"nombre,omitempty"`
	Apellido        string     `json:"apellido,omitempty"`
	Email           string     `json:"email,omitempty"`
	Telefono        FlexString `json:"telefono,omitempty"`
	FechaNacimiento string     `json:"fechaNacimiento,omitempty"`
	BirthDateSnake  string     `json:"fecha_nacimiento,omitempty"`
	Direccion       string     `json:"direccion,omitempty"`
	Bautizado       *bool      `json:"bautizado,omitempty"`
	Genero          string     `json:"genero,omitempty"`
	Ministerio      string     `json:"ministerio,omitempty"`
	NivelAcademico  string     `json:"nivel_academico,omitempty"`
	Ocupacion       string     `json:"ocupacion,omitempty"`
	CreatedAt       string     `json:"createdAt,omitempty"`
	UpdatedAt       string     `json:"updatedAt,omitempty"`
}

// DisplayName returns nombreCompleto when present, otherwise the joined
// nombre/apellido pair, otherwise the record id.
func (p Person) DisplayName() string {
	if p.NombreCompleto != "" {
		return p.NombreCompleto
	}
	if joined := strings.TrimSpace(p.Nombre + " " + p.Apellido); joined != "" {
		return joined
	}
	return p.ID
}

// BirthDate returns whichever birth date field the record carries.
func (p Person) BirthDate() string {
	if p.BirthDateSnake != "" {
		return p.BirthDateSnake
	}
	return p.FechaNacimiento
}

// CreatePersonInput is the registration payload. Keys are snake_case to
// match what the backend expects on writes.
type CreatePersonInput struct {
	Cedula          string `json:"cedula,omitempty"`
	Nombre          string `json:"nombre,omitempty"`
	Apellido        string `json:"apellido,omitempty"`
	NombreCompleto  string `json:"nombre_completo,omitempty"`
	Email           string `json:"email,omitempty"`
	Telefono        string `json:"telefono,omitempty"`
	FechaNacimiento string `json:"fecha_nacimiento,omitempty"`
	Direccion       string `json:"direccion,omitempty"`
	Ministerio      string `json:"ministerio,omitempty"`
	NivelAcademico  string `json:"nivel_academico,omitempty"`
	Ocupacion       string `json:"ocupacion,omitempty"`
	Bautizado       bool   `json:"bautizado"`
	Genero          string `json:"genero,omitempty"`
}

// Activity is a scheduled group event.
type Activity struct {
	ID          string   `json:"_id"`
	Titulo      string   `json:"titulo"`
	Descripcion string   `json:"descripcion,omitempty"`
	Fecha       string   `json:"fecha"`
	Asistentes  []string `json:"asistentes,omitempty"`
	CreatedAt   string   `json:"createdAt,omitempty"`
	UpdatedAt   string   `json:"updatedAt,omitempty"`
}

// CreateActivityInput is the payload for scheduling a new activity.
type CreateActivityInput struct {
	Titulo      string   `json:"titulo"`
	Descripcion string   `json:"descripcion,omitempty"`
	Fecha       string   `json:"fecha"`
	Asistentes  []string `json:"asistentes,omitempty"`
	Ponentes    []string `json:"ponentes,omitempty"`
}
