package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"asistencia/internal/backend"
	"asistencia/internal/checkin"
	"asistencia/internal/config"
	"asistencia/internal/handoff"
	"asistencia/internal/registration"
	"asistencia/internal/resolver"
)

// Single-station check-in terminal. One session lives for as long as the
// program runs; the attendance state of record stays on the backend.
func main() {
	cfg := config.Load()
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	client := backend.New(cfg.BackendBaseURL)
	res := resolver.New(client, cfg.SearchPageLimit)
	prefills := handoff.NewInMemory()
	session := checkin.NewSession(client, res, prefills, checkin.Config{
		ActivityID: cfg.ActivityID,
		Log:        logger,
	})
	signup := registration.NewService(client, logger, cfg.ActivityID)

	fmt.Println("Registro de Asistencia")
	fmt.Println("Ingresa una cédula o un nombre completo; 'salir' para terminar.")

	ctx := context.Background()
	scanner := bufio.NewScanner(os.Stdin)
	for {
		line, ok := prompt(scanner, "> ")
		if !ok || line == "salir" || line == "exit" {
			break
		}

		state, err := session.Search(ctx, line)
		if err != nil {
			if errors.Is(err, resolver.ErrEmptyQuery) {
				continue
			}
			fmt.Println(session.Message())
			continue
		}

		switch state {
		case checkin.StateNoMatch:
			fmt.Println(session.Message())
			answer, _ := prompt(scanner, "¿No te has registrado? Registrar ahora (s/n): ")
			if strings.EqualFold(answer, "s") {
				register(ctx, scanner, signup, prefills)
			}
		case checkin.StateOneMatch:
			confirmSingle(ctx, scanner, session)
		case checkin.StateManyMatches:
			markFromList(ctx, scanner, session)
		}
	}
}

func confirmSingle(ctx context.Context, scanner *bufio.Scanner, session *checkin.Session) {
	candidate := session.Candidates()[0]
	fmt.Printf("Persona encontrada: %s (cédula %s)\n", candidate.Person.DisplayName(), candidate.Person.Cedula)
	answer, _ := prompt(scanner, "¿Marcar asistencia? (s/n): ")
	if !strings.EqualFold(answer, "s") {
		return
	}
	result, err := session.Confirm(ctx, "")
	if err != nil {
		fmt.Println(session.Message())
		return
	}
	if result.State == checkin.StateAlreadyMarked {
		fmt.Println(result.Message)
	} else {
		fmt.Println("¡Asistencia Registrada!")
		fmt.Println(result.Message)
	}
}

func markFromList(ctx context.Context, scanner *bufio.Scanner, session *checkin.Session) {
	candidates := session.Candidates()
	for i, c := range candidates {
		check := " "
		if c.Attended {
			check = "x"
		}
		fmt.Printf("%2d. [%s] %s (cédula %s)\n", i+1, check, c.Person.DisplayName(), c.Person.Cedula)
	}
	answer, ok := prompt(scanner, "Números a marcar (ej. 1,3) o vacío para cancelar: ")
	if !ok || answer == "" {
		return
	}
	for _, token := range strings.Split(answer, ",") {
		idx, err := strconv.Atoi(strings.TrimSpace(token))
		if err != nil || idx < 1 || idx > len(candidates) {
			fmt.Printf("Selección inválida: %s\n", token)
			return
		}
		if err := session.Select(candidates[idx-1].Person.ID); err != nil {
			fmt.Printf("Selección inválida: %s\n", token)
			return
		}
	}
	result, err := session.MarkSelected(ctx, nil, checkin.PolicyStopOnError)
	if err != nil {
		fmt.Println(session.Message())
		if result.Marked > 0 {
			fmt.Printf("Se marcaron %d antes del error.\n", result.Marked)
		}
		return
	}
	fmt.Println(session.Message())
}

func register(ctx context.Context, scanner *bufio.Scanner, signup *registration.Service, prefills handoff.Store) {
	var in registration.Input
	if staged, ok, _ := prefills.Take(ctx); ok {
		in.Cedula = staged["cedula"]
		in.Nombre = staged["nombre"]
	}

	if in.Cedula == "" {
		in.Cedula, _ = prompt(scanner, "Cédula: ")
	}
	if in.Nombre == "" {
		in.Nombre, _ = prompt(scanner, "Nombre: ")
	} else {
		fmt.Printf("Nombre: %s\n", in.Nombre)
	}
	in.Apellido, _ = prompt(scanner, "Apellido: ")
	in.FechaNacimiento, _ = prompt(scanner, "Fecha de nacimiento (AAAA-MM-DD): ")
	in.Email, _ = prompt(scanner, "Correo (opcional): ")
	in.Telefono, _ = prompt(scanner, "Teléfono (opcional): ")

	result, err := signup.Register(ctx, in)
	if err != nil {
		var fieldErrs registration.FieldErrors
		if errors.As(err, &fieldErrs) {
			for field, msg := range fieldErrs {
				fmt.Printf("  %s: %s\n", field, msg)
			}
			return
		}
		fmt.Println("No se pudo completar el registro. Intenta de nuevo.")
		return
	}
	fmt.Println(result.Message)
}

func prompt(scanner *bufio.Scanner, label string) (string, bool) {
	fmt.Print(label)
	if !scanner.Scan() {
		return "", false
	}
	return strings.TrimSpace(scanner.Text()), true
}
