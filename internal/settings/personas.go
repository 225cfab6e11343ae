package settings

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/iconidentify/xreply/internal/domain"
)

const personaIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// NewPersonaID returns an id of the form persona-<unix ms>-<9 random chars>.
func NewPersonaID(now time.Time) string {
	var b strings.Builder
	for i := 0; i < 9; i++ {
		b.WriteByte(personaIDAlphabet[rand.IntN(len(personaIDAlphabet))])
	}
	return fmt.Sprintf("persona-%d-%s", now.UnixMilli(), b.String())
}

// SanitizePersonas trims fields and drops personas with neither a name nor a
// description. Missing ids are filled in.
func SanitizePersonas(in []domain.Persona, now time.Time) []domain.Persona {
	out := make([]domain.Persona, 0, len(in))
	for _, p := range in {
		p.Name = strings.TrimSpace(p.Name)
		p.Description = strings.TrimSpace(p.Description)
		if p.IsEmpty() {
			continue
		}
		if p.ID == "" {
			p.ID = NewPersonaID(now)
		}
		out = append(out, p)
	}
	return out
}

// ValidatePersonas enforces the persona limit.
func ValidatePersonas(personas []domain.Persona) error {
	if len(personas) > domain.MaxPersonas {
		return domain.ErrTooManyPersonas
	}
	return nil
}

// FindPersona returns the persona with id, or nil.
func FindPersona(personas []domain.Persona, id string) *domain.Persona {
	if id == "" {
		return nil
	}
	for i := range personas {
		if personas[i].ID == id {
			p := personas[i]
			return &p
		}
	}
	return nil
}
