// Package reminder implementa o agendador de lembretes do Clover. Lembretes
// pontuais são verificados por um loop de polling em intervalo fixo;
// lembretes recorrentes usam expressões cron. O anúncio sai pela voz do
// assistente (e pelos notificadores registrados), nunca mais de uma vez por
// lembrete.
package reminder

import (
	"fmt"
	"time"
)

// Reminder representa um lembrete pontual.
type Reminder struct {
	// ID é o identificador único do lembrete.
	ID string `json:"id" yaml:"id"`

	// Text é o que será falado quando o lembrete vencer.
	Text string `json:"text" yaml:"text"`

	// DueAt é o horário absoluto de vencimento.
	DueAt time.Time `json:"due_at" yaml:"due_at"`

	// Notified indica se o lembrete já foi anunciado. Transiciona de
	// false para true exatamente uma vez.
	Notified bool `json:"notified" yaml:"notified"`

	// CreatedAt é o timestamp de criação.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Storage persiste lembretes entre reinícios. A entrega é at-least-once:
// um lembrete anunciado mas não persistido pode ser anunciado de novo.
type Storage interface {
	// Save grava um lembrete novo.
	Save(r *Reminder) error

	// MarkNotified marca o lembrete como anunciado.
	MarkNotified(id string) error

	// LoadAll retorna todos os lembretes gravados.
	LoadAll() ([]*Reminder, error)
}

// NextOccurrence converte um horário de relógio "15:04" no próximo
// horário absoluto: hoje, se o horário ainda não passou no momento da
// criação; amanhã, se já passou. Igualdade exata conta como hoje (o
// lembrete vence no próximo ciclo de polling).
func NextOccurrence(clock string, now time.Time) (time.Time, error) {
	parsed, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid clock time %q (want HH:MM): %w", clock, err)
	}

	target := time.Date(now.Year(), now.Month(), now.Day(),
		parsed.Hour(), parsed.Minute(), 0, 0, now.Location())
	if target.Before(now) {
		target = target.Add(24 * time.Hour)
	}
	return target, nil
}
