package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// AnnounceFunc entrega o texto de um lembrete vencido ao usuário.
type AnnounceFunc func(ctx context.Context, text string) error

// Recurrence é um lembrete recorrente definido por expressão cron.
type Recurrence struct {
	Schedule string
	Text     string
}

// Scheduler é dono da lista de lembretes. Um único mutex protege tanto o
// append (vindo do dispatch) quanto o snapshot lido pelo loop de polling —
// um crescendo da lista durante a varredura nunca a corrompe.
type Scheduler struct {
	mu        sync.Mutex
	reminders []*Reminder

	storage  Storage // opcional; nil mantém tudo em memória
	announce AnnounceFunc
	interval time.Duration
	logger   *slog.Logger

	cron        *cron.Cron
	recurrences []Recurrence

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	// now é substituível em testes.
	now func() time.Time
}

// New cria o scheduler. interval é a cadência do polling (padrão 30s se
// zero); storage pode ser nil.
func New(interval time.Duration, storage Storage, announce AnnounceFunc, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		storage:  storage,
		announce: announce,
		interval: interval,
		logger:   logger.With("component", "reminders"),
		now:      time.Now,
	}
}

// AddRecurrence registra um lembrete recorrente. Deve ser chamado antes de
// Start.
func (s *Scheduler) AddRecurrence(rec Recurrence) {
	s.recurrences = append(s.recurrences, rec)
}

// Load carrega os lembretes persistidos para a memória. Start chama isso
// automaticamente; o CLI one-shot chama direto, sem subir o loop.
func (s *Scheduler) Load() error {
	if s.storage == nil {
		return nil
	}
	loaded, err := s.storage.LoadAll()
	if err != nil {
		return fmt.Errorf("loading reminders: %w", err)
	}
	s.mu.Lock()
	s.reminders = loaded
	s.mu.Unlock()
	s.logger.Info("reminders: loaded from storage", "count", len(loaded))
	return nil
}

// Start carrega os lembretes persistidos e inicia o loop de polling e o
// cron de recorrências.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	if err := s.Load(); err != nil {
		return err
	}

	if len(s.recurrences) > 0 {
		s.cron = cron.New()
		for _, rec := range s.recurrences {
			text := rec.Text
			if _, err := s.cron.AddFunc(rec.Schedule, func() {
				s.announceText(s.ctx, text)
			}); err != nil {
				s.logger.Warn("reminders: invalid recurrence schedule",
					"schedule", rec.Schedule, "error", err)
				continue
			}
			s.logger.Info("reminders: recurrence registered",
				"schedule", rec.Schedule, "text", text)
		}
		s.cron.Start()
	}

	s.done = make(chan struct{})
	go s.loop()
	s.logger.Info("reminders: scheduler started", "poll_interval", s.interval)
	return nil
}

// Stop encerra o loop e o cron. A espera é limitada: se o loop não
// confirmar a saída dentro do prazo, o desligamento prossegue com um aviso.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}

	if s.cron != nil {
		cronCtx := s.cron.Stop()
		select {
		case <-cronCtx.Done():
		case <-time.After(5 * time.Second):
			s.logger.Warn("reminders: cron stop timed out")
		}
	}

	if s.done != nil {
		select {
		case <-s.done:
		case <-time.After(s.interval + time.Second):
			s.logger.Warn("reminders: scheduler stop timed out")
		}
	}
}

// Add registra um lembrete novo. Chamado pela regra de dispatch em
// concorrência com o loop de polling.
func (s *Scheduler) Add(text string, dueAt time.Time) (*Reminder, error) {
	r := &Reminder{
		ID:        uuid.NewString(),
		Text:      text,
		DueAt:     dueAt,
		CreatedAt: s.now(),
	}

	s.mu.Lock()
	s.reminders = append(s.reminders, r)
	s.mu.Unlock()

	if s.storage != nil {
		if err := s.storage.Save(r); err != nil {
			return r, fmt.Errorf("persisting reminder: %w", err)
		}
	}

	s.logger.Info("reminders: added", "id", r.ID, "due_at", r.DueAt, "text", text)
	return r, nil
}

// AddAtClock registra um lembrete para um horário "15:04", aplicando a
// política hoje-ou-amanhã de NextOccurrence.
func (s *Scheduler) AddAtClock(text, clock string) (*Reminder, error) {
	dueAt, err := NextOccurrence(clock, s.now())
	if err != nil {
		return nil, err
	}
	return s.Add(text, dueAt)
}

// Pending retorna cópias dos lembretes ainda não anunciados, ordenados por
// vencimento crescente.
func (s *Scheduler) Pending() []Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := make([]Reminder, 0, len(s.reminders))
	for _, r := range s.reminders {
		if !r.Notified {
			pending = append(pending, *r)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].DueAt.Before(pending[j].DueAt)
	})
	return pending
}

// loop é o corpo do serviço em background.
func (s *Scheduler) loop() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.runCheck(s.ctx)
		}
	}
}

// runCheck protege uma passada do poll. Um storage com bug não pode
// derrubar o serviço inteiro.
func (s *Scheduler) runCheck(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("reminders: poll pass panicked", "panic", r)
		}
	}()
	s.checkDue(ctx)
}

// checkDue varre os lembretes vencidos e anuncia cada um exatamente uma
// vez. A marcação Notified acontece dentro do lock, no momento da coleta —
// o snapshot já reivindica os vencidos, então um append (ou outra
// varredura) concorrente nunca duplica um anúncio. A fala em si acontece
// fora do lock para não segurar o dispatch durante o áudio.
func (s *Scheduler) checkDue(ctx context.Context) {
	now := s.now()

	s.mu.Lock()
	var claimed []Reminder
	for _, r := range s.reminders {
		if !r.Notified && !now.Before(r.DueAt) {
			r.Notified = true
			claimed = append(claimed, *r)
		}
	}
	s.mu.Unlock()

	for _, r := range claimed {
		if s.storage != nil {
			if err := s.storage.MarkNotified(r.ID); err != nil {
				s.logger.Warn("reminders: persisting notified flag failed",
					"id", r.ID, "error", err)
			}
		}
		s.announceText(ctx, r.Text)
		s.logger.Info("reminders: fired", "id", r.ID, "text", r.Text)
	}
}

// announceText entrega um texto com recuperação de pânico — um anúncio que
// falha nunca derruba o loop.
func (s *Scheduler) announceText(ctx context.Context, text string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("reminders: announce panicked", "panic", r)
		}
	}()
	if s.announce == nil {
		return
	}
	if err := s.announce(ctx, text); err != nil {
		s.logger.Warn("reminders: announce failed", "error", err)
	}
}
