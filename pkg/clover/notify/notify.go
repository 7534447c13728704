// Package notify espelha os anúncios do assistente em canais externos:
// lembretes vencidos chegam no Discord e no WhatsApp mesmo quando ninguém
// está perto do alto-falante. Só saída — nenhuma mensagem entra por aqui.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jholhewres/clover/pkg/clover/ports"
)

// Kind classifica o evento notificado.
type Kind string

const (
	// KindReminder é um lembrete vencido.
	KindReminder Kind = "reminder"

	// KindReply é uma resposta falada do assistente (espelho opcional).
	KindReply Kind = "reply"
)

// Event é uma notificação pronta para envio.
type Event struct {
	Kind Kind
	Text string
}

// Notifier é um canal de saída. Connect pode falhar sem derrubar nada; o
// Manager simplesmente segue sem esse canal.
type Notifier interface {
	Name() string
	Connect(ctx context.Context) error
	Disconnect() error
	Notify(ctx context.Context, ev Event) error
}

// Manager orquestra os notificadores registrados. Conexão parcial é o modo
// normal de operação — quem conectou recebe, quem falhou fica de fora.
type Manager struct {
	mu        sync.RWMutex
	notifiers map[string]Notifier
	connected map[string]bool
	logger    *slog.Logger
}

// NewManager cria o gerenciador.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		notifiers: make(map[string]Notifier),
		connected: make(map[string]bool),
		logger:    logger.With("component", "notify"),
	}
}

// Register adiciona um notificador. Deve ser chamado antes de Connect.
func (m *Manager) Register(n Notifier) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := n.Name()
	if _, exists := m.notifiers[name]; exists {
		return fmt.Errorf("notifier %q already registered", name)
	}
	m.notifiers[name] = n
	m.logger.Info("notify: notifier registered", "notifier", name)
	return nil
}

// Connect conecta todos os registrados. Falhas são logadas e o canal fica
// desconectado; os demais seguem normalmente.
func (m *Manager) Connect(ctx context.Context) {
	m.mu.RLock()
	snapshot := make(map[string]Notifier, len(m.notifiers))
	for name, n := range m.notifiers {
		snapshot[name] = n
	}
	m.mu.RUnlock()

	for name, n := range snapshot {
		if err := n.Connect(ctx); err != nil {
			m.logger.Warn("notify: notifier failed to connect",
				"notifier", name, "error", err)
			continue
		}
		m.mu.Lock()
		m.connected[name] = true
		m.mu.Unlock()
		m.logger.Info("notify: notifier connected", "notifier", name)
	}
}

// Notify entrega um evento a todos os conectados. Um pânico dentro de um
// canal é contido; os outros ainda recebem o evento.
func (m *Manager) Notify(ctx context.Context, ev Event) {
	m.mu.RLock()
	targets := make([]Notifier, 0, len(m.connected))
	for name := range m.connected {
		targets = append(targets, m.notifiers[name])
	}
	m.mu.RUnlock()

	for _, n := range targets {
		m.deliver(ctx, n, ev)
	}
}

func (m *Manager) deliver(ctx context.Context, n Notifier, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("notify: notifier panicked",
				"notifier", n.Name(), "panic", r)
		}
	}()
	if err := n.Notify(ctx, ev); err != nil {
		m.logger.Warn("notify: delivery failed",
			"notifier", n.Name(), "kind", ev.Kind, "error", err)
	}
}

// Disconnect desconecta todos os conectados.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name := range m.connected {
		if err := m.notifiers[name].Disconnect(); err != nil {
			m.logger.Warn("notify: disconnect failed",
				"notifier", name, "error", err)
		}
		delete(m.connected, name)
	}
	m.logger.Info("notify: stopped")
}

// Connected informa quantos canais estão ativos.
func (m *Manager) Connected() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connected)
}

// HasNotifiers informa se algum canal foi registrado.
func (m *Manager) HasNotifiers() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.notifiers) > 0
}

// Mirror envolve uma saída de fala e espelha cada resposta falada nos
// canais conectados. Lembretes não passam por aqui: o scheduler notifica
// pelo próprio caminho de anúncio.
type Mirror struct {
	out     ports.SpeechOutput
	manager *Manager
}

// NewMirror cria o espelho de respostas sobre out.
func NewMirror(out ports.SpeechOutput, manager *Manager) *Mirror {
	return &Mirror{out: out, manager: manager}
}

// Speak entrega o texto aos canais conectados e então fala normalmente. A
// entrega remota nunca bloqueia nem falha a fala local.
func (m *Mirror) Speak(ctx context.Context, text string) error {
	if text != "" {
		m.manager.Notify(ctx, Event{Kind: KindReply, Text: text})
	}
	return m.out.Speak(ctx, text)
}
