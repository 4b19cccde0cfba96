package channel

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/sonantlabs/sonant/internal/bus"
	"github.com/sonantlabs/sonant/internal/config"
)

type Manager struct {
	channels map[string]Channel
	bus      *bus.MessageBus
}

func NewManager(cfg config.DiscordConfig, b *bus.MessageBus) (*Manager, error) {
	return NewManagerWithFactory(cfg, b, defaultSessionFactory)
}

func NewManagerWithFactory(cfg config.DiscordConfig, b *bus.MessageBus, factory SessionFactory) (*Manager, error) {
	m := &Manager{
		channels: make(map[string]Channel),
		bus:      b,
	}

	if cfg.Enabled {
		ch, err := NewDiscordChannelWithFactory(cfg, b, factory)
		if err != nil {
			return nil, fmt.Errorf("init discord channel: %w", err)
		}
		m.register(ch)
	}

	return m, nil
}

func (m *Manager) register(ch Channel) {
	m.channels[ch.Name()] = ch
	m.bus.SubscribeOutbound(ch.Name(), func(msg bus.OutboundMessage) {
		if err := ch.Send(msg); err != nil {
			log.Printf("[channel-mgr] send to %s failed: %v", ch.Name(), err)
		}
	})
}

func (m *Manager) StartAll(ctx context.Context) error {
	var wg sync.WaitGroup
	errCh := make(chan error, len(m.channels))

	for name, ch := range m.channels {
		wg.Add(1)
		go func(name string, ch Channel) {
			defer wg.Done()
			log.Printf("[channel-mgr] starting %s", name)
			if err := ch.Start(ctx); err != nil {
				errCh <- fmt.Errorf("%s: %w", name, err)
			}
		}(name, ch)
	}

	wg.Wait()
	close(errCh)

	for err := range errCh {
		return err
	}
	return nil
}

func (m *Manager) StopAll() error {
	for name, ch := range m.channels {
		log.Printf("[channel-mgr] stopping %s", name)
		if err := ch.Stop(); err != nil {
			log.Printf("[channel-mgr] error stopping %s: %v", name, err)
		}
	}
	return nil
}

func (m *Manager) EnabledChannels() []string {
	names := make([]string, 0, len(m.channels))
	for name := range m.channels {
		names = append(names, name)
	}
	return names
}

// VoiceJoiner returns the named channel's voice interface, if it has one.
func (m *Manager) VoiceJoiner(name string) (VoiceJoiner, bool) {
	ch, ok := m.channels[name]
	if !ok {
		return nil, false
	}
	vj, ok := ch.(VoiceJoiner)
	return vj, ok
}
