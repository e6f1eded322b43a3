package system

import (
	"time"

	"github.com/openremoteio/remoteio/internal/api/websocket"
	"go.uber.org/zap"
)

const publishInterval = time.Second

// Publisher periodically reads every registered aggregate through its
// registered read function and broadcasts the result to websocket
// clients. Reads go through the gateway's normal serialization, so the
// feed observes exactly what any other consumer would.
type Publisher struct {
	surface *HubSurface
	hub     *websocket.Hub
	logger  *zap.Logger

	stop chan struct{}
	done chan struct{}
}

func NewPublisher(surface *HubSurface, hub *websocket.Hub, logger *zap.Logger) *Publisher {
	return &Publisher{
		surface: surface,
		hub:     hub,
		logger:  logger,
	}
}

func (p *Publisher) Start() {
	if p.stop != nil {
		return
	}
	p.stop = make(chan struct{})
	p.done = make(chan struct{})

	go p.run()
	p.logger.Info("Live feed publisher started",
		zap.Duration("interval", publishInterval))
}

func (p *Publisher) Stop() {
	if p.stop == nil {
		return
	}
	close(p.stop)
	<-p.done
	p.stop, p.done = nil, nil
}

func (p *Publisher) run() {
	defer close(p.done)

	ticker := time.NewTicker(publishInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.publish()
		}
	}
}

func (p *Publisher) publish() {
	// Nothing to read means nothing to send; skip the idle broadcast
	// when no clients are listening either.
	if p.hub.GetClientCount() == 0 {
		return
	}

	for device, aggs := range p.surface.snapshotAggregates() {
		for name, read := range aggs {
			reading := read()
			p.hub.Broadcast(websocket.NewAggregateReadingMessage(device, name, reading))
		}
	}
}
