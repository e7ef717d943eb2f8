package inbound

import (
	"context"
	"errors"
	"fmt"

	"github.com/arjunkr9693/Len-Den-Khata-sub000/internal/record"
	"github.com/arjunkr9693/Len-Den-Khata-sub000/internal/remote"
	"github.com/arjunkr9693/Len-Den-Khata-sub000/internal/session"
	"go.uber.org/zap"
)

const opListenerStart = "inbound.listener.start"

var (
	errMissingRemote    = errors.New("inbound: remote store is required")
	errMissingProcessor = errors.New("inbound: processor is required")
)

// ListenerConfig describes the listener's collaborators.
type ListenerConfig struct {
	Remote     remote.Store
	Collection string
	Session    session.Session
	Processor  *Processor
	Logger     *zap.Logger
}

// Listener owns the change-feed subscription for one foreground session.
// The subscription is established by Start and lives until the given
// context ends; event failures are logged and never stop the feed.
type Listener struct {
	remote     remote.Store
	collection string
	session    session.Session
	processor  *Processor
	logger     *zap.Logger

	done chan struct{}
}

// NewListener validates the configuration and returns the listener.
func NewListener(cfg ListenerConfig) (*Listener, error) {
	if cfg.Remote == nil {
		return nil, fmt.Errorf("%s: %w", opListenerStart, errMissingRemote)
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("%s: collection path is required", opListenerStart)
	}
	if cfg.Processor == nil {
		return nil, fmt.Errorf("%s: %w", opListenerStart, errMissingProcessor)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Listener{
		remote:     cfg.Remote,
		collection: cfg.Collection,
		session:    cfg.Session,
		processor:  cfg.Processor,
		logger:     logger,
	}, nil
}

// Start subscribes to documents naming this session's owner as the
// counterparty and consumes the feed until ctx is cancelled. A listener
// is started once per session.
func (l *Listener) Start(ctx context.Context) error {
	feed, err := l.remote.Subscribe(ctx, l.collection, record.FieldReceiverID, l.session.OwnerID())
	if err != nil {
		return fmt.Errorf("%s: subscribe: %w", opListenerStart, err)
	}

	l.done = make(chan struct{})
	go func() {
		defer close(l.done)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-feed:
				if !ok {
					return
				}
				if err := l.processor.Apply(ctx, event); err != nil {
					l.logger.Warn("inbound event failed",
						zap.String("collection", l.collection),
						zap.String("remote_id", event.Document.ID),
						zap.String("event_type", string(event.Type)),
						zap.Error(err))
				}
			}
		}
	}()

	l.logger.Info("inbound listener started",
		zap.String("collection", l.collection),
		zap.String("owner_id", l.session.OwnerID()))
	return nil
}

// Wait blocks until the feed goroutine exits after cancellation.
func (l *Listener) Wait() {
	if l.done != nil {
		<-l.done
	}
}
