package interaction

import (
	"context"
	"sync/atomic"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"

	"github.com/artifactory/invoice-reminders/pkg/logger"
)

type acker interface {
	Ack(req socketmode.Request, payload ...interface{})
}

// Listener receives button clicks over Slack Socket Mode.
type Listener struct {
	client     *socketmode.Client
	acker      acker
	dispatcher *Dispatcher
	connected  atomic.Bool
}

func NewListener(api *slack.Client, dispatcher *Dispatcher, debug bool) *Listener {
	client := socketmode.New(api, socketmode.OptionDebug(debug))

	return &Listener{
		client:     client,
		acker:      client,
		dispatcher: dispatcher,
	}
}

// Run blocks until ctx is cancelled or the connection fails for good.
func (l *Listener) Run(ctx context.Context) error {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-l.client.Events:
				if !ok {
					return
				}
				l.handleEvent(evt)
			}
		}
	}()

	return l.client.RunContext(ctx)
}

// Connected reports whether the Socket Mode connection is currently up.
func (l *Listener) Connected() bool {
	return l.connected.Load()
}

func (l *Listener) handleEvent(evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeConnecting:
		logger.Infof("Connecting to Slack Socket Mode...")

	case socketmode.EventTypeConnected:
		logger.Infof("Connected to Slack Socket Mode")
		l.connected.Store(true)

	case socketmode.EventTypeConnectionError:
		logger.Warnf("Slack Socket Mode connection error: %v", evt.Data)
		l.connected.Store(false)

	case socketmode.EventTypeInteractive:
		// Every envelope is acked, readable or not.
		if evt.Request != nil {
			l.acker.Ack(*evt.Request)
		}

		callback, ok := evt.Data.(slack.InteractionCallback)
		if !ok {
			logger.Warnf("Ignoring interactive event with unexpected data %T", evt.Data)
			return
		}
		l.dispatcher.Dispatch(callback)

	default:
		logger.Debugf("Ignoring Socket Mode event %s", evt.Type)
	}
}
