// Package interaction turns Slack block_actions callbacks into click handling work.
package interaction

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/slack-go/slack"

	"github.com/artifactory/invoice-reminders/internal/domain"
	"github.com/artifactory/invoice-reminders/internal/message"
	"github.com/artifactory/invoice-reminders/pkg/logger"
)

type actionHandler interface {
	Handle(ctx context.Context, ic *domain.InteractionContext) error
}

// Dispatcher runs each clicked action in its own goroutine. Callers acknowledge Slack first.
type Dispatcher struct {
	handler actionHandler
	wg      sync.WaitGroup
}

func NewDispatcher(handler actionHandler) *Dispatcher {
	return &Dispatcher{handler: handler}
}

// Contexts builds one InteractionContext per block action in the callback.
func Contexts(callback slack.InteractionCallback) []*domain.InteractionContext {
	header, body := message.BlockTexts(callback.Message.Blocks)

	channelID := callback.Container.ChannelID
	if channelID == "" {
		channelID = callback.Channel.ID
	}

	messageTS := callback.Container.MessageTs
	if messageTS == "" {
		messageTS = callback.Message.Timestamp
	}

	contexts := make([]*domain.InteractionContext, 0, len(callback.ActionCallback.BlockActions))
	for _, action := range callback.ActionCallback.BlockActions {
		contexts = append(contexts, &domain.InteractionContext{
			CorrelationID: uuid.NewString(),
			ActionID:      action.ActionID,
			ActorUserID:   callback.User.ID,
			ChannelID:     channelID,
			MessageTS:     messageTS,
			Value:         action.Value,
			Header:        header,
			Body:          body,
		})
	}
	return contexts
}

// Dispatch starts handling every block action in callback and returns immediately.
func (d *Dispatcher) Dispatch(callback slack.InteractionCallback) {
	if callback.Type != slack.InteractionTypeBlockActions {
		logger.Debugf("Ignoring %s interaction", callback.Type)
		return
	}

	for _, ic := range Contexts(callback) {
		d.wg.Add(1)
		go d.run(ic)
	}
}

func (d *Dispatcher) run(ic *domain.InteractionContext) {
	defer d.wg.Done()

	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[%s] Panic while handling %s: %v", ic.CorrelationID, ic.ActionID, r)
		}
	}()

	// Clicks run to completion; each billing call is bounded by the client's own timeout.
	// Handle reports its own failures to the admin channel.
	_ = d.handler.Handle(context.Background(), ic)
}

// Wait blocks until every dispatched action has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
