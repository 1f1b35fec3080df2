package checks

import (
	"context"
	"errors"

	"github.com/osbits/fcheck/internal/config"
	"github.com/osbits/fcheck/internal/queue"
)

var errNoBus = errors.New("no message bus configured")

func (e *Executor) publish(ctx context.Context, a config.MessageWriteAction) error {
	if e.opts.Bus == nil {
		return &TransportError{Op: "write", Host: a.Host, Topic: a.Topic, Err: errNoBus}
	}
	if err := e.opts.Bus.Publish(ctx, a.Host, a.Topic, a.Messages); err != nil {
		return &TransportError{Op: "write", Host: a.Host, Topic: a.Topic, Err: err}
	}
	return nil
}

func (e *Executor) consume(ctx context.Context, a config.MessageReadAction) (string, error) {
	if e.opts.Bus == nil {
		return "", &TransportError{Op: "read", Host: a.Host, Topic: a.Topic, Err: errNoBus}
	}
	msg, err := e.opts.Bus.ReadOne(ctx, a.Host, a.Topic, queue.StartOffset(a.Offset))
	if err != nil {
		return "", &TransportError{Op: "read", Host: a.Host, Topic: a.Topic, Err: err}
	}
	return msg.Value, nil
}
