package rabbitmq

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// PublishMessage is one AMQP message produced by a stream handler.
type PublishMessage struct {
	Timestamp    time.Time
	Headers      map[string]any
	Exchange     string
	RoutingKey   string
	ContentType  string
	MessageID    string
	Type         string
	AppID        string
	Body         []byte
	DeliveryMode uint8
}

type ResponseHandlerContext struct {
	Message *PublishMessage
	Err     error
}

// ResponseHandler observes the outcome of every published message.
type ResponseHandler interface {
	OnSuccess(ctx *ResponseHandlerContext)
	OnError(ctx *ResponseHandlerContext)
}

// DefaultResponseHandler logs publish errors and panics on permanent broker
// errors, on the theory that a misconfigured topology should not silently
// drop the stream.
type DefaultResponseHandler struct {
	Logger *slog.Logger
}

func (drh *DefaultResponseHandler) OnSuccess(_ *ResponseHandlerContext) {}

func (drh *DefaultResponseHandler) OnError(ctx *ResponseHandlerContext) {
	logger := drh.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if isFatalError(ctx.Err) {
		logger.Error("permanent error on rabbitmq while flushing messages", "error", ctx.Err)
		panic(fmt.Errorf("permanent error on RabbitMQ side %w", ctx.Err))
	}
	logger.Error("batch publisher flush", "error", ctx.Err)
}

func isFatalError(err error) bool {
	var e *amqp.Error
	ok := errors.As(err, &e)
	if ok {
		switch e.Code {
		case amqp.NotFound, amqp.AccessRefused, amqp.PreconditionFailed:
			return true
		default:
			return false
		}
	}

	if errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return false
	}
	return true
}
