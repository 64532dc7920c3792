package application

import "context"

// Command is a request to change system state. Implementations name
// themselves so logs and traces can identify the operation.
type Command interface {
	CommandName() string
}

// Query is a request to read system state without changing it.
type Query interface {
	QueryName() string
}

// CommandHandler executes one command type.
type CommandHandler[C Command, R any] interface {
	Handle(ctx context.Context, cmd C) (R, error)
}

// QueryHandler answers one query type.
type QueryHandler[Q Query, R any] interface {
	Handle(ctx context.Context, query Q) (R, error)
}
