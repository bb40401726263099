package cmd

import (
	"context"
)

// Connection defines what cmd.run expects from the broker client.
type Connection interface {
	Connect(ctx context.Context) error
	Publish(ctx context.Context, topic string, payload []byte) error
	Disconnect()
	Lost() <-chan error
}
