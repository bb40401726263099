package mqtt

import (
	"context"
)

// Publish sends payload with the configured QoS and waits for the broker
// acknowledgement. Delivery retries are left to the client.
func (s *service) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	token := s.client.Publish(topic, s.qos, false, payload)
	return s.wait(ctx, token, s.publishTimeout, ErrPublishTimeout)
}
