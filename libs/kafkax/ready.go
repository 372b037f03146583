package kafkax

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
)

// ReadyCheck reports whether the first configured broker accepts
// connections. Good enough for readiness: a reachable broker means the
// cluster metadata is one hop away.
func ReadyCheck(brokers string) func(context.Context) error {
	return func(ctx context.Context) error {
		list := SplitBrokers(brokers)
		if len(list) == 0 {
			return errors.New("kafka brokers not configured")
		}
		dialCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		conn, err := kafka.DialContext(dialCtx, "tcp", list[0])
		if err != nil {
			return err
		}
		return conn.Close()
	}
}
