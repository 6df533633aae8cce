package generation

import (
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

// ProgressStream is a live feed of one user's job updates.
type ProgressStream interface {
	Channel() <-chan *Job
	Close() error
}

// ProgressSubscription wraps a Redis pub/sub subscription for progress events
type ProgressSubscription struct {
	pubsub *redis.PubSub
	ch     <-chan *redis.Message
}

// Channel returns a channel that receives job progress updates
func (s *ProgressSubscription) Channel() <-chan *Job {
	jobCh := make(chan *Job)

	go func() {
		defer close(jobCh)
		for msg := range s.ch {
			var job Job
			if err := json.Unmarshal([]byte(msg.Payload), &job); err != nil {
				continue
			}
			jobCh <- &job
		}
	}()

	return jobCh
}

// Close closes the subscription
func (s *ProgressSubscription) Close() error {
	return s.pubsub.Close()
}
