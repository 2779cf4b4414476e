package main

import (
	"context"
	"sync"

	gcppubsub "cloud.google.com/go/pubsub/v2"
)

type publisherFactory func(topic string) publisher

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
	Stop()
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// publisherCache keeps one publisher per topic so batching inside the Pub/Sub
// client survives across outbox batches.
type publisherCache struct {
	mu   sync.Mutex
	open map[string]publisher
}

func (c *publisherCache) get(topic string, factory publisherFactory) publisher {
	c.mu.Lock()
	defer c.mu.Unlock()
	if pub, ok := c.open[topic]; ok {
		return pub
	}
	pub := factory(topic)
	if pub != nil {
		c.open[topic] = pub
	}
	return pub
}

func (c *publisherCache) stopAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for topic, pub := range c.open {
		pub.Stop()
		delete(c.open, topic)
	}
}

func gcpPublisherFactory(client pubSubClient) publisherFactory {
	return func(topic string) publisher {
		p := client.Publisher(topic)
		if p == nil {
			return nil
		}
		return gcpPublisher{p}
	}
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return gcpPublishResult{p.Publisher.Publish(ctx, msg)}
}

type gcpPublishResult struct {
	*gcppubsub.PublishResult
}

func (r gcpPublishResult) Get(ctx context.Context) (string, error) {
	if r.PublishResult == nil {
		return "", errNilPublishResult
	}
	return r.PublishResult.Get(ctx)
}
