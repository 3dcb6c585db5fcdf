package listener

import (
	"context"
	"fmt"
	"sync"

	"cloud.google.com/go/pubsub"
)

// topicSpec pairs one topic name with the object kind its messages decode
// into, mirroring the one-stream/one-channel-per-kind layout of the other
// two variants.
type topicSpec struct {
	topic string
	kind  ObjectKind
}

// PubSub is the hosted pub/sub listener variant. It creates (if missing) a
// per-controller subscription filtered on the controller_id attribute for
// each topic, decodes protobuf NetworkChange/MemberChange payloads, and
// dispatches through the same path as the other two variants.
type PubSub struct {
	client       *pubsub.Client
	controllerID string
	topics       []topicSpec
	dispatch     Dispatcher

	subs []*pubsub.Subscription

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func NewPubSub(client *pubsub.Client, controllerID, networkTopic, memberTopic string, d Dispatcher) *PubSub {
	return &PubSub{
		client:       client,
		controllerID: controllerID,
		topics: []topicSpec{
			{topic: networkTopic, kind: KindNetwork},
			{topic: memberTopic, kind: KindMember},
		},
		dispatch: d,
	}
}

// subscriptionName is deterministic per (controller, topic) per spec.md
// §4.6, so restarts resume the same subscription instead of leaking one
// per process start.
func subscriptionName(controllerID, topic string) string {
	return fmt.Sprintf("ctl-%s-%s", controllerID, topic)
}

func (p *PubSub) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	for _, spec := range p.topics {
		sub, err := p.ensureSubscription(ctx, spec)
		if err != nil {
			cancel()
			return fmt.Errorf("listener/pubsub: %w", err)
		}
		p.subs = append(p.subs, sub)

		spec := spec
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.runSubscription(ctx, sub, spec)
		}()
	}
	return nil
}

func (p *PubSub) ensureSubscription(ctx context.Context, spec topicSpec) (*pubsub.Subscription, error) {
	topic := p.client.Topic(spec.topic)
	ok, err := topic.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("check topic %q: %w", spec.topic, err)
	}
	if !ok {
		topic, err = p.client.CreateTopic(ctx, spec.topic)
		if err != nil {
			return nil, fmt.Errorf("create topic %q: %w", spec.topic, err)
		}
	}

	name := subscriptionName(p.controllerID, spec.topic)
	sub := p.client.Subscription(name)
	exists, err := sub.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("check subscription %q: %w", name, err)
	}
	if exists {
		return sub, nil
	}

	return p.client.CreateSubscription(ctx, name, pubsub.SubscriptionConfig{
		Topic:  topic,
		Filter: fmt.Sprintf(`attributes.controller_id = "%s"`, p.controllerID),
	})
}

func (p *PubSub) runSubscription(ctx context.Context, sub *pubsub.Subscription, spec topicSpec) {
	err := sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if err := p.handleMessage(spec, msg.Data); err != nil {
			logDispatchErr("pubsub", spec.topic, err)
			msg.Nack()
			return
		}
		msg.Ack()
	})
	if err != nil && ctx.Err() == nil {
		logDispatchErr("pubsub", spec.topic, err)
	}
}

func (p *PubSub) handleMessage(spec topicSpec, data []byte) error {
	change, err := unmarshalPBChange(data)
	if err != nil {
		return err
	}

	hasOld := len(change.old) > 0
	hasNew := len(change.new) > 0

	switch {
	case !hasOld && !hasNew:
		return nil
	case hasNew:
		return dispatchSave(p.dispatch, spec.kind, change.new)
	default:
		return dispatchErase(p.dispatch, spec.kind, change.old)
	}
}

func (p *PubSub) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}
