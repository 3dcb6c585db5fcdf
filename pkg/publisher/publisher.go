// Package publisher implements the optional controller-change publisher
// from spec.md §4.7: the symmetric counterpart to the pub/sub notification
// listener, fanning out post-commit network/member deltas to other
// services via a hosted topic.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"cloud.google.com/go/pubsub"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/zerotier-like/controlplane/pkg/model"
)

const (
	fieldChangeSource protowire.Number = 1
	fieldOld          protowire.Number = 2
	fieldNew          protowire.Number = 3
)

// Publisher fans out committed network/member changes to a pub/sub topic
// so peer controllers and frontends can subscribe to this controller's
// write stream instead of polling.
type Publisher struct {
	client       *pubsub.Client
	controllerID string
	frontend     string
	networkTopic *pubsub.Topic
	memberTopic  *pubsub.Topic
}

func New(client *pubsub.Client, controllerID, frontend, networkTopicName, memberTopicName string) *Publisher {
	return &Publisher{
		client:       client,
		controllerID: controllerID,
		frontend:     frontend,
		networkTopic: client.Topic(networkTopicName),
		memberTopic:  client.Topic(memberTopicName),
	}
}

// PublishNetworkChange encodes a network delta as protobuf and publishes
// it with the controller_id attribute spec.md §4.7 requires so peer
// controllers can filter their subscriptions. old may be nil for an
// insert; new may be nil for a delete.
func (p *Publisher) PublishNetworkChange(ctx context.Context, old, new *model.NetworkRecord) {
	p.publish(ctx, p.networkTopic, old, new)
}

// PublishMemberChange is the member analogue of PublishNetworkChange.
func (p *Publisher) PublishMemberChange(ctx context.Context, old, new *model.MemberRecord) {
	p.publish(ctx, p.memberTopic, old, new)
}

func (p *Publisher) publish(ctx context.Context, topic *pubsub.Topic, old, new interface{}) {
	data, err := encodeChange(old, new)
	if err != nil {
		log.Printf("publisher: encode failed: %v", err)
		return
	}

	attrs := map[string]string{"controller_id": p.controllerID}
	if p.frontend != "" {
		attrs["frontend"] = p.frontend
	}

	result := topic.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs})
	// Fire-and-forget from the commit path's perspective; block only long
	// enough to surface a publish error to the log, never to the caller.
	go func() {
		if _, err := result.Get(ctx); err != nil {
			log.Printf("publisher: publish to %s failed: %v", topic.ID(), err)
		}
	}()
}

func encodeChange(old, new interface{}) ([]byte, error) {
	var oldJSON, newJSON []byte
	var err error
	if !isNilRecord(old) {
		oldJSON, err = json.Marshal(old)
		if err != nil {
			return nil, fmt.Errorf("marshal old: %w", err)
		}
	}
	if !isNilRecord(new) {
		newJSON, err = json.Marshal(new)
		if err != nil {
			return nil, fmt.Errorf("marshal new: %w", err)
		}
	}

	var b []byte
	b = protowire.AppendTag(b, fieldChangeSource, protowire.BytesType)
	b = protowire.AppendString(b, "controller")
	if len(oldJSON) > 0 {
		b = protowire.AppendTag(b, fieldOld, protowire.BytesType)
		b = protowire.AppendBytes(b, oldJSON)
	}
	if len(newJSON) > 0 {
		b = protowire.AppendTag(b, fieldNew, protowire.BytesType)
		b = protowire.AppendBytes(b, newJSON)
	}
	return b, nil
}

func isNilRecord(v interface{}) bool {
	switch r := v.(type) {
	case *model.NetworkRecord:
		return r == nil
	case *model.MemberRecord:
		return r == nil
	default:
		return v == nil
	}
}
