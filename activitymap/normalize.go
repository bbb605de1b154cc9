// Package activitymap flattens auth.ActivityEvent values into a transport
// neutral record for audit stores and queues.
package activitymap

import (
	"strings"
	"time"

	auth "github.com/FlameGreat-1/nswcleaningcompany-sub001"
)

// MetadataKeyActorType stores auth.ActorRef.Type when the event carries one
const MetadataKeyActorType = "actor_type"

const (
	defaultObjectType = "user"
	defaultActorID    = "system"
)

// Record is the flattened activity shape.
type Record struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

type Option func(*options)

type options struct {
	channel       string
	objectType    string
	actorFallback string
	clock         func() time.Time
}

// WithChannel forces the channel instead of deriving it from the verb
func WithChannel(channel string) Option {
	return func(o *options) {
		o.channel = strings.TrimSpace(channel)
	}
}

func WithObjectType(objectType string) Option {
	return func(o *options) {
		o.objectType = strings.TrimSpace(objectType)
	}
}

// WithActorFallback sets the actor id used when neither the actor nor the
// user is known.
func WithActorFallback(actorID string) Option {
	return func(o *options) {
		o.actorFallback = strings.TrimSpace(actorID)
	}
}

// WithClock stamps events that arrive without OccurredAt
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// Map converts event into a Record. The actor defaults to the identity the
// event is about, so self service actions read as "user did verb to user".
func Map(event auth.ActivityEvent, opts ...Option) Record {
	o := options{
		objectType:    defaultObjectType,
		actorFallback: defaultActorID,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	verb := string(event.EventType)

	channel := o.channel
	if channel == "" {
		channel = channelOf(verb)
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = o.clock()
	}

	return Record{
		ActorID: firstNonEmpty(
			strings.TrimSpace(event.Actor.ID),
			strings.TrimSpace(event.UserID),
			o.actorFallback,
		),
		Verb:       verb,
		ObjectType: o.objectType,
		ObjectID:   strings.TrimSpace(event.UserID),
		Channel:    channel,
		Metadata:   metadata(event),
		OccurredAt: occurredAt.UTC(),
	}
}

// channelOf returns the first dotted segment of verb: "auth" for
// auth.login.success, "user" for user.deactivated.
func channelOf(verb string) string {
	head, _, found := strings.Cut(verb, ".")
	if !found {
		return ""
	}
	return head
}

func metadata(event auth.ActivityEvent) map[string]any {
	var out map[string]any
	if len(event.Metadata) > 0 {
		out = make(map[string]any, len(event.Metadata)+1)
		for k, v := range event.Metadata {
			out[k] = v
		}
	}

	if actorType := strings.TrimSpace(event.Actor.Type); actorType != "" {
		if out == nil {
			out = map[string]any{}
		}
		if _, exists := out[MetadataKeyActorType]; !exists {
			out[MetadataKeyActorType] = actorType
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
