package activitymap

import (
	"testing"
	"time"

	auth "github.com/FlameGreat-1/nswcleaningcompany-sub001"
	"github.com/stretchr/testify/assert"
)

func TestMapSelfServiceEvent(t *testing.T) {
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	event := auth.ActivityEvent{
		EventType:  auth.ActivityEventLoginSuccess,
		UserID:     "user-1",
		Metadata:   map[string]any{"ip": "10.0.0.1"},
		OccurredAt: at,
	}

	rec := Map(event)

	assert.Equal(t, "user-1", rec.ActorID)
	assert.Equal(t, "auth.login.success", rec.Verb)
	assert.Equal(t, "auth", rec.Channel)
	assert.Equal(t, "user", rec.ObjectType)
	assert.Equal(t, "user-1", rec.ObjectID)
	assert.Equal(t, "10.0.0.1", rec.Metadata["ip"])
	assert.Equal(t, at, rec.OccurredAt)
}

func TestMapAdminActionKeepsActor(t *testing.T) {
	event := auth.ActivityEvent{
		EventType: auth.ActivityEventUserDeactivated,
		Actor:     auth.ActorRef{ID: "admin-9", Type: string(auth.UserTypeAdmin)},
		UserID:    "user-1",
		Metadata:  map[string]any{"reason": "requested"},
	}

	rec := Map(event, WithClock(func() time.Time {
		return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	}))

	assert.Equal(t, "admin-9", rec.ActorID)
	assert.Equal(t, "user", rec.Channel)
	assert.Equal(t, "admin", rec.Metadata[MetadataKeyActorType])
	assert.Equal(t, "requested", rec.Metadata["reason"])
	assert.Equal(t, 2024, rec.OccurredAt.Year())

	// the source metadata is not modified
	_, leaked := event.Metadata[MetadataKeyActorType]
	assert.False(t, leaked)
}

func TestMapFallbacks(t *testing.T) {
	rec := Map(auth.ActivityEvent{EventType: "custom"},
		WithActorFallback("cron"),
		WithChannel("jobs"),
		WithObjectType("account"),
	)

	assert.Equal(t, "cron", rec.ActorID)
	assert.Equal(t, "jobs", rec.Channel)
	assert.Equal(t, "account", rec.ObjectType)
	assert.Nil(t, rec.Metadata)
	assert.False(t, rec.OccurredAt.IsZero())
}
