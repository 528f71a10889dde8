package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/busca-ativa-api/internal/models"
)

func receiveEvent(t *testing.T, ch <-chan models.RecordEvent) models.RecordEvent {
	t.Helper()
	select {
	case event := <-ch:
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
		return models.RecordEvent{}
	}
}

func TestEventServiceLocalBroadcast(t *testing.T) {
	svc := NewEventService(nil, nil, EventConfig{Workers: 1}, NewMetricsService(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	all, releaseAll := svc.Subscribe()
	defer releaseAll()
	occurrencesOnly, releaseOcc := svc.Subscribe(models.RecordOccurrence)
	defer releaseOcc()

	svc.Publish(ctx, models.RecordEvent{RecordType: models.RecordAbsenceAction, Change: models.ChangeCreated, RecordIDs: []string{"a1"}})
	event := receiveEvent(t, all)
	assert.Equal(t, []string{"a1"}, event.RecordIDs)
	assert.NotEmpty(t, event.ID)
	assert.False(t, event.OccurredAt.IsZero())

	svc.Publish(ctx, models.RecordEvent{RecordType: models.RecordOccurrence, Change: models.ChangeDeleted, RecordIDs: []string{"o1"}})
	assert.Equal(t, []string{"o1"}, receiveEvent(t, occurrencesOnly).RecordIDs)
	assert.Equal(t, []string{"o1"}, receiveEvent(t, all).RecordIDs)
}

func TestEventServiceReleaseClosesChannel(t *testing.T) {
	svc := NewEventService(nil, nil, EventConfig{}, nil, nil)
	ch, release := svc.Subscribe()
	release()
	release()

	_, open := <-ch
	assert.False(t, open)
}

func TestEventServicePublishWithoutStartStillNotifiesLocally(t *testing.T) {
	svc := NewEventService(nil, nil, EventConfig{}, nil, nil)
	ch, release := svc.Subscribe()
	defer release()

	svc.Publish(context.Background(), models.RecordEvent{RecordType: models.RecordAbsenceAction, RecordIDs: []string{"x"}})
	assert.Equal(t, []string{"x"}, receiveEvent(t, ch).RecordIDs)
}

func TestEventServiceFansOutAcrossNodesThroughRedis(t *testing.T) {
	srv := miniredis.RunT(t)
	newClient := func() *redis.Client {
		client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		return client
	}
	cfg := EventConfig{ChannelBase: "test", Workers: 1, Retries: 1, RetryDelay: 10 * time.Millisecond}
	nodeA := NewEventService(newClient(), nil, cfg, nil, nil)
	nodeB := NewEventService(newClient(), nil, cfg, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	nodeA.Start(ctx)
	defer nodeA.Stop()
	nodeB.Start(ctx)
	defer nodeB.Stop()

	subA, releaseA := nodeA.Subscribe()
	defer releaseA()
	subB, releaseB := nodeB.Subscribe()
	defer releaseB()

	require.Eventually(t, func() bool {
		return len(srv.PubSubChannels("test:*")) == 1 && srv.PubSubNumSub("test:record-events")["test:record-events"] == 2
	}, 2*time.Second, 10*time.Millisecond)

	nodeA.Publish(ctx, models.RecordEvent{RecordType: models.RecordAbsenceAction, Change: models.ChangeUpdated, RecordIDs: []string{"a9"}, StudentID: "s1"})

	local := receiveEvent(t, subA)
	remote := receiveEvent(t, subB)
	assert.Equal(t, local.ID, remote.ID)
	assert.Equal(t, "s1", remote.StudentID)

	// node A ignores its own echo from Redis
	select {
	case dup := <-subA:
		t.Fatalf("unexpected duplicate event %s", dup.ID)
	case <-time.After(100 * time.Millisecond):
	}
}
