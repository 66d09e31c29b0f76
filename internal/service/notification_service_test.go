package service

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-grading-api/internal/dto"
	"github.com/noah-isme/gema-grading-api/internal/repository"
)

func TestNotificationServicePublishAndSubscribe(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewNotificationService(repository.NewNotificationRepository(db), nil, "", nil, validator.New(validator.WithRequiredStructEnabled()), testLogger())

	stream, cleanup := svc.Subscribe(7)
	defer cleanup()

	published, err := svc.Publish(context.Background(), dto.NotificationCreateRequest{
		UserID:  7,
		Type:    NotificationGradePosted,
		Message: "<b>Lab report</b> graded",
		Payload: map[string]interface{}{"score": 75},
	})
	require.NoError(t, err)
	require.Equal(t, "Lab report graded", published.Message)

	select {
	case received := <-stream:
		require.Equal(t, published.ID, received.ID)
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive the notification")
	}

	_, err = svc.Publish(context.Background(), dto.NotificationCreateRequest{UserID: 7, Type: NotificationGradePosted, Message: "<script></script>"})
	require.Error(t, err)

	_, err = svc.Publish(context.Background(), dto.NotificationCreateRequest{Type: NotificationGradePosted, Message: "no user"})
	require.Error(t, err)

	unread, err := svc.List(context.Background(), 7, true, 10, 0)
	require.NoError(t, err)
	require.Len(t, unread, 1)

	read, err := svc.MarkRead(context.Background(), published.ID, 7)
	require.NoError(t, err)
	require.True(t, read.Read)

	_, err = svc.MarkRead(context.Background(), published.ID, 8)
	require.Error(t, err)

	unread, err = svc.List(context.Background(), 7, true, 10, 0)
	require.NoError(t, err)
	require.Empty(t, unread)
}

func TestNotificationServiceFansOutAcrossNodes(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer redisClient.Close()

	validate := validator.New(validator.WithRequiredStructEnabled())
	db := setupServiceDB(t)
	publisher := NewNotificationService(repository.NewNotificationRepository(db), redisClient, "gema:test", nil, validate, testLogger())
	listener := NewNotificationService(repository.NewNotificationRepository(db), redisClient, "gema:test", nil, validate, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	listener.Start(ctx)

	require.Eventually(t, func() bool {
		return server.PubSubNumSub("gema:test:notifications")["gema:test:notifications"] == 1
	}, time.Second, 10*time.Millisecond)

	stream, cleanup := listener.Subscribe(3)
	defer cleanup()

	_, err = publisher.Publish(context.Background(), dto.NotificationCreateRequest{UserID: 3, Type: NotificationDisputeResolved, Message: "Dispute accepted"})
	require.NoError(t, err)

	select {
	case received := <-stream:
		require.Equal(t, NotificationDisputeResolved, received.Type)
		require.Equal(t, "Dispute accepted", received.Message)
	case <-time.After(2 * time.Second):
		t.Fatal("notification was not relayed from the other node")
	}
}
