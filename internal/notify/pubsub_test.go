package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/apiv1/pubsubpb"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"

	"github.com/restockd/restockd/internal/watch"
)

func TestPubSubSinkPublishesRestockEvent(t *testing.T) {
	ctx := context.Background()

	srv := pstest.NewServer()
	defer srv.Close()

	conn, err := grpc.Dial(srv.Addr, grpc.WithInsecure())
	require.NoError(t, err)
	defer conn.Close()

	client, err := pubsub.NewClient(ctx, "project-id", option.WithGRPCConn(conn))
	require.NoError(t, err)
	defer client.Close()

	topic, err := client.CreateTopic(ctx, "restocks")
	require.NoError(t, err)
	defer topic.Stop()

	sub, err := client.CreateSubscription(ctx, "restocks-sub", pubsub.SubscriptionConfig{Topic: topic})
	require.NoError(t, err)

	sink, err := NewPubSubSinkWithClient(client, "restocks", nil)
	require.NoError(t, err)
	defer sink.topic.Stop()

	event := watch.RestockEvent{
		ProductID: "prod-1",
		Name:      "PS5 Slim",
		Brand:     "Sony",
		URL:       "https://example.com/ps5",
	}
	sink.EmitRestock(ctx, event)

	recvCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	received := make(chan *pubsub.Message, 1)
	go func() {
		_ = sub.Receive(recvCtx, func(_ context.Context, msg *pubsub.Message) {
			msg.Ack()
			select {
			case received <- msg:
			default:
			}
			cancel()
		})
	}()

	select {
	case msg := <-received:
		var got watch.RestockEvent
		require.NoError(t, json.Unmarshal(msg.Data, &got))
		require.Equal(t, event, got)
		require.Equal(t, "prod-1", msg.Attributes["product_id"])
	case <-recvCtx.Done():
		t.Fatal("restock event never arrived")
	}
}

func TestPubSubSinkEmitDoesNotWaitForAck(t *testing.T) {
	ctx := context.Background()

	srv := pstest.NewServer()
	defer srv.Close()

	conn, err := grpc.Dial(srv.Addr, grpc.WithInsecure())
	require.NoError(t, err)
	defer conn.Close()

	client, err := pubsub.NewClient(ctx, "project-id", option.WithGRPCConn(conn))
	require.NoError(t, err)
	defer client.Close()

	topic, err := client.CreateTopic(ctx, "restocks")
	require.NoError(t, err)
	defer topic.Stop()

	// Hold every publish until the server is released; the emit call must
	// come back anyway.
	srv.SetAutoPublishResponse(false)
	sink, err := NewPubSubSinkWithClient(client, "restocks", nil)
	require.NoError(t, err)
	defer sink.topic.Stop()

	done := make(chan struct{})
	go func() {
		sink.EmitRestock(ctx, watch.RestockEvent{ProductID: "prod-1"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("EmitRestock blocked on delivery confirmation")
	}

	// Release the held publish so the ack goroutine can finish.
	srv.AddPublishResponse(&pubsubpb.PublishResponse{MessageIds: []string{"m0"}}, nil)
}

func TestNewPubSubSinkWithClientValidatesInputs(t *testing.T) {
	t.Parallel()

	_, err := NewPubSubSinkWithClient(nil, "restocks", nil)
	require.Error(t, err)
}
