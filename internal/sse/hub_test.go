package sse

import (
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/radview/radview-backend/internal/platform/logger"
)

func testHub(t *testing.T) *Hub {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("failed to init logger: %v", err)
	}
	return NewHub(log)
}

func TestBatchChannelNaming(t *testing.T) {
	id := uuid.New()
	ch := BatchChannel(id)
	if !strings.HasPrefix(ch, "upload:") || !strings.Contains(ch, id.String()) {
		t.Fatalf("unexpected channel name %q", ch)
	}
}

func TestBroadcastReachesSubscribedClient(t *testing.T) {
	hub := testHub(t)
	client := hub.NewClient(uuid.New())
	hub.AddChannel(client, "upload:batch-1")

	hub.Broadcast(Message{Channel: "upload:batch-1", Event: EventUploadFileProgress, Data: map[string]int{"file_index": 0}})

	select {
	case msg := <-client.Outbound:
		if msg.Event != EventUploadFileProgress {
			t.Fatalf("wrong event: %s", msg.Event)
		}
	default:
		t.Fatal("subscribed client received nothing")
	}
}

func TestBroadcastSkipsOtherChannels(t *testing.T) {
	hub := testHub(t)
	client := hub.NewClient(uuid.New())
	hub.AddChannel(client, "upload:batch-1")

	hub.Broadcast(Message{Channel: "upload:batch-2", Event: EventUploadBatchDone})

	select {
	case msg := <-client.Outbound:
		t.Fatalf("client received a message for a foreign channel: %+v", msg)
	default:
	}
}

func TestBroadcastDropsWhenBufferFull(t *testing.T) {
	hub := testHub(t)
	client := hub.NewClient(uuid.New())
	hub.AddChannel(client, "ch")

	// Fill the outbound buffer; the next broadcast must drop, not block.
	for i := 0; i < cap(client.Outbound); i++ {
		hub.Broadcast(Message{Channel: "ch", Event: EventUploadFileProgress})
	}
	done := make(chan struct{})
	go func() {
		hub.Broadcast(Message{Channel: "ch", Event: EventUploadFileProgress})
		close(done)
	}()
	select {
	case <-done:
	case <-client.done:
		t.Fatal("unexpected client shutdown")
	}
}

func TestRemoveClientUnsubscribes(t *testing.T) {
	hub := testHub(t)
	client := hub.NewClient(uuid.New())
	hub.AddChannel(client, "ch")
	hub.RemoveClient(client)

	hub.Broadcast(Message{Channel: "ch", Event: EventInstanceDeleted})
	select {
	case msg := <-client.Outbound:
		t.Fatalf("removed client received %+v", msg)
	default:
	}

	select {
	case <-client.done:
	default:
		t.Fatal("done channel not closed on removal")
	}
}
