package caption

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	roommock "github.com/oakfield-labs/captionrelay/pkg/room/mock"
)

func TestRoomPublisherPublishesCaptionsTopic(t *testing.T) {
	conn := roommock.NewConnection()
	p := NewRoomPublisher(conn)

	rec := CaptionRecord{
		Type:       RecordTypeTranscription,
		Speaker:    "p1",
		SentenceID: 1,
		Final:      true,
		Text:       "Hello world.",
		Timestamp:  time.Now(),
	}
	p.Publish(context.Background(), rec)

	if len(conn.PublishedCalls) != 1 {
		t.Fatalf("expected one Publish call, got %d", len(conn.PublishedCalls))
	}
	call := conn.PublishedCalls[0]
	if call.Topic != CaptionsTopic {
		t.Errorf("topic = %q, want %q", call.Topic, CaptionsTopic)
	}
	var decoded CaptionRecord
	if err := json.Unmarshal(call.Payload, &decoded); err != nil {
		t.Fatalf("payload did not decode as CaptionRecord: %v", err)
	}
	if decoded.Text != rec.Text || decoded.SentenceID != rec.SentenceID {
		t.Errorf("decoded = %+v, want %+v", decoded, rec)
	}
}

func TestRoomPublisherChatMirrorDisabledByDefault(t *testing.T) {
	conn := roommock.NewConnection()
	p := NewRoomPublisher(conn)

	p.Publish(context.Background(), CaptionRecord{Type: RecordTypeTranscription, Speaker: "p1", Text: "hi"})

	if len(conn.PublishedCalls) != 1 {
		t.Fatalf("expected only the captions-topic publish, got %d calls", len(conn.PublishedCalls))
	}
}

func TestRoomPublisherChatMirrorEnabled(t *testing.T) {
	conn := roommock.NewConnection()
	p := NewRoomPublisher(conn, WithChatMirror(true))

	p.Publish(context.Background(), CaptionRecord{
		Type: RecordTypeTranscription, Speaker: "p1", Text: "hi there",
	})

	if len(conn.PublishedCalls) != 2 {
		t.Fatalf("expected captions + chat publishes, got %d", len(conn.PublishedCalls))
	}
	chatCall := conn.PublishedCalls[1]
	if chatCall.Topic != ChatTopic {
		t.Errorf("second call topic = %q, want %q", chatCall.Topic, ChatTopic)
	}
	want := "[Transcript] p1: hi there"
	if string(chatCall.Payload) != want {
		t.Errorf("chat line = %q, want %q", chatCall.Payload, want)
	}
}

func TestRoomPublisherChatMirrorTranslation(t *testing.T) {
	conn := roommock.NewConnection()
	p := NewRoomPublisher(conn, WithChatMirror(true))

	p.Publish(context.Background(), CaptionRecord{
		Type: RecordTypeTranslation, Speaker: "p1", TranslatedText: "Hola mundo.",
	})

	chatCall := conn.PublishedCalls[1]
	want := "[Translation] p1: Hola mundo."
	if string(chatCall.Payload) != want {
		t.Errorf("chat line = %q, want %q", chatCall.Payload, want)
	}
}

func TestRoomPublisherLogsAndDropsOnPublishFailure(t *testing.T) {
	conn := roommock.NewConnection()
	conn.PublishError = context.DeadlineExceeded
	p := NewRoomPublisher(conn)

	// Must not panic despite the transport error.
	p.Publish(context.Background(), CaptionRecord{Type: RecordTypeTranscription, Speaker: "p1", Text: "hi"})

	if len(conn.PublishedCalls) != 1 {
		t.Fatalf("expected the publish attempt to still be recorded, got %d", len(conn.PublishedCalls))
	}
}
