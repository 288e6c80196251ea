package fold

import (
	"testing"
	"time"
)

func TestKeyConsumerID(t *testing.T) {
	field := KeyConsumerID.Field("abc-123")
	if field.Key().Name() != "consumer_id" {
		t.Errorf("expected key 'consumer_id', got %q", field.Key().Name())
	}
}

func TestKeyTopic(t *testing.T) {
	field := KeyTopic.Field("/gps/fix")
	if field.Key().Name() != "topic" {
		t.Errorf("expected key 'topic', got %q", field.Key().Name())
	}
}

func TestKeySubscriptionCount(t *testing.T) {
	field := KeySubscriptionCount.Field(3)
	if field.Key().Name() != "subscription_count" {
		t.Errorf("expected key 'subscription_count', got %q", field.Key().Name())
	}
}

func TestKeyReason(t *testing.T) {
	field := KeyReason.Field(SkipDuplicateBatch)
	if field.Key().Name() != "reason" {
		t.Errorf("expected key 'reason', got %q", field.Key().Name())
	}
}

func TestKeyWindow(t *testing.T) {
	field := KeyWindow.Field(10 * time.Second)
	if field.Key().Name() != "window" {
		t.Errorf("expected key 'window', got %q", field.Key().Name())
	}
}
