package data

import (
	"context"
	"testing"
)

type mockSender struct {
	chatID string
	texts  []string
}

func (m *mockSender) Send(ctx context.Context, chatID, text string) error {
	m.chatID = chatID
	m.texts = append(m.texts, text)
	return nil
}

func TestFeishuRepo_SendTextWithMention(t *testing.T) {
	sender := &mockSender{}
	r := &feishuRepo{client: sender}

	if err := r.SendTextWithMention(context.Background(), "oc_g", "起床", "ou_a"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if sender.chatID != "oc_g" {
		t.Errorf("Expected chat oc_g, got %q", sender.chatID)
	}
	if sender.texts[0] != "[CQ:at,qq=ou_a] 起床" {
		t.Errorf("Expected mention prefix, got %q", sender.texts[0])
	}

	if err := r.SendTextWithMention(context.Background(), "oc_g", "好", ""); err != nil {
		t.Fatalf("send: %v", err)
	}
	if sender.texts[1] != "好" {
		t.Errorf("Expected plain send without user, got %q", sender.texts[1])
	}
}
