package usecase

import (
	"context"
	"testing"

	"github.com/chatimitate/feishu-chatimitate/internal/biz/domain"
)

func seedContext(te *testEngine, keywords string, answers ...*domain.Answer) {
	te.contexts.contexts[keywords] = &domain.Context{
		Keywords:     keywords,
		Time:         baseTime,
		TriggerCount: len(answers),
		Answers:      answers,
	}
}

func TestChatUsecase_Answer_SingleCandidate(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		te := newTestEngine(nil)
		te.uc.rnd = newLockedRand(seed)
		seedContext(te, "在吗", &domain.Answer{
			Keywords: "在的", GroupID: testGroup, Count: 5, Time: baseTime, Messages: []string{"在的"},
		})

		got := te.uc.Answer(context.Background(), te.event(testGroup, "u1", "在吗", 0))
		if len(got) != 1 || got[0] != "在的" {
			t.Fatalf("seed %d: Expected [在的], got %v", seed, got)
		}
	}
}

func TestChatUsecase_Answer_RecordsLedgerAndTopics(t *testing.T) {
	te := newTestEngine(nil)
	seedContext(te, "在吗", &domain.Answer{
		Keywords: "在的 呀", GroupID: testGroup, Count: 5, Messages: []string{"在的呀"},
	})

	te.uc.Answer(context.Background(), te.event(testGroup, "u1", "在吗", 0))

	ledger := te.uc.ledger(testGroup, testBot)
	if len(ledger) != 1 {
		t.Fatalf("Expected 1 ledger entry, got %d", len(ledger))
	}
	if ledger[0].Reply != "在的呀" || ledger[0].ReplyKeywords != "在的 呀" || ledger[0].PreKeywords != "在吗" {
		t.Errorf("Unexpected ledger entry %+v", ledger[0])
	}
	if ring := te.uc.topics[testGroup]; ring == nil || !ring.Contains("在的") || !ring.Contains("呀") {
		t.Error("Expected answer keywords in recent topics")
	}

	// the same answer is not offered twice in a row
	if got := te.uc.Answer(context.Background(), te.event(testGroup, "u2", "在吗", 1)); got != nil {
		t.Errorf("Expected recently used answer to be skipped, got %v", got)
	}
}

func TestChatUsecase_Answer_RepeatOnce(t *testing.T) {
	te := newTestEngine(nil)
	ctx := context.Background()

	for i, user := range []string{"u1", "u2"} {
		f := te.learn(testGroup, user, "草", i)
		if got := te.uc.Answer(ctx, f); got != nil {
			t.Fatalf("Expected no reply for occurrence %d, got %v", i+1, got)
		}
	}

	f := te.learn(testGroup, "u3", "草", 2)
	got := te.uc.Answer(ctx, f)
	if len(got) != 1 || got[0] != "草" {
		t.Fatalf("Expected [草], got %v", got)
	}

	f = te.learn(testGroup, "u4", "草", 3)
	if got := te.uc.Answer(ctx, f); got != nil {
		t.Errorf("Expected no reply after repeating once, got %v", got)
	}
}

func TestChatUsecase_Answer_RefusesShortText(t *testing.T) {
	te := newTestEngine(nil)
	seedContext(te, "？", &domain.Answer{Keywords: "？？", GroupID: testGroup, Count: 9, Messages: []string{"？？"}})

	if got := te.uc.Answer(context.Background(), te.event(testGroup, "u1", "？", 0)); got != nil {
		t.Errorf("Expected no reply to short text, got %v", got)
	}
}

func TestChatUsecase_Answer_NoContext(t *testing.T) {
	te := newTestEngine(nil)
	if got := te.uc.Answer(context.Background(), te.event(testGroup, "u1", "没学过的话", 0)); got != nil {
		t.Errorf("Expected no reply, got %v", got)
	}
}

func TestChatUsecase_Answer_CrossGroupPromotion(t *testing.T) {
	te := newTestEngine(nil)
	seedContext(te, "下班了",
		&domain.Answer{Keywords: "好耶", GroupID: "oc_a", Count: 5, Messages: []string{"好耶"}},
	)

	if got := te.uc.Answer(context.Background(), te.event(testGroup, "u1", "下班了", 0)); got != nil {
		t.Fatalf("Expected single other-group answer to stay staged, got %v", got)
	}

	seedContext(te, "下班了",
		&domain.Answer{Keywords: "好耶", GroupID: "oc_a", Count: 5, Messages: []string{"好耶"}},
		&domain.Answer{Keywords: "好耶", GroupID: "oc_b", Count: 5, Messages: []string{"好耶！"}},
	)
	got := te.uc.Answer(context.Background(), te.event(testGroup, "u1", "下班了", 1))
	if len(got) != 1 || (got[0] != "好耶" && got[0] != "好耶！") {
		t.Errorf("Expected promoted answer, got %v", got)
	}
}

func TestChatUsecase_Answer_SkipsOtherGroupMentions(t *testing.T) {
	te := newTestEngine(nil)
	seedContext(te, "谁来",
		&domain.Answer{Keywords: "[CQ:at,qq=ou_x] 你", GroupID: "oc_a", Count: 5, Messages: []string{"[CQ:at,qq=ou_x] 你"}},
		&domain.Answer{Keywords: "[CQ:at,qq=ou_x] 你", GroupID: "oc_b", Count: 5, Messages: []string{"[CQ:at,qq=ou_x] 你"}},
	)
	if got := te.uc.Answer(context.Background(), te.event(testGroup, "u1", "谁来", 0)); got != nil {
		t.Errorf("Expected other-group mentions to be skipped, got %v", got)
	}
}

func TestChatUsecase_Answer_Filters(t *testing.T) {
	tests := []struct {
		name   string
		sample string
	}{
		{"multi line", "第一行\n第二行"},
		{"xml", "[CQ:xml,data=1]"},
		{"bare digits", "240"},
		{"call prefix", "bot你好"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			te := newTestEngine(nil)
			seedContext(te, "触发词", &domain.Answer{
				Keywords: tt.sample, GroupID: testGroup, Count: 9, Messages: []string{tt.sample},
			})
			if got := te.uc.Answer(context.Background(), te.event(testGroup, "u1", "触发词", 0)); got != nil {
				t.Errorf("Expected %q to be filtered, got %v", tt.sample, got)
			}
		})
	}
}

func TestChatUsecase_Answer_ImageWantsMarkup(t *testing.T) {
	te := newTestEngine(nil)
	img := "[CQ:image,file=cat.image]"
	seedContext(te, img, &domain.Answer{Keywords: "哈哈哈", GroupID: testGroup, Count: 9, Messages: []string{"哈哈哈"}})

	f := te.uc.Extract(domain.ChatEvent{GroupID: testGroup, UserID: "u1", BotID: testBot, RawMessage: img, Time: baseTime})
	if got := te.uc.Answer(context.Background(), f); got != nil {
		t.Errorf("Expected text answer to image to be filtered, got %v", got)
	}
}

func TestChatUsecase_Answer_StripsCallPrefixWhenAddressed(t *testing.T) {
	te := newTestEngine(nil)
	seedContext(te, "你叫什么", &domain.Answer{
		Keywords: "bot我是机器人呀", GroupID: testGroup, Count: 9, Messages: []string{"bot我是机器人呀"},
	})

	f := te.uc.Extract(domain.ChatEvent{
		GroupID: testGroup, UserID: "u1", BotID: testBot,
		RawMessage: "[CQ:at,qq=ou_bot]你叫什么", PlainText: "你叫什么", Time: baseTime,
	})
	f.Keywords = "你叫什么"
	got := te.uc.Answer(context.Background(), f)
	if len(got) != 1 || got[0] != "我是机器人呀" {
		t.Errorf("Expected prefix stripped reply, got %v", got)
	}
}

func TestChatUsecase_Answer_SplitsClauses(t *testing.T) {
	te := newTestEngine(func(cfg *EngineConfig) { cfg.SplitProbability = 1 })
	seedContext(te, "怎么样", &domain.Answer{
		Keywords: "还行", GroupID: testGroup, Count: 9, Messages: []string{"还行，就是有点累，"},
	})

	got := te.uc.Answer(context.Background(), te.event(testGroup, "u1", "怎么样", 0))
	if len(got) != 2 || got[0] != "还行" || got[1] != "就是有点累" {
		t.Fatalf("Expected two segments, got %v", got)
	}
	if n := len(te.uc.ledger(testGroup, testBot)); n != 2 {
		t.Errorf("Expected each segment in the ledger, got %d entries", n)
	}
}

func TestChatUsecase_Answer_TopicalAnswerDominates(t *testing.T) {
	te := newTestEngine(nil)
	te.uc.topicsMu.Lock()
	te.uc.pushTopicsLocked(testGroup, "火锅")
	te.uc.topicsMu.Unlock()

	for seed := int64(1); seed <= 3; seed++ {
		te.uc.rnd = newLockedRand(seed)
		te.uc.replies = make(map[string]map[string][]*domain.ReplyRecord)
		seedContext(te, "吃什么",
			&domain.Answer{Keywords: "面条", GroupID: testGroup, Count: 1, Messages: []string{"面条"}},
			&domain.Answer{Keywords: "火锅", GroupID: testGroup, Count: 3, Messages: []string{"火锅吧"}},
		)
		got := te.uc.Answer(context.Background(), te.event(testGroup, "u1", "吃什么", 0))
		if len(got) != 1 || got[0] != "火锅吧" {
			t.Fatalf("seed %d: Expected topical answer, got %v", seed, got)
		}
	}
}
