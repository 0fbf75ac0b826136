package feishu

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"github.com/larksuite/oapi-sdk-go/v3/event/dispatcher"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	larkws "github.com/larksuite/oapi-sdk-go/v3/ws"
)

// Message is a received message already converted to markup
type Message struct {
	ChatID     string
	MsgID      string
	MsgType    string
	ChatType   string // p2p, group
	Raw        string
	Plain      string
	SenderID   string
	SenderType string // user, app
	CreateTime int64  // milliseconds
}

// MessageHandler is the callback for received messages
type MessageHandler func(msg *Message)

// Client is the Feishu API client
type Client struct {
	appID     string
	appSecret string
	larkCli   *lark.Client
	wsCli     *larkws.Client
	onMessage MessageHandler
	ctx       context.Context
	cancel    context.CancelFunc
	botOpenID string
	log       *slog.Logger
}

// NewClient creates a new Feishu client
func NewClient(appID, appSecret string) *Client {
	return &Client{
		appID:     appID,
		appSecret: appSecret,
		larkCli:   lark.NewClient(appID, appSecret),
		log:       slog.Default().With("component", "feishu"),
	}
}

// OnMessage sets the message handler
func (c *Client) OnMessage(handler MessageHandler) {
	c.onMessage = handler
}

// BotOpenID returns the bot's own open_id, empty until discovered
func (c *Client) BotOpenID() string {
	return c.botOpenID
}

// Start connects to Feishu via WebSocket and blocks while listening
func (c *Client) Start() error {
	c.ctx, c.cancel = context.WithCancel(context.Background())

	if err := c.fetchBotOpenID(); err != nil {
		c.log.Warn("failed to fetch bot open_id", "error", err)
	}

	// Handlers must return quickly so the SDK can ACK, otherwise Feishu retries.
	// Events are delivered in order; the handler only converts and enqueues.
	eventHandler := dispatcher.NewEventDispatcher("", "").
		OnP2MessageReceiveV1(func(ctx context.Context, event *larkim.P2MessageReceiveV1) error {
			c.handleMessage(event)
			return nil
		})

	c.wsCli = larkws.NewClient(c.appID, c.appSecret,
		larkws.WithEventHandler(eventHandler),
		larkws.WithLogLevel(larkcore.LogLevelInfo),
	)

	c.log.Info("starting websocket connection")
	return c.wsCli.Start(c.ctx)
}

// Stop disconnects from Feishu
func (c *Client) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
}

// fetchBotOpenID fetches the bot's own open_id
func (c *Client) fetchBotOpenID() error {
	// 1. tenant_access_token
	tokenReq := fmt.Sprintf(`{"app_id":"%s","app_secret":"%s"}`, c.appID, c.appSecret)
	tokenResp, err := http.Post(
		"https://open.feishu.cn/open-apis/auth/v3/tenant_access_token/internal",
		"application/json",
		strings.NewReader(tokenReq),
	)
	if err != nil {
		return fmt.Errorf("get token: %w", err)
	}
	defer tokenResp.Body.Close()

	var tokenResult struct {
		Code              int    `json:"code"`
		TenantAccessToken string `json:"tenant_access_token"`
	}
	if err := json.NewDecoder(tokenResp.Body).Decode(&tokenResult); err != nil {
		return fmt.Errorf("decode token: %w", err)
	}

	// 2. bot info
	req, _ := http.NewRequest("GET", "https://open.feishu.cn/open-apis/bot/v3/info", nil)
	req.Header.Set("Authorization", "Bearer "+tokenResult.TenantAccessToken)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("get bot info: %w", err)
	}
	defer resp.Body.Close()

	var botResult struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
		Bot  struct {
			OpenID  string `json:"open_id"`
			AppName string `json:"app_name"`
		} `json:"bot"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&botResult); err != nil {
		return fmt.Errorf("decode bot info: %w", err)
	}
	if botResult.Code != 0 {
		return fmt.Errorf("API error: %s", botResult.Msg)
	}

	c.botOpenID = botResult.Bot.OpenID
	c.log.Info("bot identity", "open_id", c.botOpenID, "name", botResult.Bot.AppName)
	return nil
}

// handleMessage converts an incoming event and hands it to the callback
func (c *Client) handleMessage(event *larkim.P2MessageReceiveV1) {
	if event.Event == nil || event.Event.Message == nil {
		return
	}
	rawMsg := event.Event.Message
	if rawMsg.ChatId == nil || rawMsg.MessageId == nil || rawMsg.MessageType == nil || rawMsg.Content == nil {
		return
	}

	msg := &Message{
		ChatID:  *rawMsg.ChatId,
		MsgID:   *rawMsg.MessageId,
		MsgType: *rawMsg.MessageType,
	}
	if rawMsg.ChatType != nil {
		msg.ChatType = *rawMsg.ChatType
	}
	if rawMsg.CreateTime != nil {
		if ts, err := strconv.ParseInt(*rawMsg.CreateTime, 10, 64); err == nil {
			msg.CreateTime = ts
		}
	}
	if sender := event.Event.Sender; sender != nil {
		if sender.SenderId != nil && sender.SenderId.OpenId != nil {
			msg.SenderID = *sender.SenderId.OpenId
		}
		if sender.SenderType != nil {
			msg.SenderType = *sender.SenderType
		}
	}

	// Messages sent by apps, this bot included
	if msg.SenderType == "app" {
		return
	}

	mentions := make(map[string]string, len(rawMsg.Mentions))
	for _, m := range rawMsg.Mentions {
		if m.Key != nil && m.Id != nil && m.Id.OpenId != nil {
			mentions[*m.Key] = *m.Id.OpenId
		}
	}

	converted, ok := ConvertContent(msg.MsgType, *rawMsg.Content, mentions)
	if !ok {
		c.log.Debug("unsupported message", "type", msg.MsgType, "msg_id", msg.MsgID)
		return
	}
	parentID := ""
	if rawMsg.ParentId != nil {
		parentID = *rawMsg.ParentId
	}
	msg.Raw = WithReply(converted.Raw, parentID)
	msg.Plain = converted.Plain

	c.log.Debug("received", "type", msg.MsgType, "chat", msg.ChatID, "chat_type", msg.ChatType)

	if c.onMessage != nil {
		c.onMessage(msg)
	}
}

// Send renders markup and sends it to a chat; empty renders are skipped
func (c *Client) Send(ctx context.Context, chatID, text string) error {
	msgType, content := RenderOutgoing(text)
	if msgType == "" {
		return nil
	}

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(larkim.ReceiveIdTypeChatId).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(chatID).
			MsgType(msgType).
			Content(content).
			Build()).
		Build()

	resp, err := c.larkCli.Im.Message.Create(ctx, req)
	if err != nil {
		return fmt.Errorf("send message failed: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("send message error: %s", resp.Msg)
	}

	c.log.Debug("message sent", "chat", chatID, "type", msgType)
	return nil
}
