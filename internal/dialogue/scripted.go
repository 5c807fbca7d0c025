package dialogue

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/unigrow/unigrow-bot/internal/actions"
	"github.com/unigrow/unigrow-bot/internal/conversation"
	"github.com/unigrow/unigrow-bot/internal/extract"
	"github.com/unigrow/unigrow-bot/internal/reply"
)

// Intent names recognised by the scripted engine.
const (
	IntentGreet       = "greet"
	IntentGoodbye     = "goodbye"
	IntentAskPrice    = "ask_price"
	IntentPurchase    = "purchase"
	IntentSummary     = "summary"
	IntentEntities    = "provide_info"
	IntentProductInfo = "product_info"
	IntentRecommend   = "recommend"
	IntentFallback    = "fallback"
)

type intentRule struct {
	name     string
	keywords []*regexp.Regexp
}

// Rules are tried in order; the first whose keyword matches wins. Entity
// turns are checked between summary and product_info.
var intentRules = []intentRule{
	{name: IntentGreet, keywords: words("xin chào", "chào bạn", "chào", "hello", "alo")},
	{name: IntentGoodbye, keywords: words("tạm biệt", "bye", "goodbye", "hẹn gặp lại")},
	{name: IntentAskPrice, keywords: words("giá", "bao nhiêu tiền", "giá cả", "price", "bảng giá", "gói nào")},
	{name: IntentPurchase, keywords: words("mua", "đặt hàng", "order", "chốt đơn")},
	{name: IntentSummary, keywords: words("tóm tắt", "tổng kết", "summary")},
	{name: IntentProductInfo, keywords: words("unigrow", "sản phẩm", "thành phần", "là gì", "công dụng")},
	{name: IntentRecommend, keywords: words("phù hợp", "tư vấn", "khuyên", "nên dùng", "recommend")},
}

func words(keywords ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(keywords))
	for _, kw := range keywords {
		out = append(out, regexp.MustCompile(`(?:^|[^\p{L}\p{N}])`+regexp.QuoteMeta(kw)+`(?:$|[^\p{L}\p{N}])`))
	}
	return out
}

func (r intentRule) matches(normalized string) bool {
	for _, re := range r.keywords {
		if re.MatchString(normalized) {
			return true
		}
	}
	return false
}

// Classify returns the intent of text and the entities found in it.
func Classify(text string) (string, extract.Entities) {
	s := extract.Normalize(text)
	ents := extract.Extract(text)

	for _, rule := range intentRules {
		if rule.name == IntentProductInfo && !ents.Empty() {
			return IntentEntities, ents
		}
		if rule.matches(s) {
			return rule.name, ents
		}
	}
	if !ents.Empty() {
		return IntentEntities, ents
	}
	return IntentFallback, ents
}

// ScriptedEngine is a keyword-driven engine running the built-in actions.
type ScriptedEngine struct {
	registry *actions.Registry
	slots    *conversation.Tracker
	logger   *slog.Logger
}

// NewScriptedEngine creates the built-in engine.
func NewScriptedEngine(registry *actions.Registry, slots *conversation.Tracker, logger *slog.Logger) *ScriptedEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScriptedEngine{registry: registry, slots: slots, logger: logger}
}

// Ready always succeeds.
func (e *ScriptedEngine) Ready(context.Context) error {
	return nil
}

// Handle runs one turn under the user's turn lock.
func (e *ScriptedEngine) Handle(ctx context.Context, senderID, text string) ([]Response, error) {
	unlock := e.slots.Lock(senderID)
	defer unlock()

	state, err := e.slots.State(ctx, senderID)
	if err != nil {
		return nil, fmt.Errorf("load slots: %w", err)
	}

	intent, ents := Classify(text)
	t := &actions.Tracker{
		SenderID: senderID,
		Text:     text,
		Entities: trackerEntities(ents),
		Slots:    state,
	}
	e.logger.Debug("intent classified", "sender_id", senderID, "intent", intent)

	var d actions.Dispatcher
	var events []actions.Event
	runAction := func(name string) error {
		ev, err := e.registry.Run(ctx, name, &d, t)
		if err != nil {
			return err
		}
		events = append(events, ev...)
		return nil
	}

	// Entity-bearing turns acknowledge through their own actions; every other
	// intent still records what the message carried before it runs.
	if intent != IntentEntities {
		ev := entityEvents(ents)
		t.Apply(ev)
		events = append(events, ev...)
	}

	switch intent {
	case IntentGreet:
		d.Utter(reply.Greeting)
	case IntentGoodbye:
		d.Utter(reply.Goodbye)
	case IntentAskPrice:
		err = runAction(actions.ProvidePricingOptions)
	case IntentPurchase:
		err = runAction(actions.ConfirmPurchaseIntent)
	case IntentSummary:
		err = runAction(actions.SummarizeConversation)
	case IntentEntities:
		err = e.handleEntities(ents, t, &d, runAction)
	case IntentProductInfo:
		d.Utter(reply.ProductInfo)
		err = runAction(actions.ScheduleNurture)
	case IntentRecommend:
		err = runAction(actions.GetProductRecommendation)
	default:
		err = runAction(actions.QueryLLMAdvanced)
	}
	if err != nil {
		return nil, err
	}

	if updates := actions.SlotUpdates(events); len(updates) > 0 {
		if err := e.slots.Apply(ctx, senderID, updates); err != nil {
			e.logger.Warn("failed to persist slots", "sender_id", senderID, "error", err)
		}
	}

	out := make([]Response, 0, len(d.Responses()))
	for _, r := range d.Responses() {
		out = append(out, Response{RecipientID: senderID, Text: r.Text, Image: r.Image})
	}
	return out, nil
}

// handleEntities stores whatever age and heights the message carried and
// acknowledges the most specific one.
func (e *ScriptedEngine) handleEntities(ents extract.Entities, t *actions.Tracker, d *actions.Dispatcher, run func(string) error) error {
	if ents.Age != nil {
		if err := run(actions.GetUserAge); err != nil {
			return err
		}
	}

	current := ents.CurrentHeight()
	if current == "" && ents.TargetHeight == "" {
		return nil
	}
	if err := run(actions.StoreHeightInfo); err != nil {
		return err
	}

	switch {
	case current != "" && ents.TargetHeight == "":
		return run(actions.ValidateHeight)
	case current == "" && t.Slots.Height != "":
		d.Utter(reply.HeightGoal(t.Slots.Height, ents.TargetHeight))
	case current == "":
		d.Utter(reply.TargetAcknowledgement(ents.TargetHeight))
	}
	return nil
}

func entityEvents(ents extract.Entities) []actions.Event {
	var out []actions.Event
	if ents.Age != nil {
		out = append(out, actions.SlotSet(conversation.SlotAge, strconv.Itoa(*ents.Age)))
	}
	if h := ents.CurrentHeight(); h != "" {
		out = append(out, actions.SlotSet(conversation.SlotHeight, h))
	}
	if ents.TargetHeight != "" {
		out = append(out, actions.SlotSet(conversation.SlotTargetHeight, ents.TargetHeight))
	}
	return out
}

func trackerEntities(ents extract.Entities) []actions.Entity {
	var out []actions.Entity
	if ents.Age != nil {
		out = append(out, actions.Entity{Entity: actions.EntityAge, Value: strconv.Itoa(*ents.Age)})
	}
	if h := ents.CurrentHeight(); h != "" {
		out = append(out, actions.Entity{Entity: actions.EntityCurrentHeight, Value: h})
	}
	if ents.TargetHeight != "" {
		out = append(out, actions.Entity{Entity: actions.EntityTargetHeight, Value: ents.TargetHeight})
	}
	return out
}

// FirstText returns the first non-empty response text.
func FirstText(responses []Response) (string, bool) {
	for _, r := range responses {
		if strings.TrimSpace(r.Text) != "" {
			return r.Text, true
		}
	}
	return "", false
}
