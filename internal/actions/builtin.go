package actions

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/unigrow/unigrow-bot/internal/conversation"
	"github.com/unigrow/unigrow-bot/internal/extract"
	"github.com/unigrow/unigrow-bot/internal/llm"
	"github.com/unigrow/unigrow-bot/internal/media"
	"github.com/unigrow/unigrow-bot/internal/reply"
)

// Action names.
const (
	QueryLLMFallback         = "action_query_llm_fallback"
	QueryLLMAdvanced         = "action_query_llm_advanced"
	GetUserAge               = "action_get_user_age"
	ExtractAgeEntity         = "action_extract_age_entity"
	StoreHeightInfo          = "action_store_height_info"
	ValidateHeight           = "action_validate_height"
	ConfirmPurchaseIntent    = "action_confirm_purchase_intent"
	ProvidePricingOptions    = "action_provide_pricing_options"
	GetProductRecommendation = "action_get_product_recommendation"
	SummarizeConversation    = "action_summarize_conversation"
	DefaultFallback          = "action_default_fallback"
	ScheduleNurture          = "action_schedule_nurture"
)

const (
	llmTemperature = 0.7
	llmMaxTokens   = 512
)

type actionFunc struct {
	name string
	run  func(ctx context.Context, d *Dispatcher, t *Tracker) ([]Event, error)
}

func (a actionFunc) Name() string { return a.name }

func (a actionFunc) Run(ctx context.Context, d *Dispatcher, t *Tracker) ([]Event, error) {
	return a.run(ctx, d, t)
}

func builtin(deps Deps) []Action {
	log := deps.Logger
	return []Action{
		&llmAction{name: QueryLLMFallback, llm: deps.LLM, logger: log},
		&llmAction{name: QueryLLMAdvanced, llm: deps.LLM, logger: log, withContext: true},
		actionFunc{name: GetUserAge, run: getUserAge},
		actionFunc{name: ExtractAgeEntity, run: extractAgeEntity(log)},
		actionFunc{name: StoreHeightInfo, run: storeHeightInfo},
		actionFunc{name: ValidateHeight, run: validateHeight(log)},
		actionFunc{name: ConfirmPurchaseIntent, run: func(_ context.Context, d *Dispatcher, t *Tracker) ([]Event, error) {
			d.Utter(reply.PurchaseConfirmation(t.Slots))
			return nil, nil
		}},
		&pricingAction{media: deps.Media},
		actionFunc{name: GetProductRecommendation, run: func(_ context.Context, d *Dispatcher, t *Tracker) ([]Event, error) {
			d.Utter(reply.ProductRecommendation(t.Slots))
			return nil, nil
		}},
		actionFunc{name: SummarizeConversation, run: func(_ context.Context, d *Dispatcher, t *Tracker) ([]Event, error) {
			d.Utter(reply.Summary(t.Slots))
			return nil, nil
		}},
		actionFunc{name: DefaultFallback, run: func(_ context.Context, d *Dispatcher, _ *Tracker) ([]Event, error) {
			d.Utter(reply.DefaultFallback)
			return nil, nil
		}},
		&nurtureAction{scheduler: deps.Scheduler, logger: log},
	}
}

// llmAction forwards the user's message to the language model, optionally
// with the known slots as context.
type llmAction struct {
	name        string
	llm         Generator
	logger      *slog.Logger
	withContext bool
}

func (a *llmAction) Name() string { return a.name }

func (a *llmAction) Run(ctx context.Context, d *Dispatcher, t *Tracker) ([]Event, error) {
	if a.llm == nil {
		d.Utter(reply.DefaultFallback)
		return nil, nil
	}

	prompt := reply.FallbackPrompt(t.Text)
	if a.withContext {
		prompt = reply.ContextPrompt(t.Text, t.Slots)
	}
	a.logger.Info("llm fallback triggered", "action", a.name, "sender_id", t.SenderID)

	d.Utter(a.llm.Generate(ctx, llm.Request{
		Prompt:       prompt,
		SystemPrompt: reply.SystemPrompt,
		Temperature:  llmTemperature,
		MaxTokens:    llmMaxTokens,
	}))
	return nil, nil
}

func getUserAge(_ context.Context, d *Dispatcher, t *Tracker) ([]Event, error) {
	age, ok := t.Entity(EntityAge)
	if !ok {
		d.Utter(reply.AskAge)
		return nil, nil
	}
	if _, err := strconv.Atoi(age); err != nil {
		d.Utter(reply.AskAge)
		return nil, nil
	}
	d.Utter(reply.AgeAcknowledgement(age))
	return []Event{SlotSet(conversation.SlotAge, age)}, nil
}

func extractAgeEntity(logger *slog.Logger) func(context.Context, *Dispatcher, *Tracker) ([]Event, error) {
	return func(_ context.Context, _ *Dispatcher, t *Tracker) ([]Event, error) {
		age, ok := extract.Age(t.Text)
		if !ok {
			return nil, nil
		}
		logger.Info("extracted age", "sender_id", t.SenderID, "age", age)
		return []Event{SlotSet(conversation.SlotAge, strconv.Itoa(age))}, nil
	}
}

func storeHeightInfo(_ context.Context, d *Dispatcher, t *Tracker) ([]Event, error) {
	current, hasCurrent := t.Entity(EntityCurrentHeight)
	target, hasTarget := t.Entity(EntityTargetHeight)

	var events []Event
	if hasCurrent {
		events = append(events, SlotSet(conversation.SlotHeight, current))
	}
	if hasTarget {
		events = append(events, SlotSet(conversation.SlotTargetHeight, target))
	}
	if hasCurrent && hasTarget {
		d.Utter(reply.HeightGoal(current, target))
	}
	return events, nil
}

func validateHeight(logger *slog.Logger) func(context.Context, *Dispatcher, *Tracker) ([]Event, error) {
	return func(_ context.Context, d *Dispatcher, t *Tracker) ([]Event, error) {
		heights := extract.Heights(t.Text)
		if len(heights) == 0 {
			return nil, nil
		}
		logger.Info("found heights", "sender_id", t.SenderID, "heights", heights)
		d.Utter(reply.HeightAcknowledgement(heights[0]))
		return nil, nil
	}
}

// pricingAction lists the packages, with the product picture when available.
type pricingAction struct {
	media ImageLocator
}

func (a *pricingAction) Name() string { return ProvidePricingOptions }

func (a *pricingAction) Run(_ context.Context, d *Dispatcher, _ *Tracker) ([]Event, error) {
	if a.media != nil {
		if url, ok := a.media.ProductImageURL(media.DefaultProduct); ok {
			d.UtterImage(reply.PricingOptions, url)
			return nil, nil
		}
	}
	d.Utter(reply.PricingOptions)
	return nil, nil
}

// nurtureAction queues the nurture sequence unless one is already pending.
type nurtureAction struct {
	scheduler NurtureScheduler
	logger    *slog.Logger
}

func (a *nurtureAction) Name() string { return ScheduleNurture }

func (a *nurtureAction) Run(_ context.Context, _ *Dispatcher, t *Tracker) ([]Event, error) {
	if a.scheduler == nil {
		return nil, nil
	}
	if pending := a.scheduler.PendingFor(t.SenderID); len(pending) > 0 {
		a.logger.Debug("nurture already pending", "sender_id", t.SenderID, "pending", len(pending))
		return nil, nil
	}
	msgs := a.scheduler.ScheduleNurture(t.SenderID)
	a.logger.Info("nurture sequence scheduled", "sender_id", t.SenderID, "count", len(msgs))
	return nil, nil
}
