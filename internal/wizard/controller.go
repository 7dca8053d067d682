package wizard

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"gift-concierge/internal/domain"
)

const defaultMaxQueryLen = 300

// Backend is the recommendation service consulted on every round.
type Backend interface {
	Chat(ctx context.Context, in domain.ChatRequest) (domain.ChatResponse, error)
}

// Tracker receives analytics events. Implementations must not block and
// never report failures back to the dialog.
type Tracker interface {
	TrackClick(ev domain.ClickEvent)
	TrackConversion(ev domain.ConversionEvent)
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

// Selection accumulates the shopper's wizard inputs.
type Selection struct {
	OccasionID      string `json:"occasionId,omitempty"`
	Occasion        string `json:"occasion,omitempty"`
	RecipientID     string `json:"recipientId,omitempty"`
	Recipient       string `json:"recipient,omitempty"`
	CustomRecipient string `json:"customRecipient,omitempty"`
	Query           string `json:"query,omitempty"`
	CustomQuery     bool   `json:"customQuery,omitempty"`
}

// Snapshot is the read-only state handed to presentation.
type Snapshot struct {
	Step              Step                `json:"step"`
	Selection         Selection           `json:"selection"`
	SessionID         string              `json:"sessionId,omitempty"`
	Transcript        []domain.Turn       `json:"transcript"`
	Products          []domain.Product    `json:"products"`
	Feedback          map[string]Feedback `json:"feedback"`
	Loading           bool                `json:"loading"`
	RefinementVisible bool                `json:"refinementVisible"`
	RefinementOptions []RefinementOption  `json:"refinementOptions,omitempty"`
	OccasionOptions   []Occasion          `json:"occasionOptions,omitempty"`
	RecipientOptions  []Recipient         `json:"recipientOptions,omitempty"`
}

type Option func(*Controller)

func WithTracker(t Tracker) Option {
	return func(c *Controller) { c.tracker = t }
}

// WithObserver registers a callback invoked after every state change, outside
// the controller's lock.
func WithObserver(fn func(Event)) Option {
	return func(c *Controller) { c.observer = fn }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMaxHistoryRounds bounds the history sent to the backend. Zero sends the
// whole transcript.
func WithMaxHistoryRounds(n int) Option {
	return func(c *Controller) {
		if n >= 0 {
			c.maxHistoryRounds = n
		}
	}
}

func WithMaxQueryLength(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.maxQueryLen = n
		}
	}
}

// Controller is the wizard state machine for one dialog. Every exported
// method is safe for concurrent use; backend calls run without the lock held
// and only one may be in flight.
type Controller struct {
	backend          Backend
	tracker          Tracker
	observer         func(Event)
	logger           *slog.Logger
	now              func() time.Time
	maxHistoryRounds int
	maxQueryLen      int

	mu        sync.Mutex
	step      Step
	selection Selection
	session   Session
	log       ConversationLog
	batch     []domain.Product
	feedback  FeedbackLedger
	inFlight  bool
	epoch     uint64
}

func NewController(backend Backend, opts ...Option) (*Controller, error) {
	if backend == nil {
		return nil, errors.New("wizard: backend must not be nil")
	}
	c := &Controller{
		backend:     backend,
		logger:      slog.Default(),
		now:         time.Now,
		maxQueryLen: defaultMaxQueryLen,
		step:        StepOccasion,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SelectOccasion records the occasion and advances to the recipient step.
func (c *Controller) SelectOccasion(occasionID string) error {
	occ, ok := LookupOccasion(strings.TrimSpace(occasionID))
	if !ok {
		return newError(ErrorInvalidInput, "unknown_occasion", nil)
	}

	c.mu.Lock()
	if c.step != StepOccasion {
		c.mu.Unlock()
		return newError(ErrorInvalidTransition, "not_on_occasion_step", nil)
	}
	c.selection.OccasionID = occ.ID
	c.selection.Occasion = occ.Label
	c.moveLocked(StepRecipient)
	c.mu.Unlock()

	c.notify(Event{Kind: EventOccasionSelected, Step: StepRecipient})
	return nil
}

// SelectRecipient records the recipient, derives the suggested query and
// advances to the describe step. customText is required for the custom
// recipient and ignored otherwise.
func (c *Controller) SelectRecipient(recipientID, customText string) error {
	recipientID = strings.TrimSpace(recipientID)
	customText = strings.TrimSpace(customText)
	if !isKnownRecipient(recipientID) {
		return newError(ErrorInvalidInput, "unknown_recipient", nil)
	}
	label := recipientID
	if recipientID == RecipientCustom {
		if customText == "" {
			return newError(ErrorInvalidInput, "custom_recipient_required", nil)
		}
		label = customText
	} else {
		customText = ""
	}

	c.mu.Lock()
	if c.step != StepRecipient {
		c.mu.Unlock()
		return newError(ErrorInvalidTransition, "not_on_recipient_step", nil)
	}
	c.selection.RecipientID = recipientID
	c.selection.Recipient = label
	c.selection.CustomRecipient = customText
	c.selection.Query = deriveQuery(c.selection.Occasion, label)
	c.selection.CustomQuery = false
	c.moveLocked(StepDescribe)
	c.mu.Unlock()

	c.notify(Event{Kind: EventRecipientSelected, Step: StepDescribe})
	return nil
}

// SubmitFreeText runs a round straight from the recipient step with the
// shopper's own description, jumping to browse when products come back.
func (c *Controller) SubmitFreeText(ctx context.Context, text string) error {
	query, err := c.validateQuery(text)
	if err != nil {
		return err
	}
	return c.runRound(ctx, roundSpec{
		kind:    RoundFreeText,
		from:    StepRecipient,
		prepare: func() (string, *Error) { return query, nil },
		apply: func(sel *Selection, q string) {
			sel.Query = q
			sel.CustomQuery = true
		},
	})
}

// SubmitQuery runs a round from the describe step. isCustom records whether
// the shopper edited the suggested query.
func (c *Controller) SubmitQuery(ctx context.Context, text string, isCustom bool) error {
	query, err := c.validateQuery(text)
	if err != nil {
		return err
	}
	return c.runRound(ctx, roundSpec{
		kind:    RoundQuery,
		from:    StepDescribe,
		prepare: func() (string, *Error) { return query, nil },
		apply: func(sel *Selection, q string) {
			sel.Query = q
			sel.CustomQuery = isCustom
		},
	})
}

// ApplyRefinement re-queries with the last query plus the reason's text. It is
// only accepted while the refinement menu is visible and keeps the dialog on
// the browse step. The selection's query is left as is, so refinements never
// stack.
func (c *Controller) ApplyRefinement(ctx context.Context, reason RefinementReason) error {
	if _, err := RefineQuery("", reason); err != nil {
		return newError(ErrorInvalidInput, "unknown_refinement_reason", err)
	}
	return c.runRound(ctx, roundSpec{
		kind:   RoundRefinement,
		from:   StepBrowse,
		reason: reason,
		prepare: func() (string, *Error) {
			if !c.refinementVisibleLocked() {
				return "", newError(ErrorInvalidTransition, "refinement_not_offered", nil)
			}
			q, _ := RefineQuery(c.selection.Query, reason)
			return q, nil
		},
	})
}

// RecordFeedback stores the shopper's reaction to a product of the current
// batch and re-evaluates the refinement trigger.
func (c *Controller) RecordFeedback(sku string, fb Feedback) error {
	if fb != FeedbackUp && fb != FeedbackDown {
		return newError(ErrorInvalidInput, "unknown_feedback", nil)
	}
	sku = strings.TrimSpace(sku)

	c.mu.Lock()
	if _, ok := c.positionLocked(sku); !ok {
		c.mu.Unlock()
		return newError(ErrorInvalidInput, "unknown_sku", nil)
	}
	wasVisible := c.refinementVisibleLocked()
	c.feedback.Set(sku, fb)
	nowVisible := c.refinementVisibleLocked()
	step := c.step
	c.mu.Unlock()

	events := []Event{{Kind: EventFeedbackRecorded, Step: step, Feedback: fb}}
	if nowVisible && !wasVisible {
		events = append(events, Event{Kind: EventRefinementOffered, Step: step})
	}
	c.notify(events...)
	return nil
}

// NavigateBack returns to an earlier step, clearing every piece of state that
// belongs to later steps. Session and transcript are kept.
func (c *Controller) NavigateBack(target Step) error {
	if !target.Valid() {
		return newError(ErrorInvalidInput, "unknown_step", nil)
	}

	c.mu.Lock()
	if target >= c.step {
		c.mu.Unlock()
		return newError(ErrorInvalidTransition, "not_a_previous_step", nil)
	}
	switch target {
	case StepOccasion:
		c.selection = Selection{}
	case StepRecipient:
		occasionID, occasion := c.selection.OccasionID, c.selection.Occasion
		c.selection = Selection{OccasionID: occasionID, Occasion: occasion}
	}
	c.batch = nil
	c.feedback.ReplaceAll(nil)
	c.moveLocked(target)
	c.mu.Unlock()

	c.notify(Event{Kind: EventNavigatedBack, Step: target})
	return nil
}

// TrackClick reports a product click followed by a conversion. Nothing is
// sent until the backend has issued a session id.
func (c *Controller) TrackClick(sku string) error {
	sku = strings.TrimSpace(sku)

	c.mu.Lock()
	pos, ok := c.positionLocked(sku)
	var name string
	if ok {
		name = c.batch[pos].Name
	}
	sessionID, hasSession := c.session.ID()
	c.mu.Unlock()

	if !ok {
		return newError(ErrorInvalidInput, "unknown_sku", nil)
	}
	if !hasSession || c.tracker == nil {
		return nil
	}
	now := c.now().UTC()
	c.tracker.TrackClick(domain.ClickEvent{SessionID: sessionID, Sku: sku, Name: name, Position: pos + 1, OccurredAt: now})
	c.tracker.TrackConversion(domain.ConversionEvent{SessionID: sessionID, OccurredAt: now})
	return nil
}

// Snapshot returns a deep copy of the presentation-visible state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	sessionID, _ := c.session.ID()
	products := domain.CloneProducts(c.batch)
	if products == nil {
		products = []domain.Product{}
	}
	snap := Snapshot{
		Step:              c.step,
		Selection:         c.selection,
		SessionID:         sessionID,
		Transcript:        c.log.Turns(),
		Products:          products,
		Feedback:          c.feedback.Entries(),
		Loading:           c.inFlight,
		RefinementVisible: c.refinementVisibleLocked(),
	}
	if snap.RefinementVisible {
		snap.RefinementOptions = RefinementOptions()
	}
	switch c.step {
	case StepOccasion:
		snap.OccasionOptions = Occasions()
	case StepRecipient:
		occ, _ := LookupOccasion(c.selection.OccasionID)
		snap.RecipientOptions = RecipientOptions(occ.Kind)
	}
	return snap
}

func (c *Controller) validateQuery(text string) (string, error) {
	query := strings.TrimSpace(text)
	if query == "" {
		return "", newError(ErrorInvalidInput, "empty_query", nil)
	}
	if len(query) > c.maxQueryLen {
		return "", newError(ErrorInvalidInput, "query_too_long", nil)
	}
	return query, nil
}

type roundSpec struct {
	kind   RoundKind
	from   Step
	reason RefinementReason
	// prepare runs with the lock held and yields the query to send.
	prepare func() (string, *Error)
	// apply runs with the lock held when the response lands on a dialog that
	// has not changed step since the request was sent.
	apply func(sel *Selection, query string)
}

// runRound performs one backend round: request built from the transcript and
// session, response adopted all-or-nothing.
func (c *Controller) runRound(ctx context.Context, spec roundSpec) error {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return newError(ErrorBusy, "round_in_flight", nil)
	}
	if c.step != spec.from {
		c.mu.Unlock()
		return newError(ErrorInvalidTransition, "not_on_"+spec.from.String()+"_step", nil)
	}
	query, pErr := spec.prepare()
	if pErr != nil {
		c.mu.Unlock()
		return pErr
	}
	req := domain.ChatRequest{
		Message:   query,
		SessionID: c.session.requestID(),
		History:   c.log.Render(c.maxHistoryRounds),
	}
	epoch := c.epoch
	c.inFlight = true
	c.mu.Unlock()

	c.notify(Event{Kind: EventRoundStarted, Step: spec.from, Round: spec.kind, Reason: spec.reason})
	started := c.now()
	resp, err := c.backend.Chat(ctx, req)
	elapsed := c.now().Sub(started)

	c.mu.Lock()
	c.inFlight = false
	if err != nil {
		step := c.step
		c.mu.Unlock()
		wErr := backendError(err)
		c.notify(Event{Kind: EventRoundFailed, Step: step, Round: spec.kind, Reason: spec.reason, Err: wErr, Latency: elapsed})
		return wErr
	}

	c.session.Adopt(resp.SessionID)
	now := c.now().UTC()
	c.log.Append(
		domain.Turn{Role: domain.RoleUser, Content: query, Timestamp: now},
		domain.Turn{Role: domain.RoleAssistant, Content: resp.Reply, Products: resp.Products, Intent: resp.Intent, Timestamp: now},
	)

	stale := epoch != c.epoch
	if !stale {
		if spec.apply != nil {
			spec.apply(&c.selection, query)
		}
		if len(resp.Products) > 0 {
			c.batch = domain.CloneProducts(resp.Products)
			c.feedback.ReplaceAll(nil)
			c.moveLocked(StepBrowse)
		}
	}
	step := c.step
	c.mu.Unlock()

	ev := Event{Step: step, Round: spec.kind, Reason: spec.reason, Products: len(resp.Products), Latency: elapsed}
	if stale {
		c.logger.Info("wizard: response arrived after navigation, batch not applied",
			"round", string(spec.kind), "products", len(resp.Products))
		ev.Kind = EventRoundDiscarded
	} else {
		ev.Kind = EventRoundCompleted
	}
	c.notify(ev)
	return nil
}

// moveLocked changes the step and invalidates any in-flight round's claim on
// the batch.
func (c *Controller) moveLocked(step Step) {
	if c.step != step {
		c.epoch++
	}
	c.step = step
}

func (c *Controller) refinementVisibleLocked() bool {
	return c.step == StepBrowse && FullyRejected(c.batch, &c.feedback)
}

func (c *Controller) positionLocked(sku string) (int, bool) {
	if sku == "" {
		return 0, false
	}
	for i, p := range c.batch {
		if p.Sku == sku {
			return i, true
		}
	}
	return 0, false
}

func (c *Controller) notify(events ...Event) {
	if c.observer == nil {
		return
	}
	for _, ev := range events {
		c.observer(ev)
	}
}

func backendError(err error) *Error {
	var statusErr httpStatusCoder
	if errors.As(err, &statusErr) && statusErr.HTTPStatusCode() == 429 {
		return newError(ErrorRateLimited, "backend_rate_limited", err)
	}
	return newError(ErrorUpstream, "backend_error", err)
}
