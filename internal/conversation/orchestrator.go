package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"hopper/internal/config"
	"hopper/internal/models"
	"hopper/internal/session"
)

// ErrBusy is returned when a submission arrives while a generation is
// already in flight. The caller stops the active one first if it wants to
// supersede it.
var ErrBusy = errors.New("a generation is already in flight")

// Generator abstracts the generation session for the orchestrator.
// Implemented by *session.Session.
type Generator interface {
	Start(ctx context.Context, prompt string, prior []models.ChatMessage, onDelta func(string)) (*session.Outcome, error)
	Stop()
}

// SubmitResult reports where a submission landed and how it ended. Err is
// only set for StateFailed and carries the generation error for display.
type SubmitResult struct {
	ThreadID  string
	MessageID string
	State     models.LoadingState
	Err       error
}

// Orchestrator is the single point of coordination between user input, the
// thread store and the generation session. It owns the active-thread
// selection; the store has no notion of "active".
type Orchestrator struct {
	store     *Store
	generator Generator
	settings  config.Store

	mu       sync.Mutex
	active   string
	inFlight bool

	now func() time.Time
}

func NewOrchestrator(store *Store, generator Generator, settings config.Store) *Orchestrator {
	return &Orchestrator{
		store:     store,
		generator: generator,
		settings:  settings,
		now:       time.Now,
	}
}

// ActiveThreadID returns the id of the displayed thread, or "" when no
// thread is selected.
func (o *Orchestrator) ActiveThreadID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active
}

// InFlight reports whether a submission is currently being generated.
func (o *Orchestrator) InFlight() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.inFlight
}

// SelectThread changes the active selection. No side effects on message
// state.
func (o *Orchestrator) SelectThread(id string) error {
	if _, ok := o.store.Get(id); !ok {
		return errors.Wrapf(ErrNotFound, "thread %s", id)
	}
	o.mu.Lock()
	o.active = id
	o.mu.Unlock()
	return nil
}

// NewThread creates an empty thread, makes it active and returns its id.
func (o *Orchestrator) NewThread() string {
	id := o.store.CreateThread(o.now())
	o.mu.Lock()
	o.active = id
	o.mu.Unlock()
	return id
}

// DeleteThread removes a thread. If it was active, the selection moves to
// the most-recently-updated remaining thread, or to none.
func (o *Orchestrator) DeleteThread(id string) error {
	nextActive, err := o.store.Delete(id)
	if err != nil {
		return err
	}
	o.mu.Lock()
	if o.active == id {
		o.active = nextActive
	}
	o.mu.Unlock()
	return nil
}

// Stop aborts the in-flight generation, if any. The pending Submit call
// observes the cancellation and records the turn as INTERRUPTED.
func (o *Orchestrator) Stop() {
	o.generator.Stop()
}

// Submit runs one full turn: resolve the target thread, append a LOADING
// message, generate, and commit the terminal state. Deltas stream to
// onDelta in order. Blocks until the turn reaches a terminal state.
//
// When continueThread is true and an active thread exists, the turn is
// appended there with every LOADED message replayed as prior context;
// otherwise a fresh thread is created and made active.
//
// A missing credential fails with config.ErrNoAPIKey before any thread is
// created or any network activity occurs. A second submission while one is
// in flight is rejected with ErrBusy.
func (o *Orchestrator) Submit(ctx context.Context, content string, continueThread bool, onDelta func(string)) (*SubmitResult, error) {
	o.mu.Lock()
	if o.inFlight {
		o.mu.Unlock()
		return nil, ErrBusy
	}
	o.inFlight = true
	active := o.active
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.inFlight = false
		o.mu.Unlock()
	}()

	if o.settings.APIKey() == "" {
		return nil, config.ErrNoAPIKey
	}
	if onDelta == nil {
		onDelta = func(string) {}
	}

	var threadID string
	var prior []models.ChatMessage

	if _, ok := o.store.Get(active); continueThread && ok {
		threadID = active
		prior = o.store.PriorContext(threadID)
	} else {
		threadID = o.store.CreateThread(o.now())
		o.mu.Lock()
		o.active = threadID
		o.mu.Unlock()
	}

	messageID, err := o.store.AppendLoading(threadID, content, o.now())
	if err != nil {
		return nil, err
	}

	outcome, genErr := o.generator.Start(ctx, content, prior, onDelta)

	res := &SubmitResult{ThreadID: threadID, MessageID: messageID}
	now := o.now()

	switch {
	case genErr == nil:
		res.State = models.StateLoaded
		err = o.store.FinalizeMessage(threadID, messageID, now, func(m *models.Message) {
			m.AIResponse = outcome.Text
			m.State = models.StateLoaded
			m.TimeTaken = outcome.Elapsed
			usage := outcome.Usage
			m.Usage = &usage
		})

	case errors.Is(genErr, context.Canceled):
		// User-initiated stop: keep whatever text had accumulated.
		res.State = models.StateInterrupted
		partial := ""
		elapsed := time.Duration(0)
		if outcome != nil {
			partial = outcome.Text
			elapsed = outcome.Elapsed
		}
		err = o.store.FinalizeMessage(threadID, messageID, now, func(m *models.Message) {
			m.AIResponse = partial
			m.State = models.StateInterrupted
			m.TimeTaken = elapsed
		})

	default:
		// Transport or envelope failure: the partial text is discarded
		// and the turn never re-enters context.
		res.State = models.StateFailed
		res.Err = genErr
		err = o.store.FinalizeMessage(threadID, messageID, now, func(m *models.Message) {
			m.AIResponse = ""
			m.State = models.StateFailed
		})
	}

	if err != nil {
		// ErrTerminal means a newer submission already superseded this
		// turn; its state stays as the newer writer left it.
		log.Warn().Err(err).Str("thread", threadID).Str("message", messageID).Msg("terminal state not committed")
	}

	return res, nil
}
