package survey

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/fhe-survey/log"
	"github.com/vocdoni/fhe-survey/types"
)

// EventType identifies a survey state transition notification.
type EventType string

const (
	EventSurveyCreated    EventType = "surveyCreated"
	EventVoteSubmitted    EventType = "voteSubmitted"
	EventSurveyEnded      EventType = "surveyEnded"
	EventResultsDecrypted EventType = "resultsDecrypted"
)

// Event is a notification fired on a survey state transition. Address carries
// the creator for EventSurveyCreated and the voter for EventVoteSubmitted.
type Event struct {
	Type      EventType      `json:"type"`
	SurveyID  types.SurveyID `json:"surveyId"`
	Address   common.Address `json:"address,omitempty"`
	Title     string         `json:"title,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

const eventChanBuffer = 64

type eventBus struct {
	mu   sync.RWMutex
	subs []chan Event
}

// subscribe registers a new subscriber channel.
func (b *eventBus) subscribe() <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Event, eventChanBuffer)
	b.subs = append(b.subs, ch)
	return ch
}

// publish delivers the event to every subscriber without blocking; slow
// subscribers miss events rather than stall the engine.
func (b *eventBus) publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			log.Warnw("dropping event for slow subscriber", "type", string(ev.Type), "surveyId", ev.SurveyID)
		}
	}
}
