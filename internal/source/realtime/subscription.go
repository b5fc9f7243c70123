package realtime

import (
	"sort"
	"sync"

	"atelier/internal/source"
	"atelier/pkg/model"
)

// subscription keeps the local copy of one collection. Messages for it are
// handled on the read goroutine, one at a time.
type subscription struct {
	client     *Client
	id         string
	collection string
	order      model.Order
	d          *source.Dispatcher

	mu     sync.Mutex
	docs   map[string]model.Document
	synced bool
	once   sync.Once
}

func (s *subscription) subscribeMessage() BaseMessage {
	return BaseMessage{
		ID:   s.id,
		Type: TypeSubscribe,
		Payload: mustMarshal(SubscribePayload{
			Query:        Query{Collection: s.collection},
			IncludeData:  true,
			SendSnapshot: true,
		}),
	}
}

func (s *subscription) applySnapshot(docs []map[string]interface{}) {
	s.mu.Lock()
	s.docs = make(map[string]model.Document, len(docs))
	for _, raw := range docs {
		doc := model.Document(raw)
		if id := doc.GetID(); id != "" {
			s.docs[id] = doc
		}
	}
	s.synced = true
	out := s.ordered()
	s.mu.Unlock()
	s.d.Snapshot(out)
}

// resync marks the local copy stale until the next snapshot. The copy is
// kept, so nothing is emitted until that snapshot replaces it.
func (s *subscription) resync() {
	s.mu.Lock()
	s.synced = false
	s.mu.Unlock()
}

// applyEvent patches the local copy. Events before the snapshot of the
// current connection are dropped; the snapshot already includes them.
func (s *subscription) applyEvent(ev PublicEvent) {
	s.mu.Lock()
	if !s.synced {
		s.mu.Unlock()
		return
	}
	id := ev.ID
	if id == "" && ev.Document != nil {
		id = model.Document(ev.Document).GetID()
	}
	switch ev.Type {
	case EventCreate, EventUpdate:
		if ev.Document == nil || id == "" {
			s.mu.Unlock()
			return
		}
		doc := model.Document(ev.Document)
		if doc.GetID() == "" {
			doc = doc.Clone()
			doc.SetID(id)
		}
		s.docs[id] = doc
	case EventDelete:
		delete(s.docs, id)
	default:
		s.mu.Unlock()
		return
	}
	out := s.ordered()
	s.mu.Unlock()
	s.d.Snapshot(out)
}

// ordered lists the local copy by the order hint, then by id.
func (s *subscription) ordered() []model.Document {
	out := make([]model.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GetID() < out[j].GetID() })
	source.SortDocuments(out, s.order)
	return out
}

// Cancel implements source.Subscription.
func (s *subscription) Cancel() {
	s.once.Do(func() {
		s.d.Cancel()
		s.client.unsubscribe(s)
	})
}
