package client

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"folios/internal/models"
	"folios/internal/reconcile"
)

var ErrSessionClosed = errors.New("session closed")

// View is an immutable snapshot of the filtered bookmark list.
type View struct {
	Entries []reconcile.Entry
	Total   int
	Query   string
	Summary string
	// Live is false once the change feed has ended; the view then only
	// reflects this session's own mutations.
	Live bool
}

type command struct {
	apply func(st *loopState)
	done  chan struct{}
}

// loopState is owned by the event loop goroutine.
type loopState struct {
	replica *reconcile.Replica
	query   string
	live    bool
}

func (st *loopState) view() View {
	entries := st.replica.Entries()
	filtered := reconcile.Filter(entries, st.query)
	return View{
		Entries: filtered,
		Total:   len(entries),
		Query:   st.query,
		Summary: reconcile.Summary(len(entries), len(filtered), st.query),
		Live:    st.live,
	}
}

// Session merges direct API responses and change feed events into one
// replica. All merging happens on a single goroutine.
type Session struct {
	api     API
	cmds    chan command
	updates chan View
	latest  atomic.Pointer[View]

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// Open subscribes to the change feed, loads the current list and starts
// the event loop. The feed is opened first so that no change made between
// the two calls is missed.
func Open(ctx context.Context, api API) (*Session, error) {
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	// ctx bounds the subscribe handshake but not the subscription itself.
	stopHandshakeBound := context.AfterFunc(ctx, cancel)
	events, err := api.Subscribe(loopCtx)
	bounded := stopHandshakeBound()
	if err != nil {
		cancel()
		if !bounded && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	if !bounded {
		cancel()
		for range events {
		}
		return nil, ctx.Err()
	}

	initial, err := api.ListBookmarks(ctx)
	if err != nil {
		cancel()
		for range events {
		}
		return nil, err
	}

	s := &Session{
		api:     api,
		cmds:    make(chan command),
		updates: make(chan View, 1),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	st := &loopState{replica: reconcile.NewReplica(initial), live: true}
	s.publish(st)

	go s.loop(loopCtx, st, events)
	return s, nil
}

func (s *Session) loop(ctx context.Context, st *loopState, events <-chan models.ChangeEvent) {
	defer close(s.done)
	defer close(s.updates)

	for {
		select {
		case <-ctx.Done():
			// The feed closes its channel once ctx is done.
			if events != nil {
				for range events {
				}
			}
			return
		case ev, ok := <-events:
			if !ok {
				log.Warn().Msg("Change feed ended, view no longer live")
				events = nil
				st.live = false
				s.publish(st)
				continue
			}
			if st.replica.Apply(ev) {
				s.publish(st)
			}
		case cmd := <-s.cmds:
			cmd.apply(st)
			s.publish(st)
			close(cmd.done)
		}
	}
}

// publish stores the view and offers it on Updates, replacing any view
// the consumer has not read yet.
func (s *Session) publish(st *loopState) {
	v := st.view()
	s.latest.Store(&v)
	select {
	case <-s.updates:
	default:
	}
	s.updates <- v
}

func (s *Session) exec(ctx context.Context, apply func(st *loopState)) error {
	cmd := command{apply: apply, done: make(chan struct{})}
	select {
	case s.cmds <- cmd:
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	<-cmd.done
	return nil
}

// Add creates a bookmark and merges the response without waiting for the
// change feed to echo it.
func (s *Session) Add(ctx context.Context, input models.AddBookmarkRequestBody) (*models.Bookmark, error) {
	bm, err := s.api.CreateBookmark(ctx, input)
	if err != nil {
		return nil, err
	}
	created := *bm
	if err := s.exec(ctx, func(st *loopState) { st.replica.ApplyInsert(created) }); err != nil {
		return bm, err
	}
	return bm, nil
}

// Remove hides the bookmark while the delete is in flight. On failure the
// bookmark is restored and the error returned.
func (s *Session) Remove(ctx context.Context, id string) error {
	oid, parseErr := primitive.ObjectIDFromHex(id)

	var marked bool
	if parseErr == nil {
		if err := s.exec(ctx, func(st *loopState) { marked = st.replica.MarkPending(oid) }); err != nil {
			return err
		}
	}

	if err := s.api.DeleteBookmark(ctx, id); err != nil {
		if marked {
			// Roll back even if ctx is already done.
			_ = s.exec(context.WithoutCancel(ctx), func(st *loopState) { st.replica.ClearPending(oid) })
		}
		return err
	}

	if parseErr != nil {
		return nil
	}
	return s.exec(context.WithoutCancel(ctx), func(st *loopState) { st.replica.ApplyDelete(oid) })
}

func (s *Session) SetQuery(query string) error {
	return s.exec(context.Background(), func(st *loopState) { st.query = query })
}

// View returns the most recent snapshot.
func (s *Session) View() View {
	return *s.latest.Load()
}

// Updates delivers the latest view after every change. Views a slow reader
// misses are coalesced. The channel is closed by Close.
func (s *Session) Updates() <-chan View {
	return s.updates
}

// Close releases the change feed subscription and waits for the event
// loop to exit.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		<-s.done
	})
}
