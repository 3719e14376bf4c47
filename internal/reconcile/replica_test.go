package reconcile

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"folios/internal/models"
)

func bookmark(title string) models.Bookmark {
	return models.Bookmark{
		ID:        primitive.NewObjectID(),
		URL:       "https://example.com/" + title,
		Title:     title,
		CreatedAt: time.Now().UTC(),
	}
}

func ids(entries []Entry) []primitive.ObjectID {
	out := make([]primitive.ObjectID, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Bookmark.ID)
	}
	return out
}

func TestNewReplica_DedupesAndKeepsOrder(t *testing.T) {
	a, b := bookmark("a"), bookmark("b")
	r := NewReplica([]models.Bookmark{b, a, b})

	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []primitive.ObjectID{b.ID, a.ID}, ids(r.Entries()))
}

func TestApplyInsert_IsIdempotentAndPrepends(t *testing.T) {
	a, b := bookmark("a"), bookmark("b")
	r := NewReplica([]models.Bookmark{a})

	assert.True(t, r.ApplyInsert(b))
	assert.False(t, r.ApplyInsert(b), "second insert of same id is a no-op")
	assert.False(t, r.ApplyInsert(a))

	assert.Equal(t, []primitive.ObjectID{b.ID, a.ID}, ids(r.Entries()))
}

func TestApplyDelete_RemovesIfPresent(t *testing.T) {
	a, b := bookmark("a"), bookmark("b")
	r := NewReplica([]models.Bookmark{b, a})

	assert.True(t, r.ApplyDelete(a.ID))
	assert.False(t, r.ApplyDelete(a.ID))
	assert.False(t, r.ApplyDelete(primitive.NewObjectID()))
	assert.Equal(t, []primitive.ObjectID{b.ID}, ids(r.Entries()))
}

func TestApply_DirectResponseAndFeedConverge(t *testing.T) {
	b := bookmark("b")
	insert := models.ChangeEvent{Kind: models.ChangeInsert, Bookmark: b}

	feedFirst := NewReplica(nil)
	feedFirst.Apply(insert)
	feedFirst.ApplyInsert(b)

	responseFirst := NewReplica(nil)
	responseFirst.ApplyInsert(b)
	responseFirst.Apply(insert)

	assert.Equal(t, feedFirst.Entries(), responseFirst.Entries())
	assert.Equal(t, 1, feedFirst.Len())
}

func TestApply_UnknownKindIgnored(t *testing.T) {
	r := NewReplica(nil)
	assert.False(t, r.Apply(models.ChangeEvent{Kind: "update", Bookmark: bookmark("x")}))
	assert.Equal(t, 0, r.Len())
}

func TestApply_SetOfIdsIndependentOfDeliveryOrder(t *testing.T) {
	var events []models.ChangeEvent
	for i := 0; i < 20; i++ {
		b := bookmark(string(rune('a' + i)))
		events = append(events, models.ChangeEvent{Kind: models.ChangeInsert, Bookmark: b})
		if i%3 == 0 {
			events = append(events, models.ChangeEvent{Kind: models.ChangeDelete, Bookmark: b})
		}
	}

	want := NewReplica(nil)
	for _, ev := range events {
		want.Apply(ev)
	}
	wantSet := map[primitive.ObjectID]bool{}
	for _, id := range ids(want.Entries()) {
		wantSet[id] = true
	}

	rng := rand.New(rand.NewSource(1))
	for round := 0; round < 10; round++ {
		shuffled := append([]models.ChangeEvent(nil), events...)
		// Deletes may only be observed after the matching insert has been
		// produced, so shuffle inserts among themselves and keep deletes last.
		inserts := shuffled[:0:0]
		var deletes []models.ChangeEvent
		for _, ev := range shuffled {
			if ev.Kind == models.ChangeInsert {
				inserts = append(inserts, ev)
			} else {
				deletes = append(deletes, ev)
			}
		}
		rng.Shuffle(len(inserts), func(i, j int) { inserts[i], inserts[j] = inserts[j], inserts[i] })
		rng.Shuffle(len(deletes), func(i, j int) { deletes[i], deletes[j] = deletes[j], deletes[i] })

		r := NewReplica(nil)
		for _, ev := range append(append(inserts, inserts...), deletes...) {
			r.Apply(ev)
		}

		got := map[primitive.ObjectID]bool{}
		for _, id := range ids(r.Entries()) {
			got[id] = true
		}
		require.Equal(t, wantSet, got)
	}
}

func TestStateMachine(t *testing.T) {
	b := bookmark("b")
	r := NewReplica(nil)

	assert.Equal(t, Absent, r.State(b.ID))
	assert.False(t, r.MarkPending(b.ID), "absent ids cannot become pending")

	r.ApplyInsert(b)
	assert.Equal(t, Visible, r.State(b.ID))
	assert.False(t, r.ClearPending(b.ID), "only pending ids can roll back")

	require.True(t, r.MarkPending(b.ID))
	assert.Equal(t, PendingDeletion, r.State(b.ID))
	assert.False(t, r.MarkPending(b.ID))
	assert.True(t, r.Entries()[0].Pending)

	assert.False(t, r.ApplyInsert(b), "an insert does not resurrect a pending entry")
	assert.Equal(t, PendingDeletion, r.State(b.ID))

	require.True(t, r.ClearPending(b.ID))
	assert.Equal(t, Visible, r.State(b.ID))

	require.True(t, r.MarkPending(b.ID))
	require.True(t, r.ApplyDelete(b.ID))
	assert.Equal(t, Absent, r.State(b.ID))
	assert.False(t, r.ClearPending(b.ID))
}

func TestEntries_ReturnsCopy(t *testing.T) {
	b := bookmark("b")
	r := NewReplica([]models.Bookmark{b})

	entries := r.Entries()
	entries[0].Bookmark.Title = "changed"
	entries[0].Pending = true

	assert.Equal(t, "b", r.Entries()[0].Bookmark.Title)
	assert.Equal(t, Visible, r.State(b.ID))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "absent", Absent.String())
	assert.Equal(t, "visible", Visible.String())
	assert.Equal(t, "pending-deletion", PendingDeletion.String())
}
