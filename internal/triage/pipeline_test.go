package triage_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/inboxforge/email-triage/internal/triage"
)

// scriptedGateway returns one canned reply per call, in order, and records
// its calls into a shared event log.
type scriptedGateway struct {
	replies []gatewayReply
	calls   int
	events  *eventLog
}

type gatewayReply struct {
	text string
	err  error
}

func (g *scriptedGateway) Generate(_ context.Context, parts []triage.Part) (string, error) {
	g.calls++
	g.events.add(fmt.Sprintf("gateway#%d", g.calls))
	require.NotEmpty(g.events.t, parts)
	reply := g.replies[g.calls-1]
	return reply.text, reply.err
}

// memStore records every result update in call order.
type memStore struct {
	updates []update
	failIDs map[string]bool
	events  *eventLog
}

type update struct {
	id  string
	res triage.Result
}

func (s *memStore) UpdateResult(_ context.Context, id string, res triage.Result) error {
	s.events.add("store:" + id)
	s.updates = append(s.updates, update{id: id, res: res})
	if s.failIDs[id] {
		return errors.New("disk full")
	}
	return nil
}

func (s *memStore) byID() map[string]triage.Result {
	out := make(map[string]triage.Result, len(s.updates))
	for _, u := range s.updates {
		out[u.id] = u.res
	}
	return out
}

type eventLog struct {
	t  *testing.T
	mu sync.Mutex
	es []string
}

func (l *eventLog) add(e string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.es = append(l.es, e)
}

func newHarness(t *testing.T, replies ...gatewayReply) (*triage.Pipeline, *scriptedGateway, *memStore, *eventLog) {
	events := &eventLog{t: t}
	gw := &scriptedGateway{replies: replies, events: events}
	st := &memStore{events: events, failIDs: map[string]bool{}}
	return triage.NewPipeline(gw, st, nil, zap.NewNop()), gw, st, events
}

func TestRun_ConcreteScenario(t *testing.T) {
	t.Parallel()

	// Batch 1 succeeds for A and B; batch 2's gateway call fails.
	pipe, gw, st, events := newHarness(t,
		gatewayReply{text: "```json\n" + `{
			"A": {"category":"Work","action_items":["send report"],"generated_draft":"Hi","summary":"a"},
			"B": {"category":"Personal","action_items":[],"generated_draft":"Hey","summary":"b"}
		}` + "\n```"},
		gatewayReply{err: errors.New("service unavailable")},
	)

	items := []triage.WorkItem{{ID: "A"}, {ID: "B"}, {ID: "C"}}
	var progress []float64
	err := pipe.Run(context.Background(), items, testPrompts(), 2, func(f float64) {
		progress = append(progress, f)
	})
	require.NoError(t, err)

	require.Equal(t, 2, gw.calls)
	byID := st.byID()
	require.Len(t, st.updates, 3)

	assert.Equal(t, triage.Result{
		Category:    "Work",
		ActionItems: []string{"send report"},
		Draft:       "Hi",
		Summary:     "a",
	}, byID["A"])
	assert.Equal(t, "Personal", byID["B"].Category)
	assert.Equal(t, triage.DefaultResult(), byID["C"])

	// Progress is monotone and finishes at 1.0 despite the failed batch.
	require.NotEmpty(t, progress)
	for i := 1; i < len(progress); i++ {
		assert.GreaterOrEqual(t, progress[i], progress[i-1])
	}
	assert.InDelta(t, 1.0, progress[len(progress)-1], 1e-9)

	// Batch 1's store updates are issued before batch 2's gateway call.
	assert.Equal(t, []string{"gateway#1", "store:A", "store:B", "gateway#2", "store:C"}, events.es)
}

func TestRun_EveryItemUpdatedExactlyOnce(t *testing.T) {
	t.Parallel()

	// The model omits id-3 and invents an id that was never requested.
	pipe, _, st, _ := newHarness(t,
		gatewayReply{text: `{
			"id-0": {"category":"Work","action_items":[],"generated_draft":"","summary":"s"},
			"id-1": {"category":"Work","action_items":[],"generated_draft":"","summary":"s"},
			"id-2": {"category":"Work","action_items":[],"generated_draft":"","summary":"s"},
			"intruder": {"category":"Spam","action_items":[],"generated_draft":"","summary":""}
		}`},
		gatewayReply{text: `{}`},
	)

	items := makeItems(4)
	require.NoError(t, pipe.Run(context.Background(), items, testPrompts(), 3, nil))

	require.Len(t, st.updates, 4)
	seen := map[string]int{}
	for _, u := range st.updates {
		seen[u.id]++
	}
	for _, item := range items {
		assert.Equal(t, 1, seen[item.ID], "item %s", item.ID)
	}
	assert.NotContains(t, seen, "intruder")
	assert.Equal(t, triage.DefaultResult(), st.byID()["id-3"])
}

func TestRun_MalformedBatchIsIsolated(t *testing.T) {
	t.Parallel()

	ok := func(id string) string {
		return fmt.Sprintf(`{"%s": {"category":"Work","action_items":[],"generated_draft":"","summary":"fine"}}`, id)
	}
	pipe, gw, st, _ := newHarness(t,
		gatewayReply{text: ok("id-0")},
		gatewayReply{text: "definitely not json"},
		gatewayReply{text: ok("id-2")},
	)

	var last float64
	err := pipe.Run(context.Background(), makeItems(3), testPrompts(), 1, func(f float64) { last = f })
	require.NoError(t, err)

	require.Equal(t, 3, gw.calls)
	byID := st.byID()
	assert.Equal(t, "fine", byID["id-0"].Summary)
	assert.Equal(t, triage.DefaultResult(), byID["id-1"])
	assert.Equal(t, "fine", byID["id-2"].Summary)
	assert.InDelta(t, 1.0, last, 1e-9)
}

func TestRun_NormalizesPartialFields(t *testing.T) {
	t.Parallel()

	pipe, _, st, _ := newHarness(t,
		gatewayReply{text: `{"id-0": {"summary":"only a summary"}}`},
	)

	require.NoError(t, pipe.Run(context.Background(), makeItems(1), testPrompts(), 10, nil))

	res := st.byID()["id-0"]
	assert.Equal(t, triage.DefaultCategory, res.Category)
	assert.Equal(t, []string{}, res.ActionItems)
	assert.Equal(t, "only a summary", res.Summary)
}

func TestRun_StoreErrorsAreAbsorbed(t *testing.T) {
	t.Parallel()

	pipe, _, st, _ := newHarness(t,
		gatewayReply{text: `{}`},
		gatewayReply{text: `{}`},
	)
	st.failIDs["id-0"] = true

	err := pipe.Run(context.Background(), makeItems(3), testPrompts(), 2, nil)
	require.NoError(t, err)
	require.Len(t, st.updates, 3)
}

func TestRun_InvalidBatchSize(t *testing.T) {
	t.Parallel()

	pipe, gw, _, _ := newHarness(t)
	err := pipe.Run(context.Background(), makeItems(2), testPrompts(), 0, nil)
	require.Error(t, err)
	assert.Zero(t, gw.calls)
}

func TestRun_CancelStopsBeforeNextBatch(t *testing.T) {
	t.Parallel()

	pipe, gw, st, _ := newHarness(t,
		gatewayReply{text: `{}`},
		gatewayReply{text: `{}`},
	)

	ctx, cancel := context.WithCancel(context.Background())
	err := pipe.Run(ctx, makeItems(4), testPrompts(), 2, func(float64) {
		// Cancel mid-run; the current batch still completes.
		cancel()
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, gw.calls)
	assert.Len(t, st.updates, 2)
}

func TestRun_EmptyInputReportsCompletion(t *testing.T) {
	t.Parallel()

	pipe, gw, st, _ := newHarness(t)
	var last float64
	require.NoError(t, pipe.Run(context.Background(), nil, testPrompts(), 5, func(f float64) { last = f }))
	assert.Zero(t, gw.calls)
	assert.Empty(t, st.updates)
	assert.InDelta(t, 1.0, last, 1e-9)
}
