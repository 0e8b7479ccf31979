package conversation

import (
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_IDsAreSequential(t *testing.T) {
	e := NewEngine(clockwork.NewFakeClock(), 0)
	for want := int64(0); want < 3; want++ {
		assert.Equal(t, want, e.Create(1, "alice"))
	}
	c, ok := e.Get(1)
	require.True(t, ok)
	assert.Equal(t, StageFirstIncome, c.Stage)
	assert.Equal(t, "alice", c.Username)
}

func TestEngine_ConcurrentCreate(t *testing.T) {
	e := NewEngine(nil, 0)
	const n = 100
	ids := make([]int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = e.Create(int64(i), "u")
		}(i)
	}
	wg.Wait()

	sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })
	for i, id := range ids {
		assert.Equal(t, int64(i), id)
	}
	assert.Equal(t, n, e.Len())
}

func TestEngine_GetUnknown(t *testing.T) {
	e := NewEngine(nil, 0)
	e.Create(1, "alice")
	_, ok := e.Get(-1)
	assert.False(t, ok)
	_, ok = e.Get(5)
	assert.False(t, ok)
}

func TestEngine_RespondFullDialogue(t *testing.T) {
	e := NewEngine(clockwork.NewFakeClock(), 0)
	id := e.Create(7, "alice")

	steps := []struct {
		msg      string
		want     string
		finished bool
	}{
		{"3000", "How much do you usually spend every month?", false},
		{"abc", msgNumberFormat, false},
		{"1000", "How much debt are you in?", false},
		{"500", "What percent do you want to put into savings? (I recommend 10-20%)", false},
		{"150", msgOutOfRange, false},
		{"10", "", true},
	}
	for _, s := range steps {
		reply, err := e.Respond(id, 7, s.msg)
		require.NoError(t, err)
		assert.Equal(t, s.finished, reply.Finished, s.msg)
		if s.finished {
			assert.Contains(t, reply.Text, "Achievable: yes")
			continue
		}
		assert.Equal(t, s.want, reply.Text)
	}

	c, _ := e.Get(id)
	assert.Equal(t, StageSavingsPercent, c.Stage)
	assert.Equal(t, int64(3000), *c.Income)
	require.NotNil(t, c.Savings)
	assert.Equal(t, int64(10), *c.Savings)
}

func TestEngine_OutOfRangePercentLeavesSavingsUnset(t *testing.T) {
	e := NewEngine(clockwork.NewFakeClock(), 0)
	id := e.Create(7, "alice")
	for _, msg := range []string{"3000", "1000", "500"} {
		_, err := e.Respond(id, 7, msg)
		require.NoError(t, err)
	}

	reply, err := e.Respond(id, 7, "150")
	require.NoError(t, err)
	assert.Equal(t, msgOutOfRange, reply.Text)
	assert.False(t, reply.Finished)

	c, _ := e.Get(id)
	assert.Equal(t, StageSavingsPercent, c.Stage)
	assert.Nil(t, c.Savings)
}

func TestEngine_RespondOwnership(t *testing.T) {
	e := NewEngine(nil, 0)
	id := e.Create(1, "alice")

	_, err := e.Respond(id, 2, "3000")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = e.Respond(id+1, 1, "3000")
	assert.ErrorIs(t, err, ErrNotFound)

	c, _ := e.Get(id)
	assert.Nil(t, c.Income, "foreign reply must not touch the conversation")
}

func TestEngine_ValidationErrorKeepsState(t *testing.T) {
	e := NewEngine(nil, 0)
	id := e.Create(1, "alice")
	before, _ := e.Get(id)

	reply, err := e.Respond(id, 1, "$3000")
	require.NoError(t, err)
	assert.Equal(t, msgIncomeFormat, reply.Text)

	after, _ := e.Get(id)
	assert.Equal(t, before, after)
}

func TestEngine_Evict(t *testing.T) {
	clock := clockwork.NewFakeClock()
	e := NewEngine(clock, time.Hour)
	stale := e.Create(1, "alice")
	clock.Advance(30 * time.Minute)
	fresh := e.Create(2, "bob")
	clock.Advance(45 * time.Minute)

	assert.Equal(t, int64(1), e.Evict())
	_, ok := e.Get(stale)
	assert.False(t, ok)
	_, ok = e.Get(fresh)
	assert.True(t, ok)

	// activity keeps a conversation alive
	clock.Advance(10 * time.Minute)
	_, err := e.Respond(fresh, 2, "100")
	require.NoError(t, err)
	clock.Advance(50 * time.Minute)
	assert.Zero(t, e.Evict())

	assert.Equal(t, int64(2), e.Create(3, "carol"), "ids are never reused")
}

func TestEngine_EvictDisabled(t *testing.T) {
	clock := clockwork.NewFakeClock()
	e := NewEngine(clock, 0)
	e.Create(1, "alice")
	clock.Advance(1000 * time.Hour)
	assert.Zero(t, e.Evict())
	assert.Equal(t, 1, e.Len())
}
