package interceptor

import (
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestRegisterAssignsSequentialIDs(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, 0, r.Len())

	before := BeforeFunc(func(any, string, string, []any) {})
	after := AfterFunc(func(any, string, string, []any, any) {})

	assert.Equal(t, 0, r.Register(before))
	assert.Equal(t, 1, r.Register(after))
	assert.Equal(t, 2, r.Register(NewAround(before, after)))
	assert.Equal(t, 3, r.Register(struct{}{}))
	assert.Equal(t, 4, r.Len())

	tests := []struct {
		id   int
		want Capability
	}{
		{0, Before},
		{1, After},
		{2, Around},
		{3, None},
	}
	for _, tt := range tests {
		e, err := r.Lookup(tt.id)
		require.NoError(t, err)
		assert.Equal(t, tt.id, e.ID)
		assert.Equal(t, tt.want, e.Capability, "id %d", tt.id)
	}
}

func TestLookupOutOfRange(t *testing.T) {
	r := NewRegistry()
	r.Register(BeforeFunc(func(any, string, string, []any) {}))

	for _, id := range []int{-1, 1, 100} {
		_, err := r.Lookup(id)
		assert.ErrorIs(t, err, ErrUnknownInterceptorID, "id %d", id)
	}
}

func TestConcurrentRegisterAndLookup(t *testing.T) {
	defer goleak.VerifyNone(t)

	const workers, perWorker = 8, 200
	r := NewRegistry()

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids []int
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]int, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				id := r.Register(BeforeFunc(func(any, string, string, []any) {}))
				local = append(local, id)
				e, err := r.Lookup(id)
				if assert.NoError(t, err) {
					assert.Equal(t, id, e.ID)
					assert.NotNil(t, e.Interceptor)
				}
			}
			// Ids a single caller observes must grow.
			assert.True(t, sort.IntsAreSorted(local))
			mu.Lock()
			ids = append(ids, local...)
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, ids, workers*perWorker)
	sort.Ints(ids)
	for i, id := range ids {
		require.Equal(t, i, id, "ids must be unique and dense")
	}
	assert.Equal(t, workers*perWorker, r.Len())
}

type recorder struct {
	calls []string
	args  [][]any
	res   []any
}

func (rec *recorder) Before(target any, className, methodName string, args []any) {
	rec.calls = append(rec.calls, "before "+className+"."+methodName)
	rec.args = append(rec.args, args)
}

func (rec *recorder) After(target any, className, methodName string, args []any, result any) {
	rec.calls = append(rec.calls, "after "+className+"."+methodName)
	rec.res = append(rec.res, result)
}

func TestBridgeDispatch(t *testing.T) {
	r := NewRegistry(WithLogger(testr.New(t)))
	rec := &recorder{}
	id := r.Register(rec)

	require.NoError(t, r.Before(id, nil, "Order", "total", []any{int32(5)}))
	require.NoError(t, r.After(id, nil, "Order", "total", []any{int32(5)}, int32(50)))

	assert.Equal(t, []string{"before Order.total", "after Order.total"}, rec.calls)
	assert.Equal(t, [][]any{{int32(5)}}, rec.args)
	assert.Equal(t, []any{int32(50)}, rec.res)

	assert.ErrorIs(t, r.Before(id+1, nil, "Order", "total", nil), ErrUnknownInterceptorID)
}

func TestBridgeRejectsMissingCapability(t *testing.T) {
	r := NewRegistry()
	id := r.Register(BeforeFunc(func(any, string, string, []any) {}))

	err := r.After(id, nil, "C", "m", nil, nil)
	assert.ErrorIs(t, err, ErrCapabilityMismatch)
}

func TestBridgeRecoversPanics(t *testing.T) {
	r := NewRegistry(WithLogger(testr.New(t)))
	id := r.Register(NewAround(
		func(any, string, string, []any) { panic("boom") },
		func(any, string, string, []any, any) { panic(errors.New("bang")) },
	))

	err := r.Before(id, nil, "C", "m", nil)
	assert.ErrorIs(t, err, ErrHookPanic)
	assert.Contains(t, err.Error(), "boom")

	err = r.After(id, nil, "C", "m", nil, nil)
	assert.ErrorIs(t, err, ErrHookPanic)
	assert.Contains(t, err.Error(), "bang")
}
