package sf

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGroup_Dedup(t *testing.T) {
	var (
		g     Group[string]
		calls atomic.Int32
		start = make(chan struct{})
		wg    sync.WaitGroup
	)

	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			v, err := g.Do(t.Context(), "k", func(context.Context) (string, error) {
				calls.Add(1)
				time.Sleep(50 * time.Millisecond)
				return "v", nil
			})
			require.NoError(t, err)
			require.Equal(t, "v", v)
		}()
	}
	close(start)
	wg.Wait()

	require.Less(t, calls.Load(), int32(10))
}

func TestGroup_Error(t *testing.T) {
	var g Group[int]
	boom := errors.New("boom")
	v, err := g.Do(t.Context(), "k", func(context.Context) (int, error) { return 7, boom })
	require.ErrorIs(t, err, boom)
	require.Zero(t, v)
}

func TestGroup_ContextEnds(t *testing.T) {
	var g Group[int]
	release := make(chan struct{})
	defer close(release)

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	_, err := g.Do(ctx, "k", func(context.Context) (int, error) {
		<-release
		return 1, nil
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
