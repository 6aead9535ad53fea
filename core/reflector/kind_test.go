package reflector

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type pageWasCreated struct {
	Title string
}

const pkg = "github.com/getdevflow/core-sub003/core/reflector"

func TestNameOf(t *testing.T) {
	require.Equal(t, pkg+".pageWasCreated", NameOf(pageWasCreated{}))
	require.Equal(t, pkg+".pageWasCreated", NameOf(&pageWasCreated{}))
	require.Equal(t, pkg+".pageWasCreated", NameFor[pageWasCreated]())
	require.Equal(t, "", NameOf(nil))
}

func TestNameOf_Concurrent(t *testing.T) {
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.Equal(t, pkg+".pageWasCreated", NameOf(pageWasCreated{}))
		}()
	}
	wg.Wait()
}

func TestMustBeNamed(t *testing.T) {
	require.NotPanics(t, MustBeNamed[pageWasCreated])
	require.Panics(t, MustBeNamed[*pageWasCreated])
	require.Panics(t, MustBeNamed[struct{ X int }])
	require.Panics(t, MustBeNamed[[]string])
}
