package dynamic_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/jhump/dynproto/dynamic"
	"github.com/jhump/dynproto/internal/testprotos"
)

// Messages are not safe for concurrent mutation, but independent messages
// of types from one pool can be used from many goroutines at once.
func TestConcurrentUse(t *testing.T) {
	md := testprotos.Message(t, "test.v1.Composite")
	shared := composite(t)
	data, err := shared.Marshal()
	require.NoError(t, err)

	var group errgroup.Group
	group.SetLimit(8)
	for i := range 32 {
		group.Go(func() error {
			m, err := dynamic.Unmarshal(md, data)
			if err != nil {
				return err
			}
			if !m.Equal(shared) {
				return fmt.Errorf("worker %d: decoded message does not match", i)
			}
			if err := m.SetFieldByName("number", dynamic.ValueOfInt64(int64(i))); err != nil {
				return err
			}
			text, err := m.MarshalText()
			if err != nil {
				return err
			}
			back, err := dynamic.UnmarshalText(md, text)
			if err != nil {
				return err
			}
			if !back.Equal(m) {
				return fmt.Errorf("worker %d: text round trip does not match", i)
			}
			_, err = m.MarshalJSON()
			return err
		})
	}
	require.NoError(t, group.Wait())

	// the shared message was only read
	assert.True(t, shared.Equal(composite(t)))
}
