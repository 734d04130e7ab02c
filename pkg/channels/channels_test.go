package channels_test

import (
	"testing"

	"github.com/amaki/voicereply/pkg/channels"
	"github.com/stretchr/testify/assert"
)

func TestSendNonBlock(t *testing.T) {
	t.Run("buffered channel with capacity", func(t *testing.T) {
		ch := make(chan int, 2)
		err := channels.SendNonBlock(ch, 42)
		assert.NoError(t, err)
		assert.Equal(t, 42, <-ch)
	})

	t.Run("full buffered channel", func(t *testing.T) {
		ch := make(chan int, 1)
		ch <- 1
		err := channels.SendNonBlock(ch, 42)
		assert.ErrorIs(t, err, channels.ErrChannelFull)
	})

	t.Run("unbuffered with no receiver", func(t *testing.T) {
		ch := make(chan int)
		err := channels.SendNonBlock(ch, 42)
		assert.ErrorIs(t, err, channels.ErrChannelFull)
	})

	t.Run("closed channel", func(t *testing.T) {
		ch := make(chan int, 2)
		ch <- 1
		close(ch)
		err := channels.SendNonBlock(ch, 42)
		assert.ErrorIs(t, err, channels.ErrChannelClosed)
		assert.Equal(t, 1, <-ch, "buffered data survives")
	})
}
