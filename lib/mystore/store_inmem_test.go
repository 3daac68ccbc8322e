package mystore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

type Order struct {
	UID    string
	Name   string
	Amount int
}

var (
	order = Order{UID: "123", Name: "Gás de cozinha 13 kg (P13)", Amount: 7120}
)

func TestStore(t *testing.T) {
	c := context.TODO()
	os, cleanup, err := NewInMemoryStore[Order](c)
	assert.NoError(t, err)
	defer cleanup()

	t.Run("Get not found", func(t *testing.T) {
		_, found, err := os.Get(c, order.UID)
		assert.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("Put", func(t *testing.T) {
		err = os.Put(c, order.UID, order)
		assert.NoError(t, err)
	})

	t.Run("Get found", func(t *testing.T) {
		o, found, err := os.Get(c, order.UID)
		assert.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, Order{UID: "123", Name: "Gás de cozinha 13 kg (P13)", Amount: 7120}, o)
	})

	t.Run("List", func(t *testing.T) {
		all, err := os.List(c)
		assert.NoError(t, err)
		assert.Equal(t, all, []Order{order})
	})

	t.Run("Delete", func(t *testing.T) {
		err := os.Delete(c, order.UID)
		assert.NoError(t, err)

		_, found, err := os.Get(c, order.UID)
		assert.NoError(t, err)
		assert.False(t, found)
	})
}
