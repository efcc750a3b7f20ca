package model_test

import (
	"testing"
	"time"

	"app/internal/domain/model"

	"github.com/stretchr/testify/assert"
)

func TestCart_AddItem_NewLine(t *testing.T) {
	cart := &model.Cart{}

	cart.AddItem(1, 2, 100)

	assert.Equal(t, 1, len(cart.Items))
	assert.Equal(t, int64(2), cart.Items[0].Quantity)
	assert.Equal(t, int64(100), cart.Items[0].UnitPriceSnapshot)
	assert.Equal(t, int64(200), cart.TotalPrice)
}

func TestCart_AddItem_SameProductAccumulates(t *testing.T) {
	// 同一商品は数量加算、スナップショットは今回の価格で上書き
	cart := &model.Cart{}

	cart.AddItem(1, 2, 100)
	cart.AddItem(1, 3, 120)

	assert.Equal(t, 1, len(cart.Items))
	assert.Equal(t, int64(5), cart.Items[0].Quantity)
	assert.Equal(t, int64(120), cart.Items[0].UnitPriceSnapshot)
	assert.Equal(t, int64(600), cart.TotalPrice)
}

func TestCart_UpdateItemQuantity_Overwrites(t *testing.T) {
	// 上書きであって加算ではない
	cart := &model.Cart{}
	cart.AddItem(1, 2, 100)

	err := cart.UpdateItemQuantity(1, 5)

	assert.NoError(t, err)
	assert.Equal(t, int64(5), cart.Items[0].Quantity)
	assert.Equal(t, int64(500), cart.TotalPrice)
}

func TestCart_UpdateItemQuantity_ZeroRemoves(t *testing.T) {
	cart := &model.Cart{}
	cart.AddItem(1, 2, 100)
	cart.AddItem(2, 1, 50)

	err := cart.UpdateItemQuantity(1, 0)

	assert.NoError(t, err)
	assert.Equal(t, 1, len(cart.Items))
	assert.Equal(t, int64(2), cart.Items[0].ProductID)
	assert.Equal(t, int64(50), cart.TotalPrice)
}

func TestCart_UpdateItemQuantity_NotFound(t *testing.T) {
	cart := &model.Cart{}
	cart.AddItem(1, 2, 100)

	err := cart.UpdateItemQuantity(99, 3)

	assert.ErrorIs(t, err, model.ErrItemNotFound)
	// カートは変更されない
	assert.Equal(t, int64(200), cart.TotalPrice)
}

func TestCart_RemoveItem_Idempotent(t *testing.T) {
	cart := &model.Cart{}
	cart.AddItem(1, 2, 100)

	cart.RemoveItem(1)
	cart.RemoveItem(1) // 2回目も何も起きない

	assert.Equal(t, 0, len(cart.Items))
	assert.Equal(t, int64(0), cart.TotalPrice)
}

func TestCart_ClearItems(t *testing.T) {
	cart := &model.Cart{}
	cart.AddItem(1, 2, 100)
	cart.AddItem(2, 1, 50)

	cart.ClearItems()
	cart.ClearItems() // 冪等

	assert.Equal(t, 0, len(cart.Items))
	assert.Equal(t, int64(0), cart.TotalPrice)
}

func TestCart_RecalcTotal(t *testing.T) {
	cart := &model.Cart{
		Items: []model.CartItem{
			{ProductID: 1, Quantity: 3, UnitPriceSnapshot: 100},
			{ProductID: 2, Quantity: 2, UnitPriceSnapshot: 250},
		},
	}

	total := cart.RecalcTotal()

	assert.Equal(t, int64(800), total)
	assert.Equal(t, int64(800), cart.TotalPrice)
}

func TestCart_IsExpired(t *testing.T) {
	now := time.Now()

	// expires_at が無ければ失効しない（会員カート）
	member := &model.Cart{}
	assert.False(t, member.IsExpired(now))

	future := now.Add(time.Hour)
	guest := &model.Cart{ExpiresAt: &future}
	assert.False(t, guest.IsExpired(now))

	// ちょうど期限の瞬間は失効扱い
	assert.True(t, guest.IsExpired(future))

	past := now.Add(-time.Minute)
	expired := &model.Cart{ExpiresAt: &past}
	assert.True(t, expired.IsExpired(now))
}

func TestCart_SetOwner_Rekey(t *testing.T) {
	token := "session-abc"
	cart := &model.Cart{OwnerSessionToken: &token}
	assert.True(t, cart.IsGuest())

	cart.SetOwner(model.UserOwner(42))

	assert.False(t, cart.IsGuest())
	assert.Nil(t, cart.OwnerSessionToken)
	assert.Equal(t, int64(42), *cart.OwnerUserID)
}
