package model_test

import (
	"testing"

	"app/internal/domain/model"

	"github.com/stretchr/testify/assert"
)

func TestCartOwner_Validate_User(t *testing.T) {
	owner := model.UserOwner(42)

	assert.NoError(t, owner.Validate())
	assert.False(t, owner.IsGuest())
}

func TestCartOwner_Validate_Guest(t *testing.T) {
	owner := model.GuestOwner("session-abc")

	assert.NoError(t, owner.Validate())
	assert.True(t, owner.IsGuest())
}

func TestCartOwner_Validate_Empty(t *testing.T) {
	// どちらも無いのは不正
	var owner model.CartOwner

	assert.ErrorIs(t, owner.Validate(), model.ErrInvalidOwner)
}

func TestCartOwner_Validate_Both(t *testing.T) {
	// 両方入っているのも不正
	userID := int64(1)
	token := "session-abc"
	owner := model.CartOwner{UserID: &userID, SessionToken: &token}

	assert.ErrorIs(t, owner.Validate(), model.ErrInvalidOwner)
}

func TestCartOwner_Validate_ZeroUserID(t *testing.T) {
	zero := int64(0)
	owner := model.CartOwner{UserID: &zero}

	assert.ErrorIs(t, owner.Validate(), model.ErrInvalidOwner)
}

func TestCartOwner_Validate_EmptySessionToken(t *testing.T) {
	empty := ""
	owner := model.CartOwner{SessionToken: &empty}

	assert.ErrorIs(t, owner.Validate(), model.ErrInvalidOwner)
}
