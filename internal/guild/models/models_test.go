package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLockdown_ActiveAt(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	var none *Lockdown
	assert.False(t, none.ActiveAt(now))

	active := &Lockdown{Until: now.Add(time.Millisecond)}
	assert.True(t, active.ActiveAt(now))

	expired := &Lockdown{Until: now.Add(-time.Millisecond)}
	assert.False(t, expired.ActiveAt(now))

	edge := &Lockdown{Until: now}
	assert.False(t, edge.ActiveAt(now))
}

func TestState_Linked(t *testing.T) {
	assert.False(t, State{}.Linked())
	assert.Equal(t, "", State{}.CommunityID())

	s := State{Mapping: &ServerMapping{CommunityID: "c1"}}
	assert.True(t, s.Linked())
	assert.Equal(t, "c1", s.CommunityID())
}
