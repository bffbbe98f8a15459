package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestStateMachine(t *testing.T) {
	cases := []struct {
		from, to ActaState
		allowed  bool
	}{
		{StateDraft, StatePendingApproval, true},
		{StatePendingApproval, StateApproved, true},
		{StatePendingApproval, StateDraft, true},
		{StateApproved, StateSent, true},

		{StateDraft, StateApproved, false},
		{StateDraft, StateSent, false},
		{StatePendingApproval, StateSent, false},
		{StateApproved, StateDraft, false},
		{StateApproved, StatePendingApproval, false},
		{StateSent, StateDraft, false},
		{StateSent, StateApproved, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.allowed, c.from.CanTransitionTo(c.to), "%s -> %s", c.from, c.to)
	}
}

func TestEditable(t *testing.T) {
	assert.True(t, (&Acta{State: StateDraft}).Editable())
	assert.False(t, (&Acta{State: StatePendingApproval}).Editable())
	assert.False(t, (&Acta{State: StateApproved}).Editable())
	assert.False(t, (&Acta{State: StateSent}).Editable())
}

func TestValidateAssignee(t *testing.T) {
	pos := 1
	member := uuid.New()

	assert.NoError(t, (&Commitment{}).ValidateAssignee())
	assert.NoError(t, (&Commitment{AssigneeParticipantPos: &pos}).ValidateAssignee())
	assert.NoError(t, (&Commitment{AssigneeClientMemberID: &member}).ValidateAssignee())
	assert.ErrorIs(t,
		(&Commitment{AssigneeParticipantPos: &pos, AssigneeClientMemberID: &member}).ValidateAssignee(),
		ErrAmbiguousAssignee)
}

func TestApprovalPending(t *testing.T) {
	now := time.Now()
	assert.True(t, (&ParticipantApproval{}).Pending())
	assert.False(t, (&ParticipantApproval{ApprovedAt: &now}).Pending())
	assert.False(t, (&ParticipantApproval{Rejected: true}).Pending())
}
