package approval

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecideRequest_Validate(t *testing.T) {
	empty := ""
	reason := "Dates overlap with release week"

	tests := []struct {
		name    string
		req     DecideRequest
		field   string
		wantErr bool
	}{
		{"approve without comment", DecideRequest{RequestID: "r1", Outcome: "approved"}, "", false},
		{"reject with comment", DecideRequest{RequestID: "r1", Outcome: "rejected", Comment: &reason}, "", false},
		{"reject with empty comment", DecideRequest{RequestID: "r1", Outcome: "rejected", Comment: &empty}, "comment", true},
		{"reject without comment", DecideRequest{RequestID: "r1", Outcome: "rejected"}, "comment", true},
		{"unknown outcome", DecideRequest{RequestID: "r1", Outcome: "pending"}, "outcome", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.Contains(t, fieldsOf(t, err), tt.field)
		})
	}
}

func TestCreateRequestRequest_Validate(t *testing.T) {
	ok := CreateRequestRequest{Type: "leave", Payload: json.RawMessage(`{}`)}
	assert.NoError(t, ok.Validate())

	bad := CreateRequestRequest{Type: "overtime"}
	fields := fieldsOf(t, bad.Validate())
	assert.Contains(t, fields, "type")
	assert.Contains(t, fields, "payload")
}

func TestListRequestsFilter_Defaults(t *testing.T) {
	f := ListRequestsFilter{}
	assert.NoError(t, f.Validate())
	assert.Equal(t, ScopeMine, f.Scope)
	assert.Equal(t, DefaultListLimit, f.Limit)

	bad := ListRequestsFilter{Scope: "team", Limit: 500}
	fields := fieldsOf(t, bad.Validate())
	assert.Contains(t, fields, "scope")
	assert.Contains(t, fields, "limit")
}

func TestState_CanTransitionTo(t *testing.T) {
	assert.True(t, StateDraft.CanTransitionTo(StatePending))
	assert.True(t, StatePending.CanTransitionTo(StateApproved))
	assert.True(t, StatePending.CanTransitionTo(StateRejected))
	assert.False(t, StateDraft.CanTransitionTo(StateApproved))
	assert.False(t, StateApproved.CanTransitionTo(StateRejected))
	assert.False(t, StateRejected.CanTransitionTo(StatePending))
	assert.True(t, StateApproved.IsTerminal())
	assert.False(t, StatePending.IsTerminal())
}
