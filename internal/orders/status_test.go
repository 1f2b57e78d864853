package orders

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusAccepted, true},
		{StatusAccepted, StatusProcessing, true},
		{StatusProcessing, StatusPacked, true},
		{StatusPacked, StatusShipped, true},
		{StatusShipped, StatusDelivered, true},
		{StatusPending, StatusCancelled, true},
		{StatusShipped, StatusCancelled, true},
		{StatusPending, StatusDelivered, false},
		{StatusAccepted, StatusPending, false},
		{StatusPacked, StatusProcessing, false},
		{StatusDelivered, StatusCancelled, false},
		{StatusCancelled, StatusPending, false},
		{StatusCancelled, StatusCancelled, false},
		{StatusPending, StatusReturned, false},
		{StatusReturned, StatusPending, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestTerminalStatesHaveNoExits(t *testing.T) {
	for _, s := range allStatuses {
		if !s.IsTerminal() {
			continue
		}
		for _, to := range allStatuses {
			assert.False(t, CanTransition(s, to), "%s -> %s", s, to)
		}
	}
	assert.True(t, StatusDelivered.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
	assert.False(t, StatusShipped.IsTerminal())
}

func TestCanRequestCancellation(t *testing.T) {
	allowed := map[Status]bool{
		StatusPending: true, StatusAccepted: true, StatusProcessing: true, StatusPacked: true,
	}
	for _, s := range allStatuses {
		assert.Equal(t, allowed[s], CanRequestCancellation(s), s)
	}
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("  processing ")
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, s)

	s, err = ParseStatus("RETURNED")
	require.NoError(t, err)
	assert.Equal(t, StatusReturned, s)

	_, err = ParseStatus("lost in transit")
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestParsePaymentValues(t *testing.T) {
	m, err := ParsePaymentMethod("COD")
	require.NoError(t, err)
	assert.Equal(t, PaymentCOD, m)
	_, err = ParsePaymentMethod("cheque")
	assert.ErrorIs(t, err, ErrValidation)

	p, err := ParsePaymentStatus("refund processing")
	require.NoError(t, err)
	assert.Equal(t, PaymentRefundProcessing, p)
	_, err = ParsePaymentStatus("maybe")
	assert.ErrorIs(t, err, ErrValidation)

	var cs CancellationStatus
	require.NoError(t, cs.UnmarshalText([]byte("Approved")))
	assert.Equal(t, CancellationApproved, cs)
	assert.Error(t, cs.UnmarshalText([]byte("withdrawn")))

	d, err := ParseDecision("Reject")
	require.NoError(t, err)
	assert.Equal(t, DecisionReject, d)
	_, err = ParseDecision("later")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSentinelsAreValidationErrors(t *testing.T) {
	for _, err := range []error{ErrInvalidTransition, ErrAlreadyRequested, ErrNoRequestPending} {
		assert.ErrorIs(t, err, ErrValidation)
	}
	assert.NotErrorIs(t, ErrNotFound, ErrValidation)
	assert.NotErrorIs(t, ErrConflict, ErrValidation)
}
