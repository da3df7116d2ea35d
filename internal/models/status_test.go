package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanTransition_ForwardOnly(t *testing.T) {
	require.True(t, CanTransition(DeliveryStatusPending, DeliveryStatusAccepted))
	require.True(t, CanTransition(DeliveryStatusAccepted, DeliveryStatusPickedUp))
	require.True(t, CanTransition(DeliveryStatusPickedUp, DeliveryStatusInTransit))
	require.True(t, CanTransition(DeliveryStatusInTransit, DeliveryStatusNearby))
	require.True(t, CanTransition(DeliveryStatusNearby, DeliveryStatusDelivered))

	// назад дороги нет
	require.False(t, CanTransition(DeliveryStatusDelivered, DeliveryStatusInTransit))
	require.False(t, CanTransition(DeliveryStatusInTransit, DeliveryStatusPickedUp))
	require.False(t, CanTransition(DeliveryStatusAccepted, DeliveryStatusPending))
}

func TestCanTransition_CancelRejectOnlyEarly(t *testing.T) {
	require.True(t, CanTransition(DeliveryStatusPending, DeliveryStatusCancelled))
	require.True(t, CanTransition(DeliveryStatusPending, DeliveryStatusRejected))
	require.True(t, CanTransition(DeliveryStatusAccepted, DeliveryStatusCancelled))

	require.False(t, CanTransition(DeliveryStatusAccepted, DeliveryStatusRejected))
	require.False(t, CanTransition(DeliveryStatusInTransit, DeliveryStatusCancelled))
	require.False(t, CanTransition(DeliveryStatusDelivered, DeliveryStatusCancelled))
}

func TestCanTransition_TerminalAndSelf(t *testing.T) {
	for _, s := range []string{DeliveryStatusDelivered, DeliveryStatusCancelled, DeliveryStatusRejected} {
		require.True(t, IsTerminalDeliveryStatus(s))
		require.False(t, CanTransition(s, DeliveryStatusPending))
	}
	require.False(t, CanTransition(DeliveryStatusPending, DeliveryStatusPending))
	require.False(t, IsTerminalDeliveryStatus(DeliveryStatusInTransit))
}

func TestDeliveryStatusForSample(t *testing.T) {
	require.Equal(t, DeliveryStatusPickedUp, DeliveryStatusForSample(SampleStatusPickedUp))
	require.Equal(t, DeliveryStatusInTransit, DeliveryStatusForSample(SampleStatusEnRoute))
	require.Equal(t, DeliveryStatusNearby, DeliveryStatusForSample(SampleStatusNearby))
	require.Equal(t, DeliveryStatusNearby, DeliveryStatusForSample(SampleStatusArrived))
	require.Equal(t, DeliveryStatusDelivered, DeliveryStatusForSample(SampleStatusDelivered))

	// annotations never advance the delivery
	require.Equal(t, "", DeliveryStatusForSample(SampleStatusDelayed))
	require.Equal(t, "", DeliveryStatusForSample(SampleStatusIssue))
	require.True(t, IsAnnotationSampleStatus(SampleStatusDelayed))
	require.True(t, IsAnnotationSampleStatus(SampleStatusIssue))
	require.False(t, IsAnnotationSampleStatus(SampleStatusEnRoute))
}

func TestIsValidSampleStatus(t *testing.T) {
	for _, s := range []string{
		SampleStatusPickedUp, SampleStatusEnRoute, SampleStatusNearby,
		SampleStatusDelivered, SampleStatusArrived, SampleStatusDelayed, SampleStatusIssue,
	} {
		require.True(t, IsValidSampleStatus(s))
	}
	require.False(t, IsValidSampleStatus("teleported"))
	require.False(t, IsValidSampleStatus(""))
}
