package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Every combination of the three section statuses maps to exactly one registered code.
func TestDeriveOverallStatus_Total(t *testing.T) {
	count := 0
	for _, identity := range AllIdentityStatuses {
		for _, wwcc := range AllWWCCStatuses {
			for _, cross := range AllCrossCheckStatuses {
				var got OverallStatus
				require.NotPanics(t, func() {
					got = DeriveOverallStatus(identity, wwcc, cross)
				}, "%s/%s/%s", identity, wwcc, cross)
				assert.True(t, got.Valid(), "%s/%s/%s produced unregistered code %d", identity, wwcc, cross, got)
				assert.Equal(t, got, DeriveOverallStatus(identity, wwcc, cross), "deterministic")
				count++
			}
		}
	}
	assert.Equal(t, len(AllIdentityStatuses)*len(AllWWCCStatuses)*len(AllCrossCheckStatuses), count)
}

func TestDeriveOverallStatus_SettledCrossCheckOutranks(t *testing.T) {
	for _, identity := range AllIdentityStatuses {
		for _, wwcc := range AllWWCCStatuses {
			if wwcc == WWCCOCGVerified {
				continue
			}
			assert.Equal(t, OverallProvisionallyVerified, DeriveOverallStatus(identity, wwcc, CrossCheckPassed))
			assert.Equal(t, OverallProvisionallyVerified, DeriveOverallStatus(identity, wwcc, CrossCheckReview))
		}
	}
}

func TestDeriveOverallStatus_FullyVerifiedOnlyWithOCG(t *testing.T) {
	for _, identity := range AllIdentityStatuses {
		for _, wwcc := range AllWWCCStatuses {
			for _, cross := range AllCrossCheckStatuses {
				got := DeriveOverallStatus(identity, wwcc, cross)
				if got == OverallFullyVerified {
					assert.Equal(t, WWCCOCGVerified, wwcc)
					assert.Equal(t, CrossCheckPassed, cross)
				}
			}
		}
	}
	assert.Equal(t, OverallProvisionallyVerified, DeriveOverallStatus(IdentityVerified, WWCCOCGVerified, CrossCheckReview))
}

func TestDeriveOverallStatus_Mappings(t *testing.T) {
	tests := []struct {
		identity IdentityStatus
		wwcc     WWCCStatus
		cross    CrossCheckStatus
		want     OverallStatus
	}{
		{IdentityNotStarted, WWCCNotStarted, CrossCheckNotStarted, OverallNotStarted},
		{IdentityPending, WWCCNotStarted, CrossCheckNotStarted, OverallPendingIDAuto},
		{IdentityProcessing, WWCCNotStarted, CrossCheckNotStarted, OverallPendingIDAuto},
		{IdentityVerified, WWCCNotStarted, CrossCheckNotStarted, OverallPendingWWCCAuto},
		{IdentityReview, WWCCNotStarted, CrossCheckNotStarted, OverallIDReview},
		{IdentityRejected, WWCCNotStarted, CrossCheckNotStarted, OverallIDRejected},
		{IdentityFailed, WWCCNotStarted, CrossCheckNotStarted, OverallIDFailed},
		{IdentityVerified, WWCCPending, CrossCheckNotStarted, OverallPendingWWCCAuto},
		{IdentityVerified, WWCCDocVerified, CrossCheckPending, OverallPendingWWCCAuto},
		{IdentityVerified, WWCCReview, CrossCheckNotStarted, OverallWWCCReview},
		{IdentityVerified, WWCCRejected, CrossCheckNotStarted, OverallWWCCRejected},
		{IdentityVerified, WWCCFailed, CrossCheckNotStarted, OverallWWCCFailed},
		{IdentityVerified, WWCCExpired, CrossCheckNotStarted, OverallWWCCExpired},
		{IdentityVerified, WWCCOCGNotFound, CrossCheckNotStarted, OverallWWCCOCGNotFound},
		{IdentityVerified, WWCCClosed, CrossCheckNotStarted, OverallWWCCClosed},
		{IdentityVerified, WWCCApplicationPending, CrossCheckNotStarted, OverallWWCCApplicationPending},
		{IdentityVerified, WWCCBarred, CrossCheckNotStarted, OverallWWCCBarred},
		{IdentityVerified, WWCCOCGVerified, CrossCheckPending, OverallWWCCOCGCleared},
		{IdentityRejected, WWCCPending, CrossCheckNotStarted, OverallPendingWWCCAuto},
		{IdentityVerified, WWCCDocVerified, CrossCheckPassed, OverallProvisionallyVerified},
		{IdentityVerified, WWCCOCGVerified, CrossCheckPassed, OverallFullyVerified},
	}
	for _, tt := range tests {
		t.Run(tt.want.Name(), func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveOverallStatus(tt.identity, tt.wwcc, tt.cross))
		})
	}
}

func TestDeriveOverallStatus_UnknownValuePanics(t *testing.T) {
	assert.Panics(t, func() {
		DeriveOverallStatus(IdentityVerified, WWCCStatus("mystery"), CrossCheckNotStarted)
	})
	assert.Panics(t, func() {
		DeriveOverallStatus(IdentityStatus("mystery"), WWCCNotStarted, CrossCheckNotStarted)
	})
	assert.Panics(t, func() {
		DeriveOverallStatus(IdentityVerified, WWCCPending, CrossCheckStatus("mystery"))
	})
}

func TestOverallStatusRegistry(t *testing.T) {
	assert.Equal(t, "provisionally_verified", OverallProvisionallyVerified.Name())
	assert.Equal(t, 40, OverallFullyVerified.Code())
	assert.False(t, OverallStatus(99).Valid())
	assert.Equal(t, "unknown(99)", OverallStatus(99).Name())
}

func TestParseStatuses(t *testing.T) {
	for _, s := range AllIdentityStatuses {
		got, err := ParseIdentityStatus(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	for _, s := range AllWWCCStatuses {
		got, err := ParseWWCCStatus(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	for _, s := range AllCrossCheckStatuses {
		got, err := ParseCrossCheckStatus(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	_, err := ParseIdentityStatus("VERIFIED")
	assert.Error(t, err)
	_, err = ParseWWCCStatus("")
	assert.Error(t, err)
	_, err = ParseCrossCheckStatus("done")
	assert.Error(t, err)
	_, err = ParseWWCCMethod("fax")
	assert.Error(t, err)
}
