package models

import dErrors "carecheck/pkg/domain-errors"

// Phase names one step of the pipeline.
type Phase string

const (
	PhaseIdentity   Phase = "identity"
	PhaseWWCC       Phase = "wwcc"
	PhaseCrossCheck Phase = "cross_check"
)

// ParseTriggerablePhase accepts the phases a caller may trigger directly.
// The cross-check is only ever scheduled by the pipeline.
func ParseTriggerablePhase(s string) (Phase, error) {
	switch p := Phase(s); p {
	case PhaseIdentity, PhaseWWCC:
		return p, nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "phase must be one of: identity, wwcc")
}

func (p Phase) String() string { return string(p) }

// CanStartIdentityPhase checks the identity section is waiting on the automated check.
// failed is allowed so a transient extraction outage can be retried.
func (r *Record) CanStartIdentityPhase() error {
	if err := r.CheckNotBarred(); err != nil {
		return err
	}
	switch r.Identity.Status {
	case IdentityPending, IdentityProcessing, IdentityFailed:
		return nil
	case IdentityNotStarted, IdentityVerified, IdentityReview, IdentityRejected:
	}
	return dErrors.New(dErrors.CodeConflict, "identity phase cannot run from status "+string(r.Identity.Status))
}

// CanStartWWCCPhase checks the WWCC section is waiting on the automated check.
func (r *Record) CanStartWWCCPhase() error {
	if err := r.CheckNotBarred(); err != nil {
		return err
	}
	switch r.WWCC.Status {
	case WWCCPending, WWCCProcessing, WWCCFailed:
		return nil
	case WWCCNotStarted, WWCCDocVerified, WWCCReview, WWCCRejected, WWCCExpired, WWCCOCGNotFound,
		WWCCClosed, WWCCApplicationPending, WWCCBarred, WWCCOCGVerified:
	}
	return dErrors.New(dErrors.CodeConflict, "wwcc phase cannot run from status "+string(r.WWCC.Status))
}

// CanStartCrossCheck checks a cross-check has been scheduled and its inputs still hold.
func (r *Record) CanStartCrossCheck() error {
	if err := r.CheckNotBarred(); err != nil {
		return err
	}
	if !r.ReadyForCrossCheck() {
		return dErrors.New(dErrors.CodeConflict, "cross-check inputs are not both favourable")
	}
	switch r.CrossCheck.Status {
	case CrossCheckPending, CrossCheckProcessing:
		return nil
	case CrossCheckNotStarted, CrossCheckPassed, CrossCheckReview:
	}
	return dErrors.New(dErrors.CodeConflict, "cross-check is not scheduled")
}
