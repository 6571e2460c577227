package models

import "fmt"

// OverallStatus is the legacy integer code reported to existing consumers.
// It is always derived from the three section statuses, never stored on its own.
type OverallStatus int

const (
	OverallNotStarted             OverallStatus = 0
	OverallPendingIDAuto          OverallStatus = 10
	OverallIDReview               OverallStatus = 11
	OverallIDRejected             OverallStatus = 12
	OverallIDFailed               OverallStatus = 13
	OverallPendingWWCCAuto        OverallStatus = 20
	OverallWWCCReview             OverallStatus = 21
	OverallWWCCRejected           OverallStatus = 22
	OverallWWCCFailed             OverallStatus = 23
	OverallWWCCExpired            OverallStatus = 24
	OverallWWCCOCGNotFound        OverallStatus = 25
	OverallWWCCClosed             OverallStatus = 26
	OverallWWCCApplicationPending OverallStatus = 27
	OverallWWCCBarred             OverallStatus = 28
	OverallWWCCOCGCleared         OverallStatus = 29
	OverallProvisionallyVerified  OverallStatus = 30
	OverallFullyVerified          OverallStatus = 40
)

// overallNames is the static code registry. Keys are the only valid codes.
var overallNames = map[OverallStatus]string{
	OverallNotStarted:             "not_started",
	OverallPendingIDAuto:          "pending_id_auto",
	OverallIDReview:               "id_review",
	OverallIDRejected:             "id_rejected",
	OverallIDFailed:               "id_failed",
	OverallPendingWWCCAuto:        "pending_wwcc_auto",
	OverallWWCCReview:             "wwcc_review",
	OverallWWCCRejected:           "wwcc_rejected",
	OverallWWCCFailed:             "wwcc_failed",
	OverallWWCCExpired:            "wwcc_expired",
	OverallWWCCOCGNotFound:        "wwcc_ocg_not_found",
	OverallWWCCClosed:             "wwcc_closed",
	OverallWWCCApplicationPending: "wwcc_application_pending",
	OverallWWCCBarred:             "wwcc_barred",
	OverallWWCCOCGCleared:         "wwcc_ocg_cleared",
	OverallProvisionallyVerified:  "provisionally_verified",
	OverallFullyVerified:          "fully_verified",
}

// Name returns the registry label for the code.
func (s OverallStatus) Name() string {
	if n, ok := overallNames[s]; ok {
		return n
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

// Valid reports whether the code is registered.
func (s OverallStatus) Valid() bool {
	_, ok := overallNames[s]
	return ok
}

// Code returns the integer form.
func (s OverallStatus) Code() int { return int(s) }

// DeriveOverallStatus is the single source of the legacy code.
// Precedence: OCG-cleared plus a passed cross-check, then any settled cross-check,
// then the WWCC section, then the identity section.
func DeriveOverallStatus(identity IdentityStatus, wwcc WWCCStatus, crossCheck CrossCheckStatus) OverallStatus {
	if wwcc == WWCCOCGVerified && crossCheck == CrossCheckPassed {
		return OverallFullyVerified
	}
	if crossCheckSettled(crossCheck) {
		return OverallProvisionallyVerified
	}
	if wwcc != WWCCNotStarted {
		return wwccCode(wwcc)
	}
	if identity != IdentityNotStarted {
		return identityCode(identity)
	}
	return OverallNotStarted
}

func crossCheckSettled(s CrossCheckStatus) bool {
	switch s {
	case CrossCheckPassed, CrossCheckReview:
		return true
	case CrossCheckNotStarted, CrossCheckPending, CrossCheckProcessing:
		return false
	default:
		panic(fmt.Sprintf("unmapped cross-check status %q", string(s)))
	}
}

func wwccCode(s WWCCStatus) OverallStatus {
	switch s {
	case WWCCNotStarted:
		return OverallNotStarted
	case WWCCPending, WWCCProcessing, WWCCDocVerified:
		return OverallPendingWWCCAuto
	case WWCCReview:
		return OverallWWCCReview
	case WWCCRejected:
		return OverallWWCCRejected
	case WWCCFailed:
		return OverallWWCCFailed
	case WWCCExpired:
		return OverallWWCCExpired
	case WWCCOCGNotFound:
		return OverallWWCCOCGNotFound
	case WWCCClosed:
		return OverallWWCCClosed
	case WWCCApplicationPending:
		return OverallWWCCApplicationPending
	case WWCCBarred:
		return OverallWWCCBarred
	case WWCCOCGVerified:
		return OverallWWCCOCGCleared
	default:
		panic(fmt.Sprintf("unmapped wwcc status %q", string(s)))
	}
}

func identityCode(s IdentityStatus) OverallStatus {
	switch s {
	case IdentityNotStarted:
		return OverallNotStarted
	case IdentityPending, IdentityProcessing:
		return OverallPendingIDAuto
	case IdentityVerified:
		return OverallPendingWWCCAuto
	case IdentityReview:
		return OverallIDReview
	case IdentityRejected:
		return OverallIDRejected
	case IdentityFailed:
		return OverallIDFailed
	default:
		panic(fmt.Sprintf("unmapped identity status %q", string(s)))
	}
}
