// Package oereport adapts the Open Enclave host-side remote report verification
// (through EGo's eclient) to interfaces.ReportVerifier.
//
// eclient links against the Open Enclave host verification library, so this package
// is only imported by the provisioner binary and never by library code.
package oereport

import (
	"errors"
	"fmt"

	"github.com/edgelesssys/ego/attestation"
	"github.com/edgelesssys/ego/eclient"
	"github.com/ruteri/tee-secret-provisioner/interfaces"
)

// Verifier verifies SGX remote reports produced by oe_get_report or EGo's GetRemoteReport.
type Verifier struct {
	verify func(reportBytes []byte) (attestation.Report, error)
}

func NewVerifier() *Verifier {
	return &Verifier{verify: eclient.VerifyRemoteReport}
}

// VerifyRemoteReport verifies the report against Intel's collateral. Reports whose TCB
// level is not up to date are rejected along with any other verification error.
func (v *Verifier) VerifyRemoteReport(report []byte, endorsements []byte) (*interfaces.ReportIdentity, error) {
	if len(endorsements) != 0 {
		return nil, errors.New("caller-supplied endorsements are not supported")
	}

	parsed, err := v.verify(report)
	if err != nil {
		return nil, fmt.Errorf("oe remote report: %w", err)
	}

	return FromReport(parsed)
}

// FromReport extracts the fields the attestation gate checks.
func FromReport(report attestation.Report) (*interfaces.ReportIdentity, error) {
	return interfaces.NewReportIdentity(report.SignerID, report.ProductID, uint32(report.SecurityVersion), report.Data, report.Debug)
}
