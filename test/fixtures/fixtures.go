package fixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nimasrn/dv-referral-ledger/internal/model"
)

var seq atomic.Int64

// Phone returns a fresh E.164 number.
func Phone() string {
	return fmt.Sprintf("+1555%07d", seq.Add(1))
}

// Reference returns a fresh bank reference number.
func Reference() string {
	return fmt.Sprintf("TRX%08d", seq.Add(1))
}

func Register(name string) model.RegisterRequest {
	return model.RegisterRequest{FullName: name, Phone: Phone()}
}

func RegisterReferred(name, code string, formID int64) model.RegisterRequest {
	req := Register(name)
	req.ReferralCode = code
	req.FormID = &formID
	return req
}

func Form(applicant string) model.FormCreateRequest {
	return model.FormCreateRequest{ApplicantName: applicant}
}

// Receipt is a receipt that passes every heuristic for the given fee.
func Receipt(fee int64) model.Receipt {
	return model.Receipt{
		Reference: Reference(),
		Amount:    fee,
		PaidAt:    time.Now().Add(-time.Hour).UTC(),
		PayerName: "Applicant",
	}
}
