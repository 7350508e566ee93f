package drc

import "encoding/json"

// Request envelopes for the two submission endpoints. The meta field is an
// opaque passthrough with no constrained schema; only the id inside data is
// read by the mock.

// ContributionObj carries the contribution payload fields the client sends.
// The mock never validates them.
type ContributionObj struct {
	MaatID int    `json:"maatId"`
	Flag   string `json:"flag"`
}

// ContributionData is the data section of a Concor Contribution submission.
type ContributionData struct {
	ConcorContributionID  int              `json:"concorContributionId"`
	ConcorContributionObj *ContributionObj `json:"concorContributionObj,omitempty"`
}

// ContributionRequest is the envelope POSTed to /laa/v1/contribution.
type ContributionRequest struct {
	Data ContributionData `json:"data"`
	Meta json.RawMessage  `json:"meta,omitempty"`
}

// FdcObj carries the FDC payload fields the client sends.
type FdcObj struct {
	MaatID int64 `json:"maatId"`
}

// FdcData is the data section of an FDC submission.
type FdcData struct {
	FdcID  int     `json:"fdcId"`
	FdcObj *FdcObj `json:"fdcObj,omitempty"`
}

// FdcRequest is the envelope POSTed to /laa/v1/fdc.
type FdcRequest struct {
	Data FdcData         `json:"data"`
	Meta json.RawMessage `json:"meta,omitempty"`
}

// SuccessResponse is the body of a first-time success: the freshly issued
// synthetic drcId plus the caller's own id under its entity-specific field
// name.
type SuccessResponse struct {
	Meta map[string]int64 `json:"meta"`
}
