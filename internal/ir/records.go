package ir

import "fmt"

// Record is the payload of a RawRecord. It is implemented by the pointer
// types of the canonical entities: *Header, *Building, *Item, *Land, *Plant,
// *Vehicle, *HousingUnit and *InventoryItem.
type Record interface {
	isRecord()
}

func (*Header) isRecord()        {}
func (*Building) isRecord()      {}
func (*Item) isRecord()          {}
func (*Land) isRecord()          {}
func (*Plant) isRecord()         {}
func (*Vehicle) isRecord()       {}
func (*HousingUnit) isRecord()   {}
func (*InventoryItem) isRecord() {}

// RawRecord is one extracted row tagged with its source section.
//
// Row is the zero-based source row; header records carry Row -1.
type RawRecord struct {
	Section  Section `json:"section"`
	Sheet    string  `json:"sheet"`
	Row      int     `json:"row"`
	Kaukulan string  `json:"kaukulan,omitempty"`
	Data     Record  `json:"data"`
}

// SkipReason explains why the extractor dropped a row.
type SkipReason string

const (
	SkipRowParseFailed        SkipReason = "RowParseFailed"
	SkipMissingRequiredColumn SkipReason = "MissingRequiredColumn"
)

// Skip is an attributable dropped row.
type Skip struct {
	Sheet   string     `json:"sheet"`
	Row     int        `json:"row"`
	Section Section    `json:"section"`
	Reason  SkipReason `json:"reason"`
	Detail  string     `json:"detail"`
}

func (s Skip) String() string {
	return fmt.Sprintf("%s row %d (%s): %s: %s", s.Sheet, s.Row+1, s.Section, s.Reason, s.Detail)
}

// WarningCode classifies a non-fatal finding.
type WarningCode string

const (
	WarnAmbiguousHeader    WarningCode = "AmbiguousHeader"
	WarnSuspiciousCode     WarningCode = "SuspiciousCode"
	WarnNonIntegerQuantity WarningCode = "NonIntegerQuantity"
	WarnAmountMismatch     WarningCode = "AmountMismatch"
	WarnTotalMismatch      WarningCode = "TotalMismatch"
	WarnNegativeTotal      WarningCode = "NegativeTotalClamped"
	WarnFormatNotParsed    WarningCode = "FormatNotParsed"
)

// Warning is a non-fatal finding attached to the provenance notes.
// Row is -1 when the warning is not tied to a row.
type Warning struct {
	Code    WarningCode `json:"code"`
	Sheet   string      `json:"sheet,omitempty"`
	Row     int         `json:"row"`
	Message string      `json:"message"`
}

func (w Warning) String() string {
	if w.Row < 0 {
		if w.Sheet == "" {
			return fmt.Sprintf("%s: %s", w.Code, w.Message)
		}
		return fmt.Sprintf("%s: %s: %s", w.Code, w.Sheet, w.Message)
	}
	return fmt.Sprintf("%s: %s row %d: %s", w.Code, w.Sheet, w.Row+1, w.Message)
}

// ConflictType classifies a sync conflict.
type ConflictType string

const (
	ConflictWorkerIdentityClash ConflictType = "WorkerIdentityClash"
	ConflictLocalNameClash      ConflictType = "LocalNameClash"
)

// ConflictStatus is the resolution state of a sync conflict.
type ConflictStatus string

const (
	ConflictPending  ConflictStatus = "pending"
	ConflictAccepted ConflictStatus = "accepted"
	ConflictRejected ConflictStatus = "rejected"
	ConflictMerged   ConflictStatus = "merged"
)
