package model

import "time"

// Source identifies where a field value came from.
type Source string

const (
	SourceEngineA Source = "engine-a"
	SourceEngineB Source = "engine-b"
	SourceHybrid  Source = "hybrid"
	SourceManual  Source = "manual"
)

// Field names as they appear in validation findings, consensus reports and stage data.
const (
	FieldPayee         = "payee"
	FieldAmount        = "amount"
	FieldAmountWritten = "amountWritten"
	FieldCheckDate     = "checkDate"
	FieldCheckNumber   = "checkNumber"
	FieldBankName      = "bankName"
	FieldMemo          = "memo"
	FieldMICR          = "micr"
	FieldMICRRouting   = "micr.routing"
	FieldMICRAccount   = "micr.account"
	FieldMICRSerial    = "micr.serial"
)

// PrimaryFields are the fields that make up the confidence summary.
var PrimaryFields = []string{FieldPayee, FieldAmount, FieldCheckDate, FieldCheckNumber, FieldBankName}

// Rect is a pixel bounding box on the check image.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// FieldExtraction is a single extracted field value with its confidence and provenance.
type FieldExtraction struct {
	Value       Value   `json:"value"`
	Confidence  float64 `json:"confidence"`
	Source      Source  `json:"source"`
	RawText     string  `json:"raw_text,omitempty"`
	BoundingBox *Rect   `json:"bounding_box,omitempty"`
}

// NewExtraction builds a FieldExtraction with the confidence clamped to [0,1].
func NewExtraction(v Value, confidence float64, src Source) FieldExtraction {
	return FieldExtraction{Value: v, Confidence: ClampConfidence(confidence), Source: src}
}

// Present reports whether the extraction carries a usable value.
func (f FieldExtraction) Present() bool {
	return !f.Value.IsEmpty()
}

// ClampConfidence bounds c to [0,1].
func ClampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// MICR holds the parsed magnetic ink line at the bottom of a check.
type MICR struct {
	Routing FieldExtraction `json:"routing"`
	Account FieldExtraction `json:"account"`
	Serial  FieldExtraction `json:"serial"`
	Raw     string          `json:"raw,omitempty"`
}

// Present reports whether any MICR component was read.
func (m MICR) Present() bool {
	return m.Routing.Present() || m.Account.Present() || m.Serial.Present()
}

// CheckFields is the merged field set for one check. Absent fields hold an
// empty value with confidence 0.
type CheckFields struct {
	Payee         FieldExtraction `json:"payee"`
	Amount        FieldExtraction `json:"amount"`
	AmountWritten FieldExtraction `json:"amountWritten"`
	CheckDate     FieldExtraction `json:"checkDate"`
	CheckNumber   FieldExtraction `json:"checkNumber"`
	BankName      FieldExtraction `json:"bankName"`
	Memo          FieldExtraction `json:"memo"`
	MICR          MICR            `json:"micr"`
}

// Primary returns the primary fields keyed by name.
func (c CheckFields) Primary() map[string]FieldExtraction {
	return map[string]FieldExtraction{
		FieldPayee:       c.Payee,
		FieldAmount:      c.Amount,
		FieldCheckDate:   c.CheckDate,
		FieldCheckNumber: c.CheckNumber,
		FieldBankName:    c.BankName,
	}
}

// PartialFields is what a single extraction engine returns. A nil field
// means the engine produced nothing for it.
type PartialFields struct {
	Payee         *FieldExtraction `json:"payee,omitempty"`
	Amount        *FieldExtraction `json:"amount,omitempty"`
	AmountWritten *FieldExtraction `json:"amountWritten,omitempty"`
	CheckDate     *FieldExtraction `json:"checkDate,omitempty"`
	CheckNumber   *FieldExtraction `json:"checkNumber,omitempty"`
	BankName      *FieldExtraction `json:"bankName,omitempty"`
	Memo          *FieldExtraction `json:"memo,omitempty"`
	MICR          *MICR            `json:"micr,omitempty"`
}

// Get returns the named field, or nil.
func (p *PartialFields) Get(name string) *FieldExtraction {
	if p == nil {
		return nil
	}
	switch name {
	case FieldPayee:
		return p.Payee
	case FieldAmount:
		return p.Amount
	case FieldAmountWritten:
		return p.AmountWritten
	case FieldCheckDate:
		return p.CheckDate
	case FieldCheckNumber:
		return p.CheckNumber
	case FieldBankName:
		return p.BankName
	case FieldMemo:
		return p.Memo
	}
	return nil
}

// Count returns how many fields the engine produced, MICR excluded.
func (p *PartialFields) Count() int {
	if p == nil {
		return 0
	}
	n := 0
	for _, name := range []string{FieldPayee, FieldAmount, FieldAmountWritten, FieldCheckDate, FieldCheckNumber, FieldBankName, FieldMemo} {
		if f := p.Get(name); f != nil && f.Present() {
			n++
		}
	}
	return n
}

// Set assigns the named field on c.
func (c *CheckFields) Set(name string, f FieldExtraction) {
	switch name {
	case FieldPayee:
		c.Payee = f
	case FieldAmount:
		c.Amount = f
	case FieldAmountWritten:
		c.AmountWritten = f
	case FieldCheckDate:
		c.CheckDate = f
	case FieldCheckNumber:
		c.CheckNumber = f
	case FieldBankName:
		c.BankName = f
	case FieldMemo:
		c.Memo = f
	}
}

// CheckStatus is the lifecycle status of a check record.
type CheckStatus string

const (
	CheckStatusUploaded        CheckStatus = "uploaded"
	CheckStatusProcessing      CheckStatus = "processing"
	CheckStatusApproved        CheckStatus = "approved"
	CheckStatusReviewSuggested CheckStatus = "review_suggested"
	CheckStatusReviewRequired  CheckStatus = "review_required"
	CheckStatusRejected        CheckStatus = "rejected"
	CheckStatusExported        CheckStatus = "exported"
	CheckStatusError           CheckStatus = "error"
)

// Check is a stored check record.
type Check struct {
	ID                string            `json:"id"`
	TenantID          string            `json:"tenant_id"`
	FileURL           string            `json:"file_url"`
	FileType          string            `json:"file_type"`
	Status            CheckStatus       `json:"status"`
	Fields            *CheckFields      `json:"fields,omitempty"`
	Validation        *ValidationResult `json:"validation,omitempty"`
	Consensus         ConsensusReport   `json:"consensus,omitempty"`
	ConfidenceSummary float64           `json:"confidence_summary"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// AuditLog records an action taken on a check.
type AuditLog struct {
	ID        string         `json:"id"`
	CheckID   string         `json:"check_id"`
	TenantID  string         `json:"tenant_id"`
	Action    string         `json:"action"`
	Changes   map[string]any `json:"changes,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
