package approval

import (
	"encoding/json"

	"github.com/cmlabs-hris/hris-workflow-go/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

// PayloadValidator checks the type-specific fields of a request payload.
type PayloadValidator interface {
	Validate(payload json.RawMessage) error
}

type PayloadValidatorFunc func(payload json.RawMessage) error

func (f PayloadValidatorFunc) Validate(payload json.RawMessage) error {
	return f(payload)
}

// PayloadValidators selects a validator by request type.
type PayloadValidators map[RequestType]PayloadValidator

// DefaultPayloadValidators covers every built-in request type.
func DefaultPayloadValidators() PayloadValidators {
	return PayloadValidators{
		RequestTypeLeave:         PayloadValidatorFunc(validateLeavePayload),
		RequestTypeExpense:       PayloadValidatorFunc(validateExpensePayload),
		RequestTypeProfileChange: PayloadValidatorFunc(validateProfileChangePayload),
	}
}

func (v PayloadValidators) Validate(requestType RequestType, payload json.RawMessage) error {
	pv, ok := v[requestType]
	if !ok {
		return validator.ValidationErrors{{
			Field:   "type",
			Message: "unsupported request type",
		}}
	}
	return pv.Validate(payload)
}

type LeavePayload struct {
	LeaveTypeID string `json:"leave_type_id"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	Reason      string `json:"reason"`
}

type ExpensePayload struct {
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Description string          `json:"description"`
	IncurredOn  string          `json:"incurred_on"`
}

type ProfileChangePayload struct {
	Changes map[string]json.RawMessage `json:"changes"`
}

func decodePayload(payload json.RawMessage, dst any) error {
	if err := json.Unmarshal(payload, dst); err != nil {
		return validator.ValidationErrors{{
			Field:   "payload",
			Message: "payload is malformed: " + err.Error(),
		}}
	}
	return nil
}

func validateLeavePayload(payload json.RawMessage) error {
	var p LeavePayload
	if err := decodePayload(payload, &p); err != nil {
		return err
	}

	var errs validator.ValidationErrors

	if validator.IsEmpty(p.LeaveTypeID) {
		errs = append(errs, validator.ValidationError{
			Field:   "payload.leave_type_id",
			Message: "leave_type_id is required",
		})
	}

	start, startOK := validator.IsValidDate(p.StartDate)
	if !startOK {
		errs = append(errs, validator.ValidationError{
			Field:   "payload.start_date",
			Message: "start_date must be in YYYY-MM-DD format",
		})
	}
	end, endOK := validator.IsValidDate(p.EndDate)
	if !endOK {
		errs = append(errs, validator.ValidationError{
			Field:   "payload.end_date",
			Message: "end_date must be in YYYY-MM-DD format",
		})
	}
	if startOK && endOK && end.Before(start) {
		errs = append(errs, validator.ValidationError{
			Field:   "payload.end_date",
			Message: "end_date must not be before start_date",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateExpensePayload(payload json.RawMessage) error {
	var p ExpensePayload
	if err := decodePayload(payload, &p); err != nil {
		return err
	}

	var errs validator.ValidationErrors

	if !p.Amount.IsPositive() {
		errs = append(errs, validator.ValidationError{
			Field:   "payload.amount",
			Message: "amount must be greater than zero",
		})
	}
	if !validator.IsValidCurrency(p.Currency) {
		errs = append(errs, validator.ValidationError{
			Field:   "payload.currency",
			Message: "currency must be a 3-letter ISO 4217 code",
		})
	}
	if validator.IsEmpty(p.Description) {
		errs = append(errs, validator.ValidationError{
			Field:   "payload.description",
			Message: "description is required",
		})
	}
	if _, ok := validator.IsValidDate(p.IncurredOn); !ok {
		errs = append(errs, validator.ValidationError{
			Field:   "payload.incurred_on",
			Message: "incurred_on must be in YYYY-MM-DD format",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateProfileChangePayload(payload json.RawMessage) error {
	var p ProfileChangePayload
	if err := decodePayload(payload, &p); err != nil {
		return err
	}

	if len(p.Changes) == 0 {
		return validator.ValidationErrors{{
			Field:   "payload.changes",
			Message: "at least one field change is required",
		}}
	}

	var errs validator.ValidationErrors
	for field := range p.Changes {
		if validator.IsEmpty(field) {
			errs = append(errs, validator.ValidationError{
				Field:   "payload.changes",
				Message: "field names must not be empty",
			})
			break
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
