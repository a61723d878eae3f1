package contract

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/hiveplane/hiveplane/pkg/models"
)

const (
	RuleTitle        = "title_present"
	RuleDescription  = "description_present"
	RulePriority     = "priority_recognized"
	RuleCapabilities = "capabilities_present"
)

// validatedFields mirrors the rule set as validator tags so the struct
// validator does the field-level checks.
type validatedFields struct {
	Title                string   `validate:"required"`
	Description          string   `validate:"required"`
	RequiredCapabilities []string `validate:"required,min=1"`
}

var fieldRules = map[string]string{
	"Title":                RuleTitle,
	"Description":          RuleDescription,
	"RequiredCapabilities": RuleCapabilities,
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// runValidationRules evaluates the contract rule set and returns one
// result per rule. All rules must pass for auto-approval.
func runValidationRules(req CreateRequest) []models.ValidationResult {
	failed := make(map[string]string)

	err := validate.Struct(validatedFields{
		Title:                req.Title,
		Description:          req.Description,
		RequiredCapabilities: req.RequiredCapabilities,
	})
	if err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			for _, fieldErr := range validationErrors {
				if rule, ok := fieldRules[fieldErr.Field()]; ok {
					failed[rule] = "failed " + fieldErr.Tag() + " check"
				}
			}
		}
	}

	results := make([]models.ValidationResult, 0, len(fieldRules)+1)

	for _, rule := range []string{RuleTitle, RuleDescription, RuleCapabilities} {
		message, bad := failed[rule]
		results = append(results, models.ValidationResult{
			Rule:    rule,
			Passed:  !bad,
			Message: message,
		})
	}

	priorityResult := models.ValidationResult{Rule: RulePriority, Passed: true}
	if !models.ValidContractPriority(req.Priority) {
		priorityResult.Passed = false
		priorityResult.Message = "unrecognized priority " + string(req.Priority)
	}

	return append(results, priorityResult)
}
