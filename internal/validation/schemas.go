package validation

import (
	"embed"
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

const (
	SchemaRecommendations = "recommendations"
	SchemaReport          = "report"
	SchemaErrorResponse   = "error-response"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// SchemaValidator checks cross-sale payloads against their JSON schemas
type SchemaValidator struct {
	schemas map[string]*gojsonschema.Schema
}

// NewSchemaValidator creates a validator with the built-in schemas loaded
func NewSchemaValidator() (*SchemaValidator, error) {
	sv := &SchemaValidator{
		schemas: make(map[string]*gojsonschema.Schema),
	}
	if err := sv.loadEmbedded(); err != nil {
		return nil, err
	}
	return sv, nil
}

// MustNewSchemaValidator is NewSchemaValidator for package-level wiring; the
// schemas are compiled into the binary so a failure is a programming error.
func MustNewSchemaValidator() *SchemaValidator {
	sv, err := NewSchemaValidator()
	if err != nil {
		panic(err)
	}
	return sv
}

func (sv *SchemaValidator) loadEmbedded() error {
	schemaFiles := map[string]string{
		SchemaRecommendations: "schemas/recommendations.json",
		SchemaReport:          "schemas/report.json",
		SchemaErrorResponse:   "schemas/error-response.json",
	}

	for name, filename := range schemaFiles {
		raw, err := schemaFS.ReadFile(filename)
		if err != nil {
			return fmt.Errorf("failed to read schema %s: %w", name, err)
		}

		schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
		if err != nil {
			return fmt.Errorf("failed to load schema %s: %w", name, err)
		}

		sv.schemas[name] = schema
	}

	return nil
}

// ValidateRecommendations validates a recommendations response body
func (sv *SchemaValidator) ValidateRecommendations(data interface{}) *ValidationResult {
	return sv.validate(SchemaRecommendations, data)
}

// ValidateReport validates a report_success request body
func (sv *SchemaValidator) ValidateReport(data interface{}) *ValidationResult {
	return sv.validate(SchemaReport, data)
}

// ValidateErrorResponse validates an error response against its JSON schema
func (sv *SchemaValidator) ValidateErrorResponse(data interface{}) *ValidationResult {
	return sv.validate(SchemaErrorResponse, data)
}

// validate performs the actual validation against a named schema
func (sv *SchemaValidator) validate(schemaName string, data interface{}) *ValidationResult {
	schema, exists := sv.schemas[schemaName]
	if !exists {
		return &ValidationResult{
			Valid: false,
			Errors: []ValidationError{{
				Field:   "schema",
				Message: fmt.Sprintf("Schema '%s' not found", schemaName),
				Code:    "SCHEMA_NOT_FOUND",
			}},
		}
	}

	var documentLoader gojsonschema.JSONLoader
	switch v := data.(type) {
	case string:
		documentLoader = gojsonschema.NewStringLoader(v)
	case []byte:
		documentLoader = gojsonschema.NewBytesLoader(v)
	default:
		jsonBytes, err := json.Marshal(data)
		if err != nil {
			return &ValidationResult{
				Valid: false,
				Errors: []ValidationError{{
					Field:   "data",
					Message: fmt.Sprintf("Failed to marshal data to JSON: %v", err),
					Code:    "JSON_MARSHAL_ERROR",
				}},
			}
		}
		documentLoader = gojsonschema.NewBytesLoader(jsonBytes)
	}

	// Malformed JSON surfaces here rather than as a schema violation
	result, err := schema.Validate(documentLoader)
	if err != nil {
		return &ValidationResult{
			Valid: false,
			Errors: []ValidationError{{
				Field:   "document",
				Message: fmt.Sprintf("Validation error: %v", err),
				Code:    "MALFORMED_DOCUMENT",
			}},
		}
	}

	validationResult := &ValidationResult{
		Valid:  result.Valid(),
		Errors: make([]ValidationError, 0),
	}

	if !result.Valid() {
		for _, err := range result.Errors() {
			validationResult.Errors = append(validationResult.Errors, ValidationError{
				Field:   err.Field(),
				Message: err.Description(),
				Code:    "VALIDATION_ERROR",
				Value:   err.Value(),
				Context: err.Context().String(),
			})
		}
	}

	return validationResult
}

// ValidationResult represents the result of a validation operation
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// Err returns nil for a valid result and the first violation otherwise
func (vr *ValidationResult) Err() error {
	if vr.Valid {
		return nil
	}
	if len(vr.Errors) == 0 {
		return fmt.Errorf("document is invalid")
	}
	return vr.Errors[0]
}

// ValidationError represents a single validation error
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Code    string      `json:"code"`
	Value   interface{} `json:"value,omitempty"`
	Context string      `json:"context,omitempty"`
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	return fmt.Sprintf("validation error in field '%s': %s", ve.Field, ve.Message)
}

// ToAPIError converts validation errors to API error format
func (vr *ValidationResult) ToAPIError() map[string]interface{} {
	if vr.Valid {
		return nil
	}

	errorDetails := make(map[string]interface{})
	errorDetails["validationErrors"] = vr.Errors

	fieldErrors := make(map[string][]string)
	for _, err := range vr.Errors {
		if err.Field != "" {
			fieldErrors[err.Field] = append(fieldErrors[err.Field], err.Message)
		}
	}

	if len(fieldErrors) > 0 {
		errorDetails["fieldErrors"] = fieldErrors
	}

	return map[string]interface{}{
		"error": map[string]interface{}{
			"code":    "VALIDATION_ERROR",
			"message": "Request validation failed",
			"details": errorDetails,
		},
	}
}
