package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	// FieldProvider is the structured log field key for the AI provider name.
	FieldProvider = "ai_provider"
	// FieldModel is the structured log field key for the AI model identifier.
	FieldModel = "ai_model"
	// FieldMainStore is the structured log field key for the main store URL.
	FieldMainStore = "main_store_url"
	// FieldExpansionStore is the structured log field key for the expansion store URL.
	FieldExpansionStore = "expansion_store_url"
	// FieldEvaluationID identifies a single evaluation across log entries.
	FieldEvaluationID = "evaluation_id"
)

// StringField describes a string-valued structured logging field.
type StringField struct {
	Key   string
	Value string
}

// StringFields converts the provided key/value pairs into zap fields, trimming
// whitespace and omitting entries with empty keys or values.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		if key == "" {
			continue
		}

		value := strings.TrimSpace(field.Value)
		if value == "" {
			continue
		}

		result = append(result, zap.String(key, value))
	}

	return result
}

// WithFields safely attaches the provided fields to the logger.
// A nil logger is replaced with a no-op one.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// AIFields describes the AI provider and model used for product extraction.
func AIFields(provider, model string) []zap.Field {
	return StringFields(
		StringField{Key: FieldProvider, Value: provider},
		StringField{Key: FieldModel, Value: model},
	)
}

// StoreFields describes the pair of stores taking part in an evaluation.
func StoreFields(evaluationID, mainURL, expansionURL string) []zap.Field {
	return StringFields(
		StringField{Key: FieldEvaluationID, Value: evaluationID},
		StringField{Key: FieldMainStore, Value: mainURL},
		StringField{Key: FieldExpansionStore, Value: expansionURL},
	)
}

// WithStoreFields attaches the evaluation fields to the provided logger.
func WithStoreFields(logger *zap.Logger, evaluationID, mainURL, expansionURL string) *zap.Logger {
	return WithFields(logger, StoreFields(evaluationID, mainURL, expansionURL)...)
}
