package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/pricelens/backend/internal/domain"
)

// ExtractionResult is an extraction together with the completeness verdict
type ExtractionResult struct {
	Extraction *domain.Extraction        `json:"extraction"`
	Decision   domain.ExtractionDecision `json:"decision"`
	UploadID   string                    `json:"uploadId,omitempty"`
	Recorded   int                       `json:"recorded"`
}

// ExtractionService evaluates price list extractions, runs the rule-based parser
// and records accepted price lists
type ExtractionService struct {
	parser domain.PriceListParser
	writer domain.CatalogWriter
	config ExtractionConfig
	logger zerolog.Logger
}

// NewExtractionService creates an extraction service. parser and writer may be nil
// when only evaluation of externally produced reports is needed.
func NewExtractionService(
	parser domain.PriceListParser,
	writer domain.CatalogWriter,
	logger zerolog.Logger,
	config ExtractionConfig,
) (*ExtractionService, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &ExtractionService{
		parser: parser,
		writer: writer,
		config: config,
		logger: logger,
	}, nil
}

// Config returns the startup thresholds
func (s *ExtractionService) Config() ExtractionConfig {
	return s.config
}

// Evaluate applies the completeness controller to a report
func (s *ExtractionService) Evaluate(report domain.ExtractionReport, cfg ExtractionConfig) (domain.ExtractionDecision, error) {
	if report.ProductCount < 0 || report.TotalRowsDetected < 0 || report.TotalRowsProcessed < 0 {
		return domain.ExtractionDecision{}, fmt.Errorf("%w: negative counts in report", domain.ErrInvalidInput)
	}
	if r := report.CompletenessRatio; r != nil && (*r < 0 || *r > 1) {
		return domain.ExtractionDecision{}, fmt.Errorf("%w: completeness ratio %v outside [0, 1]", domain.ErrInvalidInput, *r)
	}
	if err := cfg.Validate(); err != nil {
		return domain.ExtractionDecision{}, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return EvaluateExtraction(report, cfg), nil
}

// ExtractPriceList parses a spreadsheet price list and decides whether it needs AI
// re-extraction. Accepted lists are recorded when a supplier is given.
func (s *ExtractionService) ExtractPriceList(ctx context.Context, r io.Reader, filename, supplierName string) (*ExtractionResult, error) {
	if s.parser == nil {
		return nil, errors.New("no price list parser configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	extraction, err := s.parser.Parse(r, filename)
	if err != nil {
		return nil, err
	}

	decision := EvaluateExtraction(extraction.Report, s.config)
	result := &ExtractionResult{Extraction: extraction, Decision: decision}

	s.logger.Info().
		Str("file", filename).
		Int("rows_detected", extraction.Report.TotalRowsDetected).
		Int("products", extraction.Report.ProductCount).
		Str("decision", string(decision.Decision)).
		Msg("price list extracted")

	if supplierName == "" || s.writer == nil {
		return result, nil
	}
	if decision.Escalated() {
		s.logger.Info().Str("file", filename).Msg("price list not recorded, waiting for AI re-extraction")
		return result, nil
	}

	if err := s.record(ctx, result, filename, supplierName); err != nil {
		return nil, err
	}
	return result, nil
}

// record stores every extracted row as the supplier's new price. A failing row is
// logged and skipped.
func (s *ExtractionService) record(ctx context.Context, result *ExtractionResult, filename, supplierName string) error {
	uploadID, supplierID, err := s.writer.RecordUpload(ctx, supplierName, filename, result.Extraction.Source)
	if err != nil {
		return err
	}
	result.UploadID = uploadID

	for _, row := range result.Extraction.Rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, err := s.writer.RecordPrice(ctx, domain.PriceInput{
			ProductName: row.Name,
			SupplierID:  supplierID,
			UploadID:    uploadID,
			Amount:      row.Price,
			Quantity:    row.Quantity,
			Unit:        row.Unit,
		})
		if err != nil {
			s.logger.Warn().Err(err).Int("line", row.Line).Str("name", row.Name).Msg("failed to record price")
			continue
		}
		result.Recorded++
	}
	return nil
}

// Resolve re-evaluates the rule-based extraction and picks between it and an AI re-extraction
func (s *ExtractionService) Resolve(ruleBased, ai *domain.Extraction) (*ExtractionResult, error) {
	if ruleBased == nil {
		return nil, fmt.Errorf("%w: rule-based extraction is required", domain.ErrInvalidInput)
	}
	decision := EvaluateExtraction(ruleBased.Report, s.config)
	return &ExtractionResult{
		Extraction: SelectExtraction(ruleBased, ai, decision),
		Decision:   decision,
	}, nil
}
