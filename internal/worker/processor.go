package worker

import (
	"fmt"

	"quoting/internal/events"
	"quoting/internal/logger"
	"quoting/internal/models"

	"gorm.io/gorm"
)

type Processor struct {
	db     *gorm.DB
	logger *logger.Logger
}

func NewProcessor(db *gorm.DB, logger *logger.Logger) *Processor {
	return &Processor{
		db:     db,
		logger: logger,
	}
}

func (p *Processor) Process(event events.Event) error {
	switch event.Type {
	case events.TypeQuoteCreated, events.TypeQuoteSkipped:
		// Recorded by the API at creation time; nothing to update.
		return nil
	case events.TypeQuoteDispatched:
		return p.markDispatched(event)
	case events.TypeQuoteFailed:
		return p.markFailed(event)
	default:
		p.logger.Debug("Unhandled event type: %s", event.Type)
		return nil
	}
}

func (p *Processor) markDispatched(event events.Event) error {
	var quote models.Quote
	if err := p.db.First(&quote, "id = ?", event.QuoteID).Error; err != nil {
		return fmt.Errorf("failed to load quote %s: %w", event.QuoteID, err)
	}

	if event.Cin7ID != "" {
		quote.Cin7ID = &event.Cin7ID
	}
	// A dispatch that succeeded after an earlier partial failure (e.g. the
	// Shopify draft order) completes the record only partially.
	if len(quote.Errors) > 0 {
		quote.Status = models.QuoteStatusPartial
	} else {
		quote.Status = models.QuoteStatusCompleted
	}

	return p.db.Save(&quote).Error
}

func (p *Processor) markFailed(event events.Event) error {
	var quote models.Quote
	if err := p.db.First(&quote, "id = ?", event.QuoteID).Error; err != nil {
		return fmt.Errorf("failed to load quote %s: %w", event.QuoteID, err)
	}

	quote.Errors = append(quote.Errors, event.Errors...)
	if quote.ShopifyDraftOrderID != nil {
		quote.Status = models.QuoteStatusPartial
	} else {
		quote.Status = models.QuoteStatusFailed
	}

	return p.db.Save(&quote).Error
}
