package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/marketplace-ledger/internal/settlement"
	"github.com/angelmondragon/marketplace-ledger/pkg/logger"
)

const (
	defaultSweepGrace     = 2 * time.Minute
	defaultSweepBatchSize = 100
)

type settlementSweeper interface {
	ResumeUnsettled(ctx context.Context, olderThan time.Duration, limit int) (*settlement.SweepResult, error)
}

type SettlementSweepJobParams struct {
	Logger     *logger.Logger
	Settlement settlementSweeper
	// Grace skips orders paid too recently to still be mid-settlement.
	Grace     time.Duration
	BatchSize int
}

func NewSettlementSweepJob(params SettlementSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Settlement == nil {
		return nil, fmt.Errorf("settlement service required")
	}
	grace := params.Grace
	if grace <= 0 {
		grace = defaultSweepGrace
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultSweepBatchSize
	}
	return &settlementSweepJob{
		logg:       params.Logger,
		settlement: params.Settlement,
		grace:      grace,
		batchSize:  batch,
	}, nil
}

// settlementSweepJob finishes PAID orders whose child orders were left
// PENDING by an interrupted settlement.
type settlementSweepJob struct {
	logg       *logger.Logger
	settlement settlementSweeper
	grace      time.Duration
	batchSize  int
}

func (j *settlementSweepJob) Name() string { return "settlement_sweep" }

func (j *settlementSweepJob) Run(ctx context.Context) error {
	result, err := j.settlement.ResumeUnsettled(ctx, j.grace, j.batchSize)
	if result != nil {
		j.logg.Info(j.logg.WithFields(ctx, map[string]any{
			"scanned": result.Scanned,
			"resumed": result.Resumed,
			"failed":  result.Failed,
		}), "settlement sweep finished")
	}
	if err != nil {
		return fmt.Errorf("settlement sweep: %w", err)
	}
	return nil
}
