package narrativeobs

import (
	"context"

	"stock-analysis-pipeline/internal/interfaces"
	"stock-analysis-pipeline/internal/logger"
	"stock-analysis-pipeline/internal/trace"
	"stock-analysis-pipeline/internal/types"
)

// observableNarrator wraps a Narrator with logging and tracing
type observableNarrator struct {
	narrator interfaces.Narrator
}

var _ interfaces.Narrator = (*observableNarrator)(nil)

// Wrap wraps a narrator with observability middleware
func Wrap(narrator interfaces.Narrator) interfaces.Narrator {
	return &observableNarrator{narrator: narrator}
}

func (on *observableNarrator) Narrate(ctx context.Context, meta types.Meta, groups types.MetricGroups) (string, error) {
	ctx, span := trace.StartSpan(ctx, "narrative.Narrate")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Requesting narrative", "ticker", meta.Ticker)

	text, err := on.narrator.Narrate(ctx, meta, groups)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to generate narrative", err, "ticker", meta.Ticker)
		return "", err
	}

	logger.InfoSkip(ctx, 1, "Narrative generated", "ticker", meta.Ticker, "length", len(text))
	return text, nil
}
