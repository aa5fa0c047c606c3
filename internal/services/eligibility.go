package services

import (
	"context"
	"log/slog"

	"github.com/disparter/toguwaka-discord-game-sub002/pkg/state"
	"github.com/disparter/toguwaka-discord-game-sub002/pkg/story"
)

// ProgressEligibility checks chapter requirements against the player's own
// progress record: completed chapters, variable values, and completed-chapter
// count.
type ProgressEligibility struct {
	logger *slog.Logger
}

func NewProgressEligibility(logger *slog.Logger) *ProgressEligibility {
	return &ProgressEligibility{logger: logger}
}

func (p *ProgressEligibility) Check(ctx context.Context, rec *state.ProgressRecord, req story.Requirements) (bool, error) {
	for _, chapterID := range req.Chapters {
		if !rec.HasCompleted(chapterID) {
			p.logger.Debug("Eligibility failed: chapter not completed",
				"player_id", rec.PlayerID, "required_chapter", chapterID)
			return false, nil
		}
	}

	for variable, expected := range req.Variables {
		if rec.Variables[variable] != expected {
			p.logger.Debug("Eligibility failed: variable mismatch",
				"player_id", rec.PlayerID, "variable", variable, "expected", expected)
			return false, nil
		}
	}

	if req.MinCompleted > 0 && len(rec.CompletedChapters) < req.MinCompleted {
		p.logger.Debug("Eligibility failed: not enough completed chapters",
			"player_id", rec.PlayerID, "completed", len(rec.CompletedChapters), "required", req.MinCompleted)
		return false, nil
	}

	return true, nil
}
