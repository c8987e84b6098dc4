package engine

import (
	"fmt"
	"strings"
	"time"

	"diffmerge/logger"
	"diffmerge/text"
	"diffmerge/types"

	"github.com/zeebo/xxh3"
)

// fingerprint identifies a proposal by its content so a generation that is
// delivered twice does not re-arm or replace the outstanding change.
func fingerprint(code, instruction string) uint64 {
	return xxh3.HashString(code + "\x00" + instruction)
}

// buildProposal turns a generation into a PendingChange, or returns nil when
// the generation is partial or its code fails the length gate.
func (e *Engine) buildProposal(gen types.Generation) *types.PendingChange {
	defer logger.Trace("engine.buildProposal")()

	if !gen.Final {
		logger.Debug("partial generation ignored")
		return nil
	}
	if e.editor == nil {
		logger.Warn("generation dropped: %v", ErrNoEditor)
		return nil
	}

	buffer, err := e.editor.CurrentBuffer()
	if err != nil {
		logger.Error("error reading buffer: %v", err)
		return nil
	}
	language := text.NormalizeLanguage(e.editor.Language())

	block, fenced := text.ExtractBlock(gen.GeneratedText)
	code := gen.GeneratedText
	if fenced {
		code = block.Code
	}
	if n := text.CountNonSpace(code); n < e.config.MinCodeLength {
		logger.Debug("generation below length gate (%d < %d)", n, e.config.MinCodeLength)
		return nil
	}

	embedded := false
	if e.config.EmbedForeignBlocks && fenced && language == "html" && block.Language != "html" {
		if doc, ok := text.EmbedInHTML(buffer, code, block.Language); ok {
			logger.Debug("embedding %s block into html buffer", block.Language)
			code, embedded = doc, true
		}
	}
	if !embedded {
		code = text.FormatForLanguage(code, language)
	}

	decision := e.classifier.Decide(gen.UserInstruction, len(strings.TrimSpace(buffer)))
	isReplacement := decision.Replace || embedded

	pc := &types.PendingChange{
		ID:              fingerprint(code, gen.UserInstruction),
		Code:            code,
		Language:        language,
		UserInstruction: gen.UserInstruction,
		IsReplacement:   isReplacement,
		AutoApply:       e.classifier.IsObviousImprovement(gen.UserInstruction, isReplacement),
		CreatedAt:       e.clock.Now(),
	}
	if isReplacement {
		pc.Diff = e.diff(buffer, code)
	}

	logger.Debug("proposal %016x: replace=%v auto=%v (%s)", pc.ID, pc.IsReplacement, pc.AutoApply, decision.Reason)
	return pc
}

// propose installs pc as the pending change and arms the auto-apply timer
// for obvious improvements. Caller holds mu and the slot is empty.
func (e *Engine) propose(pc *types.PendingChange) {
	e.pending = pc
	e.tracker.TrackShown(pc)
	if obs, ok := e.editor.(Observer); ok {
		obs.ShowPending(pc.Clone())
	}

	if !pc.AutoApply {
		e.state = stateProposed
		return
	}

	e.timer.arm(e.config.AutoApplyDelay, e.onAutoApplyTimer)
	e.state = stateAutoApplyArmed
	e.notify(logger.LevelInfo, fmt.Sprintf("Auto-replacing code in %s...", formatDelay(e.config.AutoApplyDelay)))
}

// onAutoApplyTimer runs on the clock's goroutine. It routes the fire
// through the event loop when one is running.
func (e *Engine) onAutoApplyTimer(token uint64) {
	event := Event{Type: EventAutoApplyTimeout, Data: token}
	if e.Submit(event) {
		return
	}
	e.handleEvent(event)
}

func formatDelay(d time.Duration) string {
	if d%time.Second == 0 {
		secs := int(d / time.Second)
		if secs == 1 {
			return "1 second"
		}
		return fmt.Sprintf("%d seconds", secs)
	}
	return d.String()
}
