package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/hlsget/hlsget/internal/engine/events"
	"github.com/hlsget/hlsget/internal/engine/types"
	"github.com/hlsget/hlsget/internal/utils"
)

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render(" " + m.title + " "))
	b.WriteString("\n\n")

	pct := 0.0
	if m.total > 0 {
		pct = float64(m.completed) / float64(m.total)
	}
	b.WriteString("  " + m.bar.ViewAs(pct) + "\n\n")

	line := fmt.Sprintf("  %d/%d segments", m.completed, m.total)
	if m.failed > 0 {
		line += ErrorStyle.Render(fmt.Sprintf("  %d failed", m.failed))
	}
	if m.estimate > 0 {
		line += SubtextStyle.Render("  ~" + utils.ConvertBytesToHumanReadable(m.estimate))
	}
	line += SubtextStyle.Render("  " + utils.FormatDuration(time.Since(m.startTime).Seconds()))
	b.WriteString(line + "\n")

	b.WriteString("  " + m.phaseLine() + "\n")
	if m.statusLine != "" {
		b.WriteString(SubtextStyle.Render("  "+m.statusLine) + "\n")
	}

	b.WriteString("\n" + HelpStyle.Render("  p pause · r resume · f finalize early · c cancel · q quit") + "\n")
	return AppStyle.Render(b.String())
}

func (m Model) phaseLine() string {
	if m.paused {
		return WarningStyle.Render("⏸ paused")
	}
	switch m.phase {
	case types.PhaseDownloading:
		return "▼ downloading"
	case types.PhaseFlushing:
		return "≡ flushing"
	case types.PhaseDone:
		out := SuccessStyle.Render("✓ done")
		if m.written > 0 {
			out += SubtextStyle.Render("  " + utils.ConvertBytesToHumanReadable(m.written) + " written")
		}
		if m.skipped > 0 {
			out += WarningStyle.Render(fmt.Sprintf("  %d segments skipped", m.skipped))
		}
		if m.outPath != "" {
			out += SubtextStyle.Render("  → " + m.outPath)
		}
		return out
	case types.PhaseWaiting:
		return WarningStyle.Render(fmt.Sprintf("… waiting: %d segments failed, retry to complete", m.failed))
	case types.PhaseError:
		if m.err != nil {
			return ErrorStyle.Render("✗ " + m.err.Error())
		}
		return ErrorStyle.Render("✗ error")
	}
	return string(m.phase)
}

func segmentFailedLine(msg events.SegmentFailedMsg) string {
	return fmt.Sprintf("segment %d gave up after %d attempts", msg.Index, msg.Attempts)
}
