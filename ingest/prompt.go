package ingest

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// ChallengeDecision is the operator's answer to a blocking anti-bot
// challenge: keep going after clearing it manually, or stop and persist.
type ChallengeDecision int

const (
	ChallengeContinue ChallengeDecision = iota
	ChallengeQuit
)

// ChallengePrompter surfaces a blocking challenge to the operator and waits
// for a decision. Implementations must honor ctx cancellation so an
// interrupt received mid-prompt still shuts the run down cleanly.
type ChallengePrompter interface {
	Prompt(ctx context.Context, city string, page int) ChallengeDecision
}

// StdinPrompter blocks the run on terminal input. Enter resumes the same
// page, "q" quits and persists.
type StdinPrompter struct {
	once  sync.Once
	lines chan string
	stale bool
	in    io.Reader
}

func NewStdinPrompter() *StdinPrompter {
	return &StdinPrompter{in: os.Stdin}
}

func (p *StdinPrompter) Prompt(ctx context.Context, city string, page int) ChallengeDecision {
	p.once.Do(func() {
		p.lines = make(chan string, 1)
		go func() {
			scanner := bufio.NewScanner(p.in)
			for scanner.Scan() {
				p.lines <- scanner.Text()
			}
			close(p.lines)
		}()
	})

	// A line typed after an earlier prompt was abandoned by cancellation
	// must not answer this one.
	if p.stale {
		select {
		case <-p.lines:
		default:
		}
		p.stale = false
	}

	fmt.Printf("\nBLOCKING CHALLENGE on %s page %d.\n", city, page)
	fmt.Println("Clear it in the browser, then press Enter to retry (or 'q' + Enter to quit and persist).")

	select {
	case line, ok := <-p.lines:
		if !ok {
			return ChallengeQuit
		}
		if strings.EqualFold(strings.TrimSpace(line), "q") {
			return ChallengeQuit
		}
		return ChallengeContinue
	case <-ctx.Done():
		p.stale = true
		return ChallengeQuit
	}
}
