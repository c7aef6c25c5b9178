package ingest

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"
)

func TestStdinPrompterContinue(t *testing.T) {
	p := &StdinPrompter{in: strings.NewReader("\n")}
	if got := p.Prompt(context.Background(), "Noida", 7); got != ChallengeContinue {
		t.Fatalf("enter should continue, got %v", got)
	}
}

func TestStdinPrompterQuit(t *testing.T) {
	p := &StdinPrompter{in: strings.NewReader("  Q  \n")}
	if got := p.Prompt(context.Background(), "Noida", 7); got != ChallengeQuit {
		t.Fatalf("q should quit, got %v", got)
	}
}

func TestStdinPrompterClosedInputQuits(t *testing.T) {
	// EOF on stdin (e.g. detached daemon) must not hang the challenge wait.
	p := &StdinPrompter{in: strings.NewReader("")}
	if got := p.Prompt(context.Background(), "Noida", 7); got != ChallengeQuit {
		t.Fatalf("eof should quit, got %v", got)
	}
}

func TestStdinPrompterCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// A reader that never produces a line; only the context can end this.
	p := &StdinPrompter{in: blockingReader{}}

	done := make(chan ChallengeDecision, 1)
	go func() { done <- p.Prompt(ctx, "Noida", 7) }()

	select {
	case got := <-done:
		if got != ChallengeQuit {
			t.Fatalf("cancelled prompt should quit, got %v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("prompt did not honor cancellation")
	}
}

func TestStdinPrompterDropsStaleLine(t *testing.T) {
	pr, pw := io.Pipe()
	p := &StdinPrompter{in: pr}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if got := p.Prompt(ctx, "Noida", 7); got != ChallengeQuit {
		t.Fatalf("cancelled prompt should quit, got %v", got)
	}

	// The operator answers "q" to the prompt nobody is waiting on anymore.
	// The next prompt must not take that stale line as its answer.
	if _, err := pw.Write([]byte("q\n")); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)

	go func() {
		time.Sleep(100 * time.Millisecond)
		pw.Write([]byte("\n"))
	}()
	if got := p.Prompt(context.Background(), "Noida", 7); got != ChallengeContinue {
		t.Fatalf("stale q answered the new prompt, got %v", got)
	}
}

type blockingReader struct{}

func (blockingReader) Read(p []byte) (int, error) {
	select {}
}
