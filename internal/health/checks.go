package health

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sotto-ai/sotto/pkg/audio"
	"github.com/sotto-ai/sotto/pkg/vectorstore"
)

// Ollama returns a [Checker] that verifies an Ollama server is reachable by
// querying its model listing endpoint. A nil client uses
// [http.DefaultClient].
func Ollama(baseURL string, client *http.Client) Checker {
	if client == nil {
		client = http.DefaultClient
	}
	return Checker{
		Name: "ollama",
		Check: func(ctx context.Context) error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/tags", nil)
			if err != nil {
				return fmt.Errorf("build request: %w", err)
			}
			resp, err := client.Do(req)
			if err != nil {
				return fmt.Errorf("ollama not reachable at %s: %w", baseURL, err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("ollama at %s returned status %d", baseURL, resp.StatusCode)
			}
			return nil
		},
	}
}

// WhisperServer returns a [Checker] that verifies a whisper.cpp server is
// accepting connections. Any HTTP response counts as reachable; only
// transport errors fail the check.
func WhisperServer(baseURL string, client *http.Client) Checker {
	if client == nil {
		client = http.DefaultClient
	}
	return Checker{
		Name: "whisper",
		Check: func(ctx context.Context) error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/", nil)
			if err != nil {
				return fmt.Errorf("build request: %w", err)
			}
			resp, err := client.Do(req)
			if err != nil {
				return fmt.Errorf("whisper server not reachable at %s: %w", baseURL, err)
			}
			resp.Body.Close()
			return nil
		},
	}
}

// AudioSource returns a [Checker] that verifies an audio source is
// configured and, when the source can report availability, that its device
// or file is usable.
func AudioSource(src audio.Source) Checker {
	return Checker{
		Name: "audio",
		Check: func(ctx context.Context) error {
			if src == nil {
				return errors.New("no audio source configured")
			}
			if avail, ok := src.(audio.AvailabilityChecker); ok {
				if err := avail.Available(ctx); err != nil {
					return fmt.Errorf("audio source unavailable: %w", err)
				}
			}
			return nil
		},
	}
}

// DocumentsIndexed returns a [Checker] that verifies the passage store
// contains at least one indexed document.
func DocumentsIndexed(store vectorstore.Store) Checker {
	return Checker{
		Name: "documents",
		Check: func(ctx context.Context) error {
			n, err := store.Count(ctx)
			if err != nil {
				return fmt.Errorf("counting passages: %w", err)
			}
			if n == 0 {
				return errors.New("no documents indexed; add files to the documents directory")
			}
			return nil
		},
	}
}

// Report is the outcome of running a set of prerequisite checks.
type Report struct {
	Ready  bool     `json:"ready"`
	Issues []string `json:"issues,omitempty"`
}

// RunChecks runs every checker and collects the failures into a [Report].
func RunChecks(ctx context.Context, checkers ...Checker) Report {
	var issues []string
	for _, c := range checkers {
		if err := c.Check(ctx); err != nil {
			issues = append(issues, fmt.Sprintf("%s: %v", c.Name, err))
		}
	}
	return Report{Ready: len(issues) == 0, Issues: issues}
}

// CheckAll runs every checker and returns a joined error describing all
// failures. A session should not start until CheckAll returns nil.
func CheckAll(ctx context.Context, checkers ...Checker) error {
	var errs []error
	for _, c := range checkers {
		if err := c.Check(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.Name, err))
		}
	}
	return errors.Join(errs...)
}
