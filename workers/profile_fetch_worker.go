package workers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/selveresta/projectQuestBot/logger"
	"github.com/selveresta/projectQuestBot/models"
	"github.com/selveresta/projectQuestBot/services"
)

const (
	defaultFetchTimeout = 90 * time.Second
	maxScriptOutput     = 10 * 1024 * 1024
)

// ScriptProfileFetcher obtains follower/following counts by running the
// per-platform count script against a profile URL. The script prints one
// JSON object per line; the first line with a url field wins. This keeps
// the brittle browser-automation layer outside the Go process entirely.
type ScriptProfileFetcher struct {
	// Commands maps a profile host (x.com, instagram.com, ...) to the
	// command line that prints counts for a URL passed as the last arg.
	Commands map[string][]string
	Timeout  time.Duration
}

// NewScriptProfileFetcher builds the default host-to-command table. Script
// paths come from the caller so tests can substitute stubs.
func NewScriptProfileFetcher(xScript, instagramScript string) *ScriptProfileFetcher {
	return &ScriptProfileFetcher{
		Commands: map[string][]string{
			"x.com":         {"node", xScript},
			"twitter.com":   {"node", xScript},
			"instagram.com": {"node", instagramScript},
		},
		Timeout: defaultFetchTimeout,
	}
}

func (f *ScriptProfileFetcher) commandFor(profileURL string) ([]string, error) {
	parsed, err := url.Parse(profileURL)
	if err != nil {
		return nil, fmt.Errorf("invalid profile url %q: %w", profileURL, err)
	}
	host := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
	command, ok := f.Commands[host]
	if !ok {
		return nil, fmt.Errorf("no count script configured for host %q", host)
	}
	return command, nil
}

func (f *ScriptProfileFetcher) Fetch(ctx context.Context, profileURL string) (*models.ProfileCounts, error) {
	command, err := f.commandFor(profileURL)
	if err != nil {
		return nil, err
	}

	timeout := f.Timeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, command[0], append(command[1:], profileURL)...)
	cmd.Env = os.Environ()
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	counts := parseScriptOutput(stdout.Bytes())
	if counts != nil {
		return counts, nil
	}
	if runErr != nil {
		logger.Error("profile count script failed",
			zap.String("url", profileURL),
			zap.String("stderr", truncate(stderr.String(), 512)),
			zap.Error(runErr))
	}
	// Unusable output is not an error condition for the verifier; it sees
	// success=false and treats the attempt as transient.
	return &models.ProfileCounts{URL: profileURL, Success: false}, nil
}

// parseScriptOutput scans stdout for the first JSON line carrying a url
// field; malformed rows are skipped.
func parseScriptOutput(output []byte) *models.ProfileCounts {
	scanner := bufio.NewScanner(bytes.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), maxScriptOutput)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var payload struct {
			URL       *string  `json:"url"`
			Followers *float64 `json:"followers"`
			Following *float64 `json:"following"`
		}
		if err := json.Unmarshal([]byte(line), &payload); err != nil || payload.URL == nil {
			continue
		}
		counts := &models.ProfileCounts{URL: *payload.URL, Success: true}
		if payload.Followers != nil {
			rounded := int64(math.Round(*payload.Followers))
			counts.Followers = &rounded
		}
		if payload.Following != nil {
			rounded := int64(math.Round(*payload.Following))
			counts.Following = &rounded
		}
		return counts
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

type fetchRequest struct {
	ctx    context.Context
	url    string
	result chan fetchResult
}

type fetchResult struct {
	counts *models.ProfileCounts
	err    error
}

// FetchQueue serializes all profile fetches behind a single consumer: the
// scripts drive one shared browser session, and concurrent navigations
// against it cross-talk. Callers enqueue and wait their turn.
type FetchQueue struct {
	fetcher  services.ProfileCountFetcher
	requests chan fetchRequest
}

// StartFetchQueue launches the single worker goroutine; it drains until
// ctx is cancelled.
func StartFetchQueue(ctx context.Context, fetcher services.ProfileCountFetcher) *FetchQueue {
	q := &FetchQueue{
		fetcher:  fetcher,
		requests: make(chan fetchRequest, 64),
	}
	go q.run(ctx)
	return q
}

func (q *FetchQueue) run(ctx context.Context) {
	logger.Info("profile fetch worker started")
	for {
		select {
		case <-ctx.Done():
			// Fail queued callers instead of leaving them blocked on a
			// result that will never come.
			for {
				select {
				case req := <-q.requests:
					req.result <- fetchResult{err: ctx.Err()}
				default:
					logger.Info("profile fetch worker stopped")
					return
				}
			}
		case req := <-q.requests:
			if req.ctx.Err() != nil {
				req.result <- fetchResult{err: req.ctx.Err()}
				continue
			}
			counts, err := q.fetcher.Fetch(req.ctx, req.url)
			req.result <- fetchResult{counts: counts, err: err}
		}
	}
}

// Fetch implements services.ProfileCountFetcher over the queue.
func (q *FetchQueue) Fetch(ctx context.Context, profileURL string) (*models.ProfileCounts, error) {
	req := fetchRequest{ctx: ctx, url: profileURL, result: make(chan fetchResult, 1)}
	select {
	case q.requests <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case res := <-req.result:
		return res.counts, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
