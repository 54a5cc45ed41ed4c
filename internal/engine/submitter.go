package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/tos-network/tos-miner/internal/util"
)

// Submission retry shape is modeled on the pool's webhook-notification
// backoff: a fixed base delay, doubling per attempt, capped at a visible
// maximum, giving up after a bounded number of attempts.
const (
	submitMaxRetries = 3
	submitBaseDelay  = 2 * time.Second
	submitMaxDelay   = 30 * time.Second
)

// SubmitResponse is the pool's acknowledgement of a nonce submission.
type SubmitResponse struct {
	Result       string `json:"result"`
	Deadline     uint64 `json:"deadline,omitempty"`
	ErrorCode    int    `json:"errorCode,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// Submitter sends admitted deadlines to the pool, retrying transient
// failures with bounded backoff and reporting outcomes back onto BlockData.
type Submitter struct {
	client    *http.Client
	submitURL string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSubmitter creates a submitter posting to submitURL.
func NewSubmitter(submitURL string, timeout time.Duration) *Submitter {
	ctx, cancel := context.WithCancel(context.Background())
	return &Submitter{
		client:    &http.Client{Timeout: timeout},
		submitURL: submitURL,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Submit fires a one-shot task for an admitted deadline. It does not block
// the caller; the task runs to completion (or exhausts retries) in its own
// goroutine. At most one submit task runs per handle, since the arbiter
// only returns a handle when a deadline improves on the prior best.
func (s *Submitter) Submit(h *SubmissionHandle) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(h)
	}()
}

func (s *Submitter) run(h *SubmissionHandle) {
	delay := submitBaseDelay
	for attempt := 1; attempt <= submitMaxRetries; attempt++ {
		confirmed, permanent, err := s.post(h.Deadline)
		if err == nil && confirmed {
			h.Block.recordSent(h.Deadline)
			h.Block.recordConfirmed(h.Deadline)
			util.Infof("deadline %d confirmed for account %d at height %d",
				h.Deadline.Value, h.Deadline.AccountID, h.Deadline.Height)
			return
		}

		if permanent {
			util.Warnf("submission for account %d at height %d permanently failed: %v",
				h.Deadline.AccountID, h.Deadline.Height, err)
			return
		}

		if attempt == submitMaxRetries {
			util.Warnf("submission for account %d at height %d gave up after %d attempts: %v",
				h.Deadline.AccountID, h.Deadline.Height, attempt, err)
			return
		}

		util.Debugf("submission attempt %d for account %d failed, retrying in %s: %v",
			attempt, h.Deadline.AccountID, delay, err)

		select {
		case <-time.After(delay):
		case <-s.ctx.Done():
			return
		}

		delay *= 2
		if delay > submitMaxDelay {
			delay = submitMaxDelay
		}
	}
}

// post sends one submission attempt. permanent=true means retrying would
// not help (e.g. a wrong-block response); confirmed=true means the pool
// accepted the deadline.
func (s *Submitter) post(d Deadline) (confirmed bool, permanent bool, err error) {
	body, err := json.Marshal(map[string]interface{}{
		"accountId": d.AccountID,
		"nonce":     d.Nonce,
		"deadline":  d.Value,
		"height":    d.Height,
	})
	if err != nil {
		return false, true, fmt.Errorf("encode submission: %w", err)
	}

	req, err := http.NewRequestWithContext(s.ctx, http.MethodPost, s.submitURL, bytes.NewReader(body))
	if err != nil {
		return false, true, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return false, false, fmt.Errorf("transport error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadRequest {
		// Wrong-block / malformed submission: won't succeed on retry.
		return false, true, fmt.Errorf("pool rejected submission: status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return false, false, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var sr SubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return false, false, fmt.Errorf("decode response: %w", err)
	}
	if sr.ErrorCode != 0 {
		return false, true, fmt.Errorf("pool error %d: %s", sr.ErrorCode, sr.ErrorMessage)
	}

	return true, false, nil
}

// Stop cancels in-flight submission retries and waits for all tasks to
// return.
func (s *Submitter) Stop() {
	s.cancel()
	s.wg.Wait()
}
