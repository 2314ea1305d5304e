package submit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Zerr0-C00L/YTS-RD/pkg/debrid"
	"github.com/Zerr0-C00L/YTS-RD/pkg/identifier"
	"github.com/Zerr0-C00L/YTS-RD/pkg/retry"
)

// scripted response for one AddMagnet call.
type addResult struct {
	id  string
	err error
}

// fakeAPI replays scripted addMagnet and selectFiles responses.
type fakeAPI struct {
	addResults    []addResult
	addCalls      int
	selectErrs    []error
	selectCalls   int
	lastMagnet    string
	lastTorrentID string
}

func (f *fakeAPI) AddMagnet(ctx context.Context, magnet string) (string, error) {
	f.lastMagnet = magnet
	i := f.addCalls
	f.addCalls++
	if i >= len(f.addResults) {
		return "", errors.New("unscripted AddMagnet call")
	}
	return f.addResults[i].id, f.addResults[i].err
}

func (f *fakeAPI) SelectAllFiles(ctx context.Context, torrentID string) error {
	f.lastTorrentID = torrentID
	i := f.selectCalls
	f.selectCalls++
	if i >= len(f.selectErrs) {
		return nil
	}
	return f.selectErrs[i]
}

type fakeClearer struct {
	calls int
	err   error
}

func (f *fakeClearer) ClearActive(ctx context.Context) (int, error) {
	f.calls++
	return 3, f.err
}

type fakeLog struct {
	failed []identifier.Identifier
}

func (f *fakeLog) AppendFailed(id identifier.Identifier) error {
	f.failed = append(f.failed, id)
	return nil
}

// newTestWorker builds a worker with a recording sleep.
func newTestWorker(api *fakeAPI, clearer *fakeClearer, log *fakeLog, slept *[]time.Duration) *Worker {
	return NewWorker(api, clearer, log, Config{
		RateLimitRetry: retry.RateLimit(),
		ItemDelay:      1 * time.Second,
		Sleep: func(ctx context.Context, d time.Duration) error {
			*slept = append(*slept, d)
			return ctx.Err()
		},
	})
}

func capacityErr() error {
	return &debrid.APIError{Code: debrid.CodeCapacityExceeded, Message: "too_many_active_downloads", HTTPStatus: 403}
}

func rateLimitErr() error {
	return &debrid.APIError{Code: debrid.CodeRateLimited, Message: "too_many_requests", HTTPStatus: 429}
}

func TestSubmit_Added(t *testing.T) {
	api := &fakeAPI{addResults: []addResult{{id: "T1"}}}
	clearer := &fakeClearer{}
	log := &fakeLog{}
	var slept []time.Duration

	outcome, err := newTestWorker(api, clearer, log, &slept).
		Submit(context.Background(), "deadbeef")

	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if outcome != OutcomeAdded {
		t.Errorf("outcome = %q, want added", outcome)
	}
	if api.lastMagnet != debrid.BuildMagnet("deadbeef", "") {
		t.Errorf("magnet = %q", api.lastMagnet)
	}
	if api.selectCalls != 1 || api.lastTorrentID != "T1" {
		t.Errorf("selectFiles calls = %d torrent = %q, want 1 call for T1", api.selectCalls, api.lastTorrentID)
	}
	if clearer.calls != 0 {
		t.Errorf("clearer calls = %d, want 0", clearer.calls)
	}
	// Only the inter-item delay.
	if len(slept) != 1 || slept[0] != 1*time.Second {
		t.Errorf("slept = %v, want [1s]", slept)
	}
}

func TestSubmit_CapacityClearThenPermanentFailure(t *testing.T) {
	// First submit hits code 21; the retried submit returns no id.
	api := &fakeAPI{addResults: []addResult{
		{err: capacityErr()},
		{err: debrid.ErrNoTorrentID},
	}}
	clearer := &fakeClearer{}
	log := &fakeLog{}
	var slept []time.Duration

	outcome, err := newTestWorker(api, clearer, log, &slept).
		Submit(context.Background(), "cafe01")

	if outcome != OutcomePermanentlyFailed {
		t.Fatalf("outcome = %q, want permanently_failed", outcome)
	}
	if !errors.Is(err, debrid.ErrNoTorrentID) {
		t.Errorf("err = %v, want ErrNoTorrentID", err)
	}
	if clearer.calls != 1 {
		t.Errorf("clearer calls = %d, want exactly 1", clearer.calls)
	}
	if api.addCalls != 2 {
		t.Errorf("addMagnet calls = %d, want 2 (original + single retry)", api.addCalls)
	}
	if len(log.failed) != 1 || log.failed[0] != "cafe01" {
		t.Errorf("failure log = %v, want [cafe01]", log.failed)
	}
}

func TestSubmit_CapacityClearThenSuccess(t *testing.T) {
	api := &fakeAPI{addResults: []addResult{
		{err: capacityErr()},
		{id: "T9"},
	}}
	clearer := &fakeClearer{}
	log := &fakeLog{}
	var slept []time.Duration

	outcome, err := newTestWorker(api, clearer, log, &slept).
		Submit(context.Background(), "cafe02")

	if err != nil || outcome != OutcomeAdded {
		t.Fatalf("outcome = %q err = %v, want added", outcome, err)
	}
	if clearer.calls != 1 {
		t.Errorf("clearer calls = %d, want 1", clearer.calls)
	}
	if len(log.failed) != 0 {
		t.Errorf("failure log = %v, want empty", log.failed)
	}
}

func TestSubmit_RateLimitedThriceThenAdded(t *testing.T) {
	api := &fakeAPI{addResults: []addResult{
		{err: rateLimitErr()},
		{err: rateLimitErr()},
		{err: rateLimitErr()},
		{id: "T2"},
	}}
	clearer := &fakeClearer{}
	log := &fakeLog{}
	var slept []time.Duration

	outcome, err := newTestWorker(api, clearer, log, &slept).
		Submit(context.Background(), "beef03")

	if err != nil || outcome != OutcomeAdded {
		t.Fatalf("outcome = %q err = %v, want added", outcome, err)
	}
	if api.addCalls != 4 {
		t.Errorf("addMagnet calls = %d, want 4", api.addCalls)
	}

	// 3 cooldowns of 60s, then the 1s inter-item delay.
	var cooldowns int
	for _, d := range slept {
		if d == 60*time.Second {
			cooldowns++
		}
	}
	if cooldowns != 3 {
		t.Errorf("60s cooldowns = %d, want 3 (slept: %v)", cooldowns, slept)
	}
	if slept[len(slept)-1] != 1*time.Second {
		t.Errorf("last sleep = %v, want trailing 1s item delay", slept[len(slept)-1])
	}
}

func TestSubmit_NoIDNoCodeIsPermanent(t *testing.T) {
	api := &fakeAPI{addResults: []addResult{{err: debrid.ErrNoTorrentID}}}
	clearer := &fakeClearer{}
	log := &fakeLog{}
	var slept []time.Duration

	outcome, err := newTestWorker(api, clearer, log, &slept).
		Submit(context.Background(), "dead04")

	if outcome != OutcomePermanentlyFailed {
		t.Fatalf("outcome = %q, want permanently_failed", outcome)
	}
	if !errors.Is(err, debrid.ErrNoTorrentID) {
		t.Errorf("err = %v", err)
	}
	if clearer.calls != 0 {
		t.Errorf("clearer calls = %d, want 0", clearer.calls)
	}
	if len(log.failed) != 1 {
		t.Errorf("failure log = %v, want 1 entry", log.failed)
	}
}

func TestSubmit_ActivationFailureIsSoft(t *testing.T) {
	api := &fakeAPI{
		addResults: []addResult{{id: "T5"}},
		selectErrs: []error{errors.New("select failed")},
	}
	clearer := &fakeClearer{}
	log := &fakeLog{}
	var slept []time.Duration

	outcome, err := newTestWorker(api, clearer, log, &slept).
		Submit(context.Background(), "face05")

	if err != nil {
		t.Fatalf("Submit() error = %v, activation failure must not propagate", err)
	}
	if outcome != OutcomeActivationFailed {
		t.Errorf("outcome = %q, want activation_failed", outcome)
	}
	if len(log.failed) != 0 {
		t.Errorf("failure log = %v, soft failures are not recorded", log.failed)
	}
}

func TestSubmit_ActivationCapacityClearRetriesOnce(t *testing.T) {
	api := &fakeAPI{
		addResults: []addResult{{id: "T6"}},
		selectErrs: []error{capacityErr(), nil},
	}
	clearer := &fakeClearer{}
	log := &fakeLog{}
	var slept []time.Duration

	outcome, err := newTestWorker(api, clearer, log, &slept).
		Submit(context.Background(), "feed06")

	if err != nil || outcome != OutcomeAdded {
		t.Fatalf("outcome = %q err = %v, want added after cleared activation", outcome, err)
	}
	if clearer.calls != 1 {
		t.Errorf("clearer calls = %d, want 1", clearer.calls)
	}
	if api.selectCalls != 2 {
		t.Errorf("selectFiles calls = %d, want 2", api.selectCalls)
	}
}

func TestSubmit_RateLimitCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	api := &fakeAPI{addResults: []addResult{
		{err: rateLimitErr()},
		{id: "never-reached"},
	}}
	clearer := &fakeClearer{}
	log := &fakeLog{}

	worker := NewWorker(api, clearer, log, Config{
		RateLimitRetry: retry.RateLimit(),
		ItemDelay:      1 * time.Second,
		Sleep: func(ctx context.Context, d time.Duration) error {
			cancel()
			return ctx.Err()
		},
	})

	outcome, err := worker.Submit(ctx, "0ff07")

	if outcome != OutcomeSkipped {
		t.Errorf("outcome = %q, want skipped on cancellation", outcome)
	}
	if err == nil {
		t.Error("Submit() err = nil, want cancellation error")
	}
	if api.addCalls != 1 {
		t.Errorf("addMagnet calls = %d, want 1 before cancellation", api.addCalls)
	}
	if len(log.failed) != 0 {
		t.Errorf("failure log = %v, cancellation is not a permanent failure", log.failed)
	}
}

func TestSubmit_DeadlineExpiryNotPermanent(t *testing.T) {
	// The deadline expires mid-request; the item counts as interrupted,
	// not failed, and must stay out of the failure log.
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	api := &fakeAPI{addResults: []addResult{{err: context.DeadlineExceeded}}}
	clearer := &fakeClearer{}
	log := &fakeLog{}
	var slept []time.Duration

	outcome, err := newTestWorker(api, clearer, log, &slept).
		Submit(ctx, "dead08")

	if outcome != OutcomeSkipped {
		t.Errorf("outcome = %q, want skipped on expired deadline", outcome)
	}
	if err == nil {
		t.Error("Submit() err = nil, want the interruption error")
	}
	if len(log.failed) != 0 {
		t.Errorf("failure log = %v, deadline expiry is not a permanent failure", log.failed)
	}
}

func TestSubmit_EmptyHashSkipped(t *testing.T) {
	api := &fakeAPI{}
	var slept []time.Duration

	outcome, err := newTestWorker(api, &fakeClearer{}, &fakeLog{}, &slept).
		Submit(context.Background(), "")

	if err != nil || outcome != OutcomeSkipped {
		t.Fatalf("outcome = %q err = %v, want skipped", outcome, err)
	}
	if api.addCalls != 0 {
		t.Errorf("addMagnet calls = %d, want 0", api.addCalls)
	}
}
