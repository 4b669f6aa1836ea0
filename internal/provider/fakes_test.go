package provider

import (
	"context"
	"fmt"
	"time"
)

// testClock is a mutable time source injected into BackoffSchedule so
// tests control elapsed time deterministically instead of sleeping.
type testClock struct{ t time.Time }

func (c *testClock) now() time.Time { return c.t }

func (c *testClock) advance(d time.Duration) { c.t = c.t.Add(d) }

// newTestBackoff returns a BackoffSchedule with deterministic time and
// jitter (fixed at the midpoint of [JitterMin,JitterMax]), plus the clock
// controlling it.
func newTestBackoff(start time.Time) (*BackoffSchedule, *testClock) {
	c := &testClock{t: start}
	b := NewBackoffSchedule()
	b.now = c.now
	b.randFloat = func() float64 { return 0.5 }

	return b, c
}

// fastBackoff returns a BackoffSchedule with millisecond-scale startup
// steps and exponential bounds, real wall-clock time, and fixed jitter.
// Used by engine tests that exercise InitialLoad's real Sleep calls, where
// a frozen testClock would never let the deadline elapse.
func fastBackoff() *BackoffSchedule {
	b := NewBackoffSchedule()
	b.StartupGrace = 150 * time.Millisecond
	b.StartupSteps = []time.Duration{5 * time.Millisecond, 10 * time.Millisecond, 20 * time.Millisecond}
	b.Min = 5 * time.Millisecond
	b.Max = 40 * time.Millisecond
	b.randFloat = func() float64 { return 0.5 }

	return b
}

// fakeClient is a hand-rolled RemoteClient test double over an in-memory
// settings table, favoring hand-written fakes over a mocking framework.
type fakeClient struct {
	endpoint string
	settings map[KeyLabelID]Setting
	// failTimes, when > 0, makes the next N calls (of any method) fail
	// with failErr, decrementing on each call.
	failTimes int
	failErr   error
	snapshots map[string]Snapshot
	calls     int
}

func newFakeClient(endpoint string) *fakeClient {
	return &fakeClient{
		endpoint:  endpoint,
		settings:  make(map[KeyLabelID]Setting),
		snapshots: make(map[string]Snapshot),
	}
}

func (f *fakeClient) put(s Setting) {
	f.settings[KeyLabelID{Key: s.Key, Label: s.Label}] = s
}

func (f *fakeClient) remove(key, label string) {
	delete(f.settings, KeyLabelID{Key: key, Label: label})
}

func (f *fakeClient) maybeFail() error {
	f.calls++

	if f.failTimes > 0 {
		f.failTimes--

		return f.failErr
	}

	return nil
}

func (f *fakeClient) List(_ context.Context, sel Selector) ([]Setting, error) {
	if err := f.maybeFail(); err != nil {
		return nil, err
	}

	var out []Setting

	for id, s := range f.settings {
		if sel.LabelFilter != "" && id.Label != sel.LabelFilter {
			continue
		}

		if sel.KeyFilter != "" && !matchesPattern(id.Key, sel.KeyFilter) {
			continue
		}

		out = append(out, s)
	}

	return out, nil
}

func (f *fakeClient) ListSnapshot(_ context.Context, name string) ([]Setting, error) {
	if err := f.maybeFail(); err != nil {
		return nil, err
	}

	var out []Setting

	for _, s := range f.settings {
		out = append(out, s)
	}

	_ = name

	return out, nil
}

func (f *fakeClient) GetSnapshot(_ context.Context, name string) (Snapshot, error) {
	if err := f.maybeFail(); err != nil {
		return Snapshot{}, err
	}

	snap, ok := f.snapshots[name]
	if !ok {
		return Snapshot{}, &RemoteError{StatusCode: 404, Message: "snapshot not found", Err: ErrNotFound}
	}

	return snap, nil
}

func (f *fakeClient) Get(_ context.Context, key, label string) (Setting, error) {
	if err := f.maybeFail(); err != nil {
		return Setting{}, err
	}

	s, ok := f.settings[KeyLabelID{Key: key, Label: label}]
	if !ok {
		return Setting{}, &RemoteError{StatusCode: 404, Message: "not found", Err: ErrNotFound}
	}

	return s, nil
}

func (f *fakeClient) GetChange(_ context.Context, known Setting) (ChangeRecord, error) {
	if err := f.maybeFail(); err != nil {
		return ChangeRecord{}, err
	}

	s, ok := f.settings[KeyLabelID{Key: known.Key, Label: known.Label}]
	if !ok {
		return ChangeRecord{Kind: ChangeDeleted, Key: known.Key, Label: known.Label}, nil
	}

	if s.ETag == known.ETag {
		return ChangeRecord{Kind: ChangeNone, Key: known.Key, Label: known.Label}, nil
	}

	sc := s

	return ChangeRecord{Kind: ChangeModified, Key: known.Key, Label: known.Label, Current: &sc}, nil
}

// transientErr builds a RemoteError carrying ErrTransient, the error
// fakeClient.failTimes/failErr use to simulate HTTP 503s.
func transientErr() error {
	return &RemoteError{StatusCode: 503, Message: "service unavailable", Err: ErrTransient}
}

func authErr() error {
	return &RemoteError{StatusCode: 401, Message: "unauthorized", Err: ErrAuth}
}

// fakeFactory builds a ClientFactory over a fixed endpoint->client table.
func fakeFactory(clients map[string]*fakeClient) ClientFactory {
	return func(endpoint string) RemoteClient {
		c, ok := clients[endpoint]
		if !ok {
			panic(fmt.Sprintf("fakeFactory: no client registered for endpoint %q", endpoint))
		}

		return c
	}
}

// strPtr returns a pointer to s, a small helper for Watcher/label literals.
func strPtr(s string) *string { return &s }

// durationPtr returns a pointer to d, for PushNotification.MaxDelay
// literals that must distinguish an explicit value from absent.
func durationPtr(d time.Duration) *time.Duration { return &d }
