package types

import (
	"errors"
	"testing"
)

func makeTask(n int) *Task {
	t := &Task{ID: "t1", RangeStart: 1, RangeEnd: n}
	for i := 0; i < n; i++ {
		t.Segments = append(t.Segments, &SegmentRef{Index: i})
	}
	return t
}

func TestRangeIndices_FullList(t *testing.T) {
	task := makeTask(5)
	got := task.RangeIndices()
	if len(got) != 5 || got[0] != 0 || got[4] != 4 {
		t.Errorf("RangeIndices = %v", got)
	}
	if task.RangeTotal() != 5 {
		t.Errorf("RangeTotal = %d", task.RangeTotal())
	}
}

func TestRangeIndices_Subrange(t *testing.T) {
	task := makeTask(10)
	task.RangeStart = 3
	task.RangeEnd = 6
	got := task.RangeIndices()
	want := []int{2, 3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("RangeIndices = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("RangeIndices = %v, want %v", got, want)
		}
	}
}

func TestRangeIndices_Clamped(t *testing.T) {
	task := makeTask(4)
	task.RangeStart = 0
	task.RangeEnd = 99
	if got := task.RangeTotal(); got != 4 {
		t.Errorf("out-of-bounds range should clamp to list, got %d", got)
	}

	task.RangeStart = 4
	task.RangeEnd = 2
	if got := task.RangeIndices(); got != nil {
		t.Errorf("inverted range should be empty, got %v", got)
	}
}

func TestStatusTransitions(t *testing.T) {
	task := makeTask(3)
	task.SetStatus(1, SegmentInflight)
	if task.Status(1) != SegmentInflight {
		t.Error("status not stored")
	}
	task.SetStatus(1, SegmentFailed)
	task.SetStatus(2, SegmentSuccess)

	if got := task.CountStatus(SegmentFailed); got != 1 {
		t.Errorf("CountStatus(failed) = %d", got)
	}
	failed := task.FailedIndices()
	if len(failed) != 1 || failed[0] != 1 {
		t.Errorf("FailedIndices = %v", failed)
	}
	pending := task.PendingIndices()
	// Everything not successful is pending work, including the failed one.
	if len(pending) != 2 || pending[0] != 0 || pending[1] != 1 {
		t.Errorf("PendingIndices = %v", pending)
	}
}

func TestBumpRetries(t *testing.T) {
	task := makeTask(1)
	if got := task.BumpRetries(0); got != 1 {
		t.Errorf("first bump = %d", got)
	}
	if got := task.BumpRetries(0); got != 2 {
		t.Errorf("second bump = %d", got)
	}
}

func TestPayloadLifecycle(t *testing.T) {
	task := makeTask(3)
	task.StorePayload(2, []byte("c"))
	task.StorePayload(0, []byte("a"))

	if task.PayloadCount() != 2 {
		t.Errorf("PayloadCount = %d", task.PayloadCount())
	}
	idx := task.PayloadIndices()
	if len(idx) != 2 || idx[0] != 0 || idx[1] != 2 {
		t.Errorf("PayloadIndices = %v, want sorted", idx)
	}

	m := task.TakePayloadMap()
	if string(m[0]) != "a" || string(m[2]) != "c" {
		t.Errorf("TakePayloadMap = %v", m)
	}
	if task.PayloadCount() != 0 {
		t.Error("payloads should be gone after TakePayloadMap")
	}
}

func TestSnapshot(t *testing.T) {
	task := makeTask(4)
	task.SetStatus(0, SegmentSuccess)
	task.SetStatus(1, SegmentSuccess)
	task.SetStatus(2, SegmentFailed)

	p := task.Snapshot(PhaseDownloading, "")
	if p.Completed != 2 || p.Failed != 1 || p.Total != 4 {
		t.Errorf("Snapshot = %+v", p)
	}
	if p.Percentage != 50.0 {
		t.Errorf("Percentage = %f", p.Percentage)
	}
	if p.Phase != PhaseDownloading {
		t.Errorf("Phase = %s", p.Phase)
	}
}

func TestSegmentStatusString(t *testing.T) {
	cases := map[SegmentStatus]string{
		SegmentPending:  "pending",
		SegmentInflight: "inflight",
		SegmentSuccess:  "success",
		SegmentFailed:   "failed",
	}
	for st, want := range cases {
		if st.String() != want {
			t.Errorf("%d.String() = %q, want %q", st, st.String(), want)
		}
	}
}

func TestRuntimeConfig_NilSafe(t *testing.T) {
	var r *RuntimeConfig
	if r.GetConcurrency() != DefaultConcurrency {
		t.Error("nil config should yield default concurrency")
	}
	if r.GetMaxRetries() != DefaultMaxRetries {
		t.Error("nil config should yield default retries")
	}
	if r.GetUserAgent() == "" {
		t.Error("nil config should yield a default user agent")
	}
	if r.GetAssumedBitrate() != AssumedBitrate {
		t.Error("nil config should yield default bitrate")
	}
}

func TestRuntimeConfig_Clamping(t *testing.T) {
	r := &RuntimeConfig{Concurrency: 999}
	if r.GetConcurrency() != MaxConcurrency {
		t.Errorf("concurrency should clamp to %d, got %d", MaxConcurrency, r.GetConcurrency())
	}
	r.Concurrency = -3
	if r.GetConcurrency() != DefaultConcurrency {
		t.Errorf("non-positive concurrency should fall back to default, got %d", r.GetConcurrency())
	}
}

func TestRuntimeConfig_RetryBudget(t *testing.T) {
	r := &RuntimeConfig{}
	if r.GetMaxRetries() != DefaultMaxRetries {
		t.Errorf("unset retries should yield default, got %d", r.GetMaxRetries())
	}
	r.MaxRetries = 5
	if r.GetMaxRetries() != 5 {
		t.Errorf("explicit retries should pass through, got %d", r.GetMaxRetries())
	}
	// Negative is the explicit "no retries" sentinel, distinct from unset.
	r.MaxRetries = -1
	if r.GetMaxRetries() != 0 {
		t.Errorf("negative retries should mean zero, got %d", r.GetMaxRetries())
	}
}

func TestErrorTypes(t *testing.T) {
	inner := errors.New("timeout")
	fe := &SegmentFetchError{Index: 4, Attempts: 3, Err: inner}
	if !errors.Is(fe, inner) {
		t.Error("SegmentFetchError should unwrap")
	}
	if IsWriteError(fe) {
		t.Error("fetch error must not classify as write error")
	}

	we := &WriteError{Err: inner}
	if !IsWriteError(we) {
		t.Error("IsWriteError(WriteError) = false")
	}
	if !errors.Is(we, inner) {
		t.Error("WriteError should unwrap")
	}
}
