package mastery

import (
	"fmt"
	"math"
	"testing"

	"github.com/ssat-prep/backend/internal/models"
)

// fakeStore is an in-memory Storage for tests.
type fakeStore struct {
	records map[string]*models.TopicMastery
	failAll bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]*models.TopicMastery)}
}

func key(studentID int64, topic models.Topic) string {
	return fmt.Sprintf("%d/%s", studentID, topic)
}

func (f *fakeStore) GetTopicMastery(studentID int64, topic models.Topic) (*models.TopicMastery, error) {
	if f.failAll {
		return nil, models.ErrStorage
	}
	m, ok := f.records[key(studentID, topic)]
	if !ok {
		return nil, nil
	}
	cp := *m
	cp.Window = append([]bool(nil), m.Window...)
	return &cp, nil
}

func (f *fakeStore) GetAllTopicMastery(studentID int64) ([]models.TopicMastery, error) {
	if f.failAll {
		return nil, models.ErrStorage
	}
	var out []models.TopicMastery
	for _, m := range f.records {
		if m.StudentID == studentID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeStore) UpsertTopicMastery(m *models.TopicMastery) error {
	if f.failAll {
		return models.ErrStorage
	}
	cp := *m
	cp.Window = append([]bool(nil), m.Window...)
	f.records[key(m.StudentID, m.Topic)] = &cp
	return nil
}

func TestRecordAttempt_LazyCreateAtDefaultDifficulty(t *testing.T) {
	store := newFakeStore()
	tracker := NewTracker(store)

	if err := tracker.RecordAttempt(1, models.TopicSynonym, true); err != nil {
		t.Fatalf("record attempt: %v", err)
	}

	m, _ := store.GetTopicMastery(1, models.TopicSynonym)
	if m == nil {
		t.Fatal("mastery row not created")
	}
	if m.Difficulty != 1.0 {
		t.Errorf("default difficulty = %f, want 1.0", m.Difficulty)
	}
	if len(m.Window) != 1 || !m.Window[0] {
		t.Errorf("window = %v, want [true]", m.Window)
	}
	if m.TotalAttempted != 1 || m.TotalCorrect != 1 {
		t.Errorf("totals = %d/%d, want 1/1", m.TotalAttempted, m.TotalCorrect)
	}
}

func TestRecordAttempt_WindowEviction(t *testing.T) {
	store := newFakeStore()
	tracker := NewTracker(store)

	// 50 attempts: first 40 correct, last 10 wrong → 0.80
	for i := 0; i < 40; i++ {
		if err := tracker.RecordAttempt(1, models.TopicArithmetic, true); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < 10; i++ {
		if err := tracker.RecordAttempt(1, models.TopicArithmetic, false); err != nil {
			t.Fatal(err)
		}
	}

	acc, err := tracker.Accuracy(1, models.TopicArithmetic)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(acc-0.80) > 1e-9 {
		t.Errorf("accuracy = %f, want 0.80", acc)
	}

	// One more incorrect evicts the oldest (correct) entry: 39/50 = 0.78
	if err := tracker.RecordAttempt(1, models.TopicArithmetic, false); err != nil {
		t.Fatal(err)
	}
	acc, _ = tracker.Accuracy(1, models.TopicArithmetic)
	if math.Abs(acc-0.78) > 1e-9 {
		t.Errorf("accuracy after eviction = %f, want 0.78", acc)
	}

	m, _ := store.GetTopicMastery(1, models.TopicArithmetic)
	if len(m.Window) != 50 {
		t.Errorf("window length = %d, want 50 (never exceeds capacity)", len(m.Window))
	}
	if m.TotalAttempted != 51 {
		t.Errorf("total attempted = %d, want 51 (totals keep counting past window)", m.TotalAttempted)
	}
}

func TestAccuracy_EmptyWindow(t *testing.T) {
	tracker := NewTracker(newFakeStore())
	acc, err := tracker.Accuracy(1, models.TopicGeometry)
	if err != nil {
		t.Fatal(err)
	}
	if acc != 0 {
		t.Errorf("accuracy with no attempts = %f, want 0", acc)
	}
}

func TestWindowTrend(t *testing.T) {
	tests := []struct {
		name   string
		window []bool
		want   models.Trend
	}{
		{"too short", []bool{true, false, true}, models.TrendStable},
		{"nine entries still stable", make([]bool, 9), models.TrendStable},
		{"improving", append(repeat(false, 10), repeat(true, 10)...), models.TrendImproving},
		{"declining", append(repeat(true, 10), repeat(false, 10)...), models.TrendDeclining},
		{"flat", repeat(true, 20), models.TrendStable},
	}

	for _, tt := range tests {
		if got := WindowTrend(tt.window); got != tt.want {
			t.Errorf("%s: WindowTrend = %s, want %s", tt.name, got, tt.want)
		}
	}
}

func repeat(v bool, n int) []bool {
	out := make([]bool, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestRecordAttempt_StorageFailurePropagates(t *testing.T) {
	store := newFakeStore()
	store.failAll = true
	tracker := NewTracker(store)

	if err := tracker.RecordAttempt(1, models.TopicSynonym, true); err == nil {
		t.Fatal("expected storage error to propagate")
	}
}
