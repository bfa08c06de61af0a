package notifications

import (
	"errors"
	"testing"
)

func TestSummarizeOutcomes_AnySuccessDelivers(t *testing.T) {
	outcomes := []tokenOutcome{
		{tokenId: 1, pushId: "ticket-1"},
		{tokenId: 2, err: errors.New("gateway timeout")},
	}

	result, err := summarizeOutcomes(outcomes)
	if err != nil {
		t.Fatalf("one success must mean delivery succeeded, got %v", err)
	}
	if result.SuccessCount != 1 || result.FailureCount != 1 {
		t.Fatalf("counts = %d/%d, want 1/1", result.SuccessCount, result.FailureCount)
	}
	if len(result.PushIds) != 1 || result.PushIds[0] != "ticket-1" {
		t.Fatalf("push ids = %v, want [ticket-1]", result.PushIds)
	}
}

func TestSummarizeOutcomes_AllFailuresIsRetryable(t *testing.T) {
	cause := errors.New("gateway timeout")
	outcomes := []tokenOutcome{
		{tokenId: 1, err: cause},
		{tokenId: 2, err: errors.New("another failure")},
	}

	result, err := summarizeOutcomes(outcomes)
	if err == nil {
		t.Fatal("zero successes must be an error")
	}
	// The first failure is what bubbles up for logging and backoff.
	if !errors.Is(err, cause) {
		t.Errorf("err = %v, want the first failure", err)
	}
	if result.SuccessCount != 0 || result.FailureCount != 2 {
		t.Errorf("counts = %d/%d, want 0/2", result.SuccessCount, result.FailureCount)
	}
}

func TestSummarizeOutcomes_EmptyMeansNoValidTokens(t *testing.T) {
	_, err := summarizeOutcomes(nil)
	if !errors.Is(err, ErrNoValidTokens) {
		t.Fatalf("err = %v, want ErrNoValidTokens", err)
	}
}
