package bybit

import (
	"strings"
	"testing"
)

func TestBuildTopics(t *testing.T) {
	topics := BuildTopics([]string{"BTCUSDT", "ETHUSDT"}, 1, true)
	expected := []string{"tickers.BTCUSDT", "kline.1.BTCUSDT", "tickers.ETHUSDT", "kline.1.ETHUSDT"}
	if len(topics) != len(expected) {
		t.Fatalf("topic count mismatch! should be %d but got %d", len(expected), len(topics))
	}
	for i := range expected {
		if topics[i] != expected[i] {
			t.Fatalf("topic mismatch at %d! should be %s but got %s", i, expected[i], topics[i])
		}
	}
}

func TestBuildTopicsTickerOnly(t *testing.T) {
	topics := BuildTopics([]string{"BTCUSDT", "ETHUSDT"}, 5, false)
	if len(topics) != 2 {
		t.Fatalf("topic count mismatch! should be 2 but got %d", len(topics))
	}
	for _, topic := range topics {
		if !strings.HasPrefix(topic, "tickers.") {
			t.Fatalf("unexpected topic %s", topic)
		}
	}
}

func TestPartitionTopicsRespectsBudget(t *testing.T) {
	topics := []string{"aaaa", "bbbb", "cccc", "dddd"}

	// "aaaa bbbb" costs 9, adding "cccc" would cost 14
	groups, err := PartitionTopics(topics, 9)
	if err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("group count mismatch! should be 2 but got %d", len(groups))
	}
	for _, group := range groups {
		if chars := len(strings.Join(group, ",")); chars > 9 {
			t.Fatalf("group exceeds budget: %d chars", chars)
		}
	}
	if groups[0][0] != "aaaa" || groups[1][0] != "cccc" {
		t.Fatalf("order not preserved: %+v", groups)
	}
}

func TestPartitionTopicsSkipsEmpty(t *testing.T) {
	groups, err := PartitionTopics([]string{"", "aaaa", ""}, 100)
	if err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}
	if len(groups) != 1 || len(groups[0]) != 1 {
		t.Fatalf("expected single group with single topic, got %+v", groups)
	}
}

func TestPartitionTopicsOversizeTopic(t *testing.T) {
	if _, err := PartitionTopics([]string{strings.Repeat("x", 10)}, 5); err == nil {
		t.Fatal("oversize topic must error")
	}
}

func TestPartitionTopicsInvalidBudget(t *testing.T) {
	if _, err := PartitionTopics([]string{"aaaa"}, 0); err == nil {
		t.Fatal("non-positive budget must error")
	}
}
