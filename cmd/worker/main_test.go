package main

// TODO: add an integration test that runs mustConsumer against a live
// nsqd, since a unit test can't meaningfully exercise NSQ connection setup.

import (
	"testing"

	"github.com/ridgeline-io/ridgeline/internal/logging"
)

func TestMustConsumerBuildsOnePerTopic(t *testing.T) {
	logger := logging.New("test")

	c1 := mustConsumer("ridgeline.ingest", "workers", logger)
	if c1 == nil {
		t.Fatal("expected a non-nil consumer")
	}

	c2 := mustConsumer("ridgeline.evaluate", "workers", logger)
	if c1 == c2 {
		t.Fatal("expected distinct consumers per topic")
	}
}

func TestConcurrencyIsPositive(t *testing.T) {
	if concurrency <= 0 {
		t.Fatalf("expected positive concurrency, got %d", concurrency)
	}
}
