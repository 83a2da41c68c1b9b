package streamrelay

import (
	"errors"
	"testing"
	"time"
)

func TestTransportsAreRegistered(t *testing.T) {
	for _, name := range []string{"kafka", "nats", "nats-jetstream", "rabbitmq", "aws", "http", "channel"} {
		if !DefaultTransportRegistry.Has(name) {
			t.Errorf("transport %q is not registered", name)
		}
	}
}

func TestRecordExports(t *testing.T) {
	decoded := Decode("SYMBOL_TICKER_5=AAPL\nno separator\n")
	if decoded["SYMBOL_TICKER_5"] != "AAPL" || len(decoded) != 1 {
		t.Fatalf("unexpected decode result: %#v", decoded)
	}
	if got := FlattenKey("quote.bid(12)"); got != "quote_bid_12" {
		t.Fatalf("FlattenKey() = %q", got)
	}

	rec := Normalize(decoded, Meta{SequenceNumber: 1, PartitionID: "0", Start: time.Now(), End: time.Now()})
	if len(rec.Fields) != len(Schema()) {
		t.Fatalf("expected %d fields, got %d", len(Schema()), len(rec.Fields))
	}
	data, err := Marshal(rec)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var wire map[string]any
	if err := Unmarshal(data, &wire); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if _, ok := wire[MetaKey]; !ok {
		t.Fatalf("missing %s block: %s", MetaKey, data)
	}
}

func TestConfigExports(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.StreamPath != DefaultStreamPath {
		t.Fatalf("default stream path = %q", cfg.StreamPath)
	}
	err := ValidateConfig(&cfg)
	var verr ConfigValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected a validation error for a config without brokers, got %v", err)
	}
	if !errors.Is(ValidateConfig(nil), ErrConfigRequired) {
		t.Fatal("expected ErrConfigRequired for nil config")
	}
}

func TestIDExport(t *testing.T) {
	if a, b := CreateULID(), CreateULID(); a == b || len(a) != 26 {
		t.Fatalf("unexpected ULIDs %q %q", a, b)
	}
}
