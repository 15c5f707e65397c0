package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/zhouzirui/mentor-relay/backend/internal/analysis/failure"
	"github.com/zhouzirui/mentor-relay/backend/internal/store"
)

func TestFailureClassifierIgnoresLocalStoreNames(t *testing.T) {
	sqlite, err := store.OpenSQLite(filepath.Join(t.TempDir(), "relay.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = sqlite.Close(context.Background()) })

	tests := []struct {
		name string
		st   store.Store
		raw  string
	}{
		{"memory", store.NewMemory(), "rpc error: code = Internal desc = model server ran out of memory"},
		{"sqlite", sqlite, "sqlite extension crashed the model"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := failureClassifier(tt.st)
			if got := c.Classify(tt.raw); got != failure.UnknownServiceFailure {
				t.Fatalf("expected %s, got %s", failure.UnknownServiceFailure, got)
			}
			if got := c.Classify("supabase connection reset"); got != failure.NetworkError {
				t.Fatalf("expected backend keyword to stay a network error, got %s", got)
			}
		})
	}
}

func TestFailureClassifierMatchesRemoteStoreName(t *testing.T) {
	c := failureClassifier(&store.Mongo{})
	if got := c.Classify("mongo: server selection timeout"); got != failure.NetworkError {
		t.Fatalf("expected %s, got %s", failure.NetworkError, got)
	}
}
