package ai_test

import (
	"testing"

	"github.com/zhouzirui/mentor-relay/backend/internal/service/ai"
)

func TestAccumulatorConcatenatesInOrder(t *testing.T) {
	var acc ai.Accumulator
	var partial string
	for _, chunk := range []string{"Sta", "rt ", "fast."} {
		partial = acc.Append(chunk)
	}

	if partial != "Start fast." || acc.String() != "Start fast." {
		t.Fatalf("unexpected accumulated text: %q / %q", partial, acc.String())
	}
	if acc.Chunks() != 3 {
		t.Fatalf("unexpected chunk count: %d", acc.Chunks())
	}
}
