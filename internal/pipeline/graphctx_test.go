package pipeline

import (
	"testing"

	"github.com/warnerco/schematica/internal/graph"
)

func TestInferDirection(t *testing.T) {
	cases := []struct {
		query  string
		entity string
		want   graph.Direction
	}{
		{"what robots depend on the power system", "component:power_system", graph.DirectionIncoming},
		{"what does WRN-00001 depend on", "WRN-00001", graph.DirectionOutgoing},
		{"show everything about the sensor array", "component:sensor_array", graph.DirectionBoth},
	}
	for _, tc := range cases {
		if got := inferDirection(tc.query, tc.entity); got != tc.want {
			t.Errorf("inferDirection(%q, %s) = %s, want %s", tc.query, tc.entity, got, tc.want)
		}
	}
}

func TestShouldResolveGraph(t *testing.T) {
	cases := []struct {
		intent Intent
		query  string
		want   bool
	}{
		{IntentDiagnostic, "why is it failing", true},
		{IntentAnalytics, "how many schematics", true},
		{IntentSearch, "find precision grippers", false},
		{IntentSearch, "grippers compatible with WC-0220", true},
		{IntentLookup, "WRN-00042", false},
	}
	for _, tc := range cases {
		if got := ShouldResolveGraph(tc.intent, tc.query); got != tc.want {
			t.Errorf("ShouldResolveGraph(%s, %q) = %v, want %v", tc.intent, tc.query, got, tc.want)
		}
	}
}
