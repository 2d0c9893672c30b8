package harness

import (
	"fmt"
	"slices"
	"strings"
)

// runAssertions evaluates every scenario assertion against the result,
// accumulating failures instead of stopping at the first one.
func runAssertions(scenario *Scenario, result *Result) {
	for i, a := range scenario.Assertions {
		switch a.Type {
		case AssertOpContains:
			assertOpContains(i, a, result)
		case AssertOpOrder:
			assertOpOrder(i, a, result)
		case AssertOpCount:
			assertOpCount(i, a, result)
		case AssertGraphNodes:
			assertGraphNodes(i, a, result)
		case AssertGraphEdges:
			assertGraphEdges(i, a, result)
		}
	}
}

func assertOpContains(index int, a Assertion, result *Result) {
	for _, op := range result.Ops {
		if strings.Contains(op, a.Op) {
			return
		}
	}
	result.AddError(fmt.Sprintf("assertions[%d]: no operation contains %q", index, a.Op))
}

// assertOpOrder checks the ops appear in the log in the given relative
// order. Intervening operations are allowed.
func assertOpOrder(index int, a Assertion, result *Result) {
	next := 0
	for _, op := range result.Ops {
		if next < len(a.Ops) && strings.Contains(op, a.Ops[next]) {
			next++
		}
	}
	if next != len(a.Ops) {
		result.AddError(fmt.Sprintf("assertions[%d]: operation order broken at %q", index, a.Ops[next]))
	}
}

func assertOpCount(index int, a Assertion, result *Result) {
	count := 0
	for _, op := range result.Ops {
		if strings.Contains(op, a.Op) {
			count++
		}
	}
	if count != a.Count {
		result.AddError(fmt.Sprintf("assertions[%d]: %q appears %d time(s), want %d",
			index, a.Op, count, a.Count))
	}
}

func assertGraphNodes(index int, a Assertion, result *Result) {
	var got []string
	switch a.Kind {
	case "service":
		got = result.State.Services
	case "instance":
		got = result.State.Instances
	default:
		result.AddError(fmt.Sprintf("assertions[%d]: unknown node kind %q", index, a.Kind))
		return
	}
	want := append([]string(nil), a.Keys...)
	slices.Sort(want)
	if !slices.Equal(got, want) {
		result.AddError(fmt.Sprintf("assertions[%d]: %s nodes %v, want %v", index, a.Kind, got, want))
	}
}

func assertGraphEdges(index int, a Assertion, result *Result) {
	got := result.State.Edges[a.Kind]
	want := append([]string(nil), a.Edges...)
	slices.Sort(want)
	if !slices.Equal(got, want) {
		result.AddError(fmt.Sprintf("assertions[%d]: %s edges %v, want %v", index, a.Kind, got, want))
	}
}
