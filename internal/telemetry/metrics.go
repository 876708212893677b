package telemetry

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

var defaultRegistry = newRegistry()

var durationBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60}

type registry struct {
	mu                  sync.Mutex
	toolCalls           map[string]map[string]int64
	toolDurationBuckets map[string][]int64
	llmCalls            map[string]map[string]int64
	llmTokens           map[string]int64
	trackerCalls        map[string]map[string]int64
	trackerAPIErrors    map[string]map[int]int64
}

func newRegistry() *registry {
	return &registry{
		toolCalls:           make(map[string]map[string]int64),
		toolDurationBuckets: make(map[string][]int64),
		llmCalls:            make(map[string]map[string]int64),
		llmTokens:           make(map[string]int64),
		trackerCalls:        make(map[string]map[string]int64),
		trackerAPIErrors:    make(map[string]map[int]int64),
	}
}

func inc(m map[string]map[string]int64, outer, inner string) {
	if _, ok := m[outer]; !ok {
		m[outer] = make(map[string]int64)
	}
	m[outer][inner]++
}

// IncToolCall counts one dispatched tool call by outcome status.
func IncToolCall(toolName, status string) {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	inc(defaultRegistry.toolCalls, toolName, status)
}

func ObserveToolDuration(toolName string, d time.Duration) {
	sec := d.Seconds()

	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	if _, ok := defaultRegistry.toolDurationBuckets[toolName]; !ok {
		defaultRegistry.toolDurationBuckets[toolName] = make([]int64, len(durationBuckets)+1)
	}
	idx := len(durationBuckets)
	for i, b := range durationBuckets {
		if sec <= b {
			idx = i
			break
		}
	}
	defaultRegistry.toolDurationBuckets[toolName][idx]++
}

// IncLLMCall counts one gateway call. Outcome is ok, error or unsupported.
func IncLLMCall(provider, outcome string) {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	inc(defaultRegistry.llmCalls, provider, outcome)
}

func AddLLMTokens(provider string, total int64) {
	if total <= 0 {
		return
	}
	defaultRegistry.mu.Lock()
	defaultRegistry.llmTokens[provider] += total
	defaultRegistry.mu.Unlock()
}

// IncTrackerCall counts one tracker gateway operation by mode (mock or real).
func IncTrackerCall(operation, mode string) {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	inc(defaultRegistry.trackerCalls, operation, mode)
}

func IncTrackerAPIError(operation string, statusCode int) {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	if _, ok := defaultRegistry.trackerAPIErrors[operation]; !ok {
		defaultRegistry.trackerAPIErrors[operation] = make(map[int]int64)
	}
	defaultRegistry.trackerAPIErrors[operation][statusCode]++
}

func RenderPrometheus() string {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()

	var sb strings.Builder

	sb.WriteString("# TYPE orchestrai_tool_calls_total counter\n")
	writeNested(&sb, "orchestrai_tool_calls_total", "tool", "status", defaultRegistry.toolCalls)

	sb.WriteString("# TYPE orchestrai_tool_duration_seconds_bucket counter\n")
	bucketLabels := []string{"0.1", "0.5", "1", "2", "5", "10", "30", "60", "+Inf"}
	for _, tool := range sortedKeys(defaultRegistry.toolDurationBuckets) {
		counts := defaultRegistry.toolDurationBuckets[tool]
		for i, v := range counts {
			sb.WriteString(fmt.Sprintf("orchestrai_tool_duration_seconds_bucket{tool=\"%s\",le=\"%s\"} %d\n", tool, bucketLabels[i], v))
		}
	}

	sb.WriteString("# TYPE orchestrai_llm_calls_total counter\n")
	writeNested(&sb, "orchestrai_llm_calls_total", "provider", "outcome", defaultRegistry.llmCalls)

	sb.WriteString("# TYPE orchestrai_llm_tokens_total counter\n")
	for _, provider := range sortedKeys(defaultRegistry.llmTokens) {
		sb.WriteString(fmt.Sprintf("orchestrai_llm_tokens_total{provider=\"%s\"} %d\n", provider, defaultRegistry.llmTokens[provider]))
	}

	sb.WriteString("# TYPE orchestrai_tracker_calls_total counter\n")
	writeNested(&sb, "orchestrai_tracker_calls_total", "operation", "mode", defaultRegistry.trackerCalls)

	sb.WriteString("# TYPE orchestrai_tracker_api_errors_total counter\n")
	for _, op := range sortedKeys(defaultRegistry.trackerAPIErrors) {
		statusCodes := make([]int, 0, len(defaultRegistry.trackerAPIErrors[op]))
		for sc := range defaultRegistry.trackerAPIErrors[op] {
			statusCodes = append(statusCodes, sc)
		}
		sort.Ints(statusCodes)
		for _, sc := range statusCodes {
			sb.WriteString(fmt.Sprintf("orchestrai_tracker_api_errors_total{operation=\"%s\",status_code=\"%d\"} %d\n", op, sc, defaultRegistry.trackerAPIErrors[op][sc]))
		}
	}

	return sb.String()
}

func writeNested(sb *strings.Builder, metric, outerLabel, innerLabel string, m map[string]map[string]int64) {
	for _, outer := range sortedKeys(m) {
		for _, inner := range sortedKeys(m[outer]) {
			sb.WriteString(fmt.Sprintf("%s{%s=\"%s\",%s=\"%s\"} %d\n", metric, outerLabel, outer, innerLabel, inner, m[outer][inner]))
		}
	}
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
