package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

type stageCollector struct {
	mu     sync.Mutex
	stages map[string]uint64
}

var pipelineCollector = &stageCollector{stages: make(map[string]uint64)}

// ObserveIntentStage records a state machine transition of the intent pipeline.
func ObserveIntentStage(stage string) {
	if stage == "" {
		return
	}
	pipelineCollector.mu.Lock()
	pipelineCollector.stages[stage]++
	pipelineCollector.mu.Unlock()
}

func (c *stageCollector) render() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.stages))
	for key := range c.stages {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var builder strings.Builder
	builder.WriteString("# HELP intentflow_intent_stage_total Total number of intent pipeline stage transitions.\n")
	builder.WriteString("# TYPE intentflow_intent_stage_total counter\n")
	for _, key := range keys {
		builder.WriteString(fmt.Sprintf("intentflow_intent_stage_total{stage=\"%s\"} %d\n",
			escape(key), c.stages[key]))
	}
	return builder.String()
}
