package report

import (
	"bytes"
	"fmt"
	"sort"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/osbits/fcheck/internal/checks"
	"github.com/osbits/fcheck/internal/runner"
)

// Metrics renders the run as Prometheus text exposition, suitable for the
// node_exporter textfile collector.
func Metrics(res runner.RunResult) ([]byte, error) {
	families := []*dto.MetricFamily{
		gaugeFamily("fcheck_run_success", "Whether the last run passed (1) or failed (0).",
			gauge(boolValue(!res.Failed()))),
		gaugeFamily("fcheck_run_duration_seconds", "Wall time of the last run.",
			gauge(res.Duration().Seconds())),
		gaugeFamily("fcheck_run_completed_timestamp_seconds", "Completion time of the last run.",
			gauge(float64(res.CompletedAt.UnixMilli())/1000)),
	}

	checkSuccess := gaugeFamily("fcheck_check_success", "Outcome of each check: 1 success, 0 failure, -1 disabled.")
	actionDuration := gaugeFamily("fcheck_action_duration_seconds", "Duration of each action.")
	add := func(phase string, c checks.CheckResult) {
		checkSuccess.Metric = append(checkSuccess.Metric, gauge(outcomeValue(c.Result), "phase", phase, "check", c.Name))
		for _, a := range c.Results {
			if a.Result == checks.Disabled {
				continue
			}
			actionDuration.Metric = append(actionDuration.Metric,
				gauge(a.Duration.Seconds(), "phase", phase, "check", c.Name, "action", a.Name, "result", string(a.Result)))
		}
	}
	if res.Setup != nil {
		add("setup", *res.Setup)
	}
	for _, t := range res.Tests {
		add("test", t)
	}
	if res.Teardown != nil {
		add("teardown", *res.Teardown)
	}
	families = append(families, checkSuccess, actionDuration)

	var buf bytes.Buffer
	for _, f := range families {
		if len(f.Metric) == 0 {
			continue
		}
		if _, err := expfmt.MetricFamilyToText(&buf, f); err != nil {
			return nil, fmt.Errorf("encode %s: %w", f.GetName(), err)
		}
	}
	return buf.Bytes(), nil
}

// WriteMetrics writes Metrics(res) to path atomically.
func WriteMetrics(path string, res runner.RunResult) error {
	data, err := Metrics(res)
	if err != nil {
		return err
	}
	return writeFileAtomic(path, data)
}

func gaugeFamily(name, help string, metrics ...*dto.Metric) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   &name,
		Help:   &help,
		Type:   dto.MetricType_GAUGE.Enum(),
		Metric: metrics,
	}
}

func gauge(value float64, labels ...string) *dto.Metric {
	m := &dto.Metric{Gauge: &dto.Gauge{Value: &value}}
	pairs := make([]*dto.LabelPair, 0, len(labels)/2)
	for i := 0; i+1 < len(labels); i += 2 {
		name, val := labels[i], labels[i+1]
		pairs = append(pairs, &dto.LabelPair{Name: &name, Value: &val})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].GetName() < pairs[j].GetName() })
	m.Label = pairs
	return m
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func outcomeValue(o checks.Outcome) float64 {
	switch o {
	case checks.Success:
		return 1
	case checks.Disabled:
		return -1
	default:
		return 0
	}
}
