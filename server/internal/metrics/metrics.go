package metrics

import (
	"log/slog"
	"net/http"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"

	"github.com/tallyhq/tally/pkg/types"
	"github.com/tallyhq/tally/server/internal/alerts"
	"github.com/tallyhq/tally/server/internal/store"
)

// Metric names.
const (
	ProjectHealthScore       = "tally_project_health_score"
	ProjectActiveTasks       = "tally_project_active_tasks"
	ProjectOverdueTasks      = "tally_project_overdue_tasks"
	ProjectDueSoonTasks      = "tally_project_due_soon_tasks"
	ProjectCompletedThisWeek = "tally_project_completed_this_week"
	ProjectStale             = "tally_project_stale"
	RollupAgeSeconds         = "tally_rollup_age_seconds"
	AlertsFiring             = "tally_alerts_firing"
)

type projectGauge struct {
	name  string
	help  string
	value func(p types.ProjectSummary) float64
}

var projectGauges = []projectGauge{
	{ProjectHealthScore, "Project health score, 0-100.", func(p types.ProjectSummary) float64 { return p.HealthScore }},
	{ProjectActiveTasks, "Open tasks in the project.", func(p types.ProjectSummary) float64 { return float64(p.ActiveCount) }},
	{ProjectOverdueTasks, "Open tasks past their due date.", func(p types.ProjectSummary) float64 { return float64(p.OverdueCount) }},
	{ProjectDueSoonTasks, "Open tasks due within the due-soon window.", func(p types.ProjectSummary) float64 { return float64(p.DueSoonCount) }},
	{ProjectCompletedThisWeek, "Tasks completed since the start of the week.", func(p types.ProjectSummary) float64 { return float64(p.CompletedThisWeek) }},
	{ProjectStale, "1 when the project has open tasks but no recent activity.", func(p types.ProjectSummary) float64 {
		if p.Stale {
			return 1
		}
		return 0
	}},
}

func gaugeFamily(name, help string) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name: proto.String(name),
		Help: proto.String(help),
		Type: dto.MetricType_GAUGE.Enum(),
	}
}

func gauge(v float64, labels ...string) *dto.Metric {
	m := &dto.Metric{Gauge: &dto.Gauge{Value: proto.Float64(v)}}
	for i := 0; i+1 < len(labels); i += 2 {
		m.Label = append(m.Label, &dto.LabelPair{
			Name:  proto.String(labels[i]),
			Value: proto.String(labels[i+1]),
		})
	}
	return m
}

// Families builds the metric families for the live store entries at now.
// al may be nil, in which case tally_alerts_firing is omitted.
func Families(st *store.Store, al *alerts.Engine, now time.Time) []*dto.MetricFamily {
	entries := st.List()

	fams := make([]*dto.MetricFamily, 0, len(projectGauges)+2)
	for _, g := range projectGauges {
		mf := gaugeFamily(g.name, g.help)
		for _, e := range entries {
			for _, p := range e.Rollup.Projects {
				mf.Metric = append(mf.Metric, gauge(g.value(p),
					"name", p.Name,
					"project", p.ID,
					"source", e.Rollup.SourceID,
				))
			}
		}
		fams = append(fams, mf)
	}

	age := gaugeFamily(RollupAgeSeconds, "Seconds since the source last delivered a rollup.")
	for _, e := range entries {
		age.Metric = append(age.Metric, gauge(e.Age(now).Seconds(), "source", e.Rollup.SourceID))
	}
	fams = append(fams, age)

	if al != nil {
		firing := gaugeFamily(AlertsFiring, "Alerts currently firing.")
		firing.Metric = append(firing.Metric, gauge(float64(al.FiringCount())))
		fams = append(fams, firing)
	}
	return fams
}

// Handler serves GET /metrics in the format negotiated from the Accept header.
func Handler(st *store.Store, al *alerts.Engine) http.Handler {
	return handler{store: st, alerts: al, now: time.Now}
}

type handler struct {
	store  *store.Store
	alerts *alerts.Engine
	now    func() time.Time
}

func (h handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	format := expfmt.Negotiate(r.Header)
	w.Header().Set("Content-Type", string(format))
	enc := expfmt.NewEncoder(w, format)
	for _, mf := range Families(h.store, h.alerts, h.now()) {
		if len(mf.Metric) == 0 {
			continue
		}
		if err := enc.Encode(mf); err != nil {
			slog.Warn("metrics: encode failed", "family", mf.GetName(), "err", err)
			return
		}
	}
}
