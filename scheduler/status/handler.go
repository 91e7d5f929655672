package status

import (
	"encoding/json"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/twitter/jobgate/common/stats"
	"github.com/twitter/jobgate/scheduler/domain"
)

// Handler serves the snapshot returned by source as JSON. ?state=RUNNING filters the job list.
func Handler(source func() *domain.StatusSnapshot, stat stats.StatsReceiver) http.Handler {
	if stat == nil {
		stat = stats.NilStatsReceiver()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stat.Counter(stats.StatusRequestCounter).Inc(1)
		if r.Method != http.MethodGet {
			http.Error(w, "GET only", http.StatusMethodNotAllowed)
			return
		}
		snap := source()
		if snap == nil {
			http.Error(w, "no status yet", http.StatusServiceUnavailable)
			return
		}
		if state := r.URL.Query().Get("state"); state != "" {
			filtered := *snap
			filtered.Jobs = nil
			for _, j := range snap.Jobs {
				if j.State.String() == state {
					filtered.Jobs = append(filtered.Jobs, j)
				}
			}
			snap = &filtered
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		enc := json.NewEncoder(w)
		if r.URL.Query().Get("pretty") == "true" {
			enc.SetIndent("", "  ")
		}
		if err := enc.Encode(snap); err != nil {
			log.Errorf("writing status response: %v", err)
		}
	})
}
