package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cascadeDeletes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smartscore_cascade_deletes_total",
		Help: "Cascade deletions by entity and outcome.",
	}, []string{"entity", "result"})

	importRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smartscore_import_rows_total",
		Help: "CSV rows processed by bulk imports, by kind and outcome.",
	}, []string{"kind", "result"})

	examSubmissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smartscore_exam_submissions_total",
		Help: "Exam submissions by outcome.",
	}, []string{"result"})
)

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return KindOf(err).String()
}
