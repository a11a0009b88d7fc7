package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// 全局 Registry，API 层统一暴露
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		QueryTotal, QueryDuration,
		RetrievalHits, RetrievalFailTotal,
		LLMDuration, LLMFailTotal,
		CaseSaveTotal, ActiveSessions,
	)
}

// QueryTotal 查询总数（按路由与结果）
var QueryTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tcmcbr_query_total",
		Help: "查询总数（按路由与结果）",
	},
	[]string{"route", "status"}, // anonymous | personal; ok | error
)

// QueryDuration 查询耗时（秒）
var QueryDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "tcmcbr_query_duration_seconds",
		Help:    "查询耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"route"},
)

// RetrievalHits 各集合检索命中数
var RetrievalHits = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "tcmcbr_retrieval_hits",
		Help:    "各集合检索命中数",
		Buckets: []float64{0, 1, 2, 5, 10, 20},
	},
	[]string{"collection"}, // Case | PCD | PulsePJ
)

// RetrievalFailTotal 检索阶段失败总数（降级为空结果的次数）
var RetrievalFailTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tcmcbr_retrieval_fail_total",
		Help: "检索阶段失败总数（降级为空结果）",
	},
	[]string{"collection", "reason"}, // embedding | search
)

// LLMDuration LLM 调用耗时（秒）
var LLMDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "tcmcbr_llm_duration_seconds",
		Help:    "LLM 调用耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"provider"},
)

// LLMFailTotal LLM 调用失败总数
var LLMFailTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tcmcbr_llm_fail_total",
		Help: "LLM 调用失败总数",
	},
	[]string{"provider"},
)

// CaseSaveTotal 病历保存流水线结果（按失败阶段；成功为 stage=none）
var CaseSaveTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tcmcbr_case_save_total",
		Help: "病历保存流水线结果（按阶段与状态）",
	},
	[]string{"stage", "status"}, // save | normalize | triage | upload | none; ok | error
)

// ActiveSessions 当前活跃螺旋会话数
var ActiveSessions = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "tcmcbr_active_sessions",
		Help: "当前活跃螺旋会话数",
	},
)

// WritePrometheus 将 Prometheus 文本格式写入 w（供 Hertz /metrics 复用）
func WritePrometheus(w io.Writer) error {
	metrics, err := DefaultRegistry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range metrics {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
