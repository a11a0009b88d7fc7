// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package http

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	svc "tcm-cbr/internal/app"
	"tcm-cbr/pkg/log"
	"tcm-cbr/pkg/metrics"
)

// Handler HTTP 处理器
type Handler struct {
	service *svc.Service
	logger  *log.Logger
}

// NewHandler 创建 HTTP 处理器
func NewHandler(service *svc.Service, logger *log.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(_ context.Context, ctx *app.RequestContext) {
	ctx.JSON(consts.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
		"service":   "tcm-cbr",
	})
}

// SaveCase 保存病历：保存 → 去识别化 → 初诊 → 上传。
// 阶段失败返回 500，已产生的标识随响应返回
func (h *Handler) SaveCase(c context.Context, ctx *app.RequestContext) {
	defer h.observe("save", time.Now(), ctx)

	var data map[string]any
	if err := json.Unmarshal(ctx.Request.Body(), &data); err != nil {
		ctx.JSON(consts.StatusBadRequest, map[string]any{"error": "病歷 JSON 格式錯誤"})
		return
	}

	result := h.service.SaveCase(c, data)
	if !result.OK {
		ctx.JSON(consts.StatusInternalServerError, result)
		return
	}
	ctx.JSON(consts.StatusOK, result)
}

// Diagnose 对已保存病历执行诊断
func (h *Handler) Diagnose(c context.Context, ctx *app.RequestContext) {
	defer h.observe("diagnose", time.Now(), ctx)

	var req struct {
		File string `json:"file"`
	}
	if err := json.Unmarshal(ctx.Request.Body(), &req); err != nil || req.File == "" {
		ctx.JSON(consts.StatusBadRequest, map[string]any{"error": "缺少 file 參數"})
		return
	}

	result, err := h.service.Diagnose(c, req.File)
	if err != nil {
		h.logger.Error("診斷失敗", "file", req.File, "error", err)
		ctx.JSON(consts.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	ctx.JSON(consts.StatusOK, map[string]any{"status": "ok", "result": result})
}

// PatientInfo 按个案身分查询历史病历
func (h *Handler) PatientInfo(c context.Context, ctx *app.RequestContext) {
	defer h.observe("patient_info", time.Now(), ctx)

	var req struct {
		ID   string `json:"id"`
		TopN int    `json:"top_n"`
	}
	if err := json.Unmarshal(ctx.Request.Body(), &req); err != nil || req.ID == "" {
		ctx.JSON(consts.StatusBadRequest, map[string]any{"error": "缺少 id 參數"})
		return
	}

	hits := h.service.PatientInfo(c, req.ID, req.TopN)
	ctx.JSON(consts.StatusOK, map[string]any{
		"id":      req.ID,
		"found":   len(hits) > 0,
		"records": hits,
		"count":   len(hits),
	})
}

// Query 螺旋查询：匿名或个人化自动路由
func (h *Handler) Query(c context.Context, ctx *app.RequestContext) {
	defer h.observe("query", time.Now(), ctx)

	var req svc.QueryRequest
	if err := json.Unmarshal(ctx.Request.Body(), &req); err != nil || req.Question == "" {
		ctx.JSON(consts.StatusBadRequest, map[string]any{"error": "缺少 query 參數"})
		return
	}

	resp := h.service.Query(c, req)
	ctx.JSON(consts.StatusOK, resp)
}

// Sessions 列出所有活跃会话
func (h *Handler) Sessions(_ context.Context, ctx *app.RequestContext) {
	infos := h.service.Sessions()
	ctx.JSON(consts.StatusOK, map[string]any{"sessions": infos, "count": len(infos)})
}

// ResetSession 重置会话；不传 session_id 时重置全部
func (h *Handler) ResetSession(_ context.Context, ctx *app.RequestContext) {
	var req struct {
		SessionID string `json:"session_id"`
	}
	// body 可为空，表示重置全部
	_ = json.Unmarshal(ctx.Request.Body(), &req)

	count := h.service.ResetSession(req.SessionID)
	ctx.JSON(consts.StatusOK, map[string]any{"status": "ok", "reset": count})
}

// Results 列出所有诊断摘要档
func (h *Handler) Results(_ context.Context, ctx *app.RequestContext) {
	files, err := h.service.Results()
	if err != nil {
		h.logger.Error("讀取結果清單失敗", "error", err)
		ctx.JSON(consts.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	ctx.JSON(consts.StatusOK, map[string]any{"files": files, "count": len(files)})
}

// Metrics Prometheus 指标导出
func (h *Handler) Metrics(_ context.Context, ctx *app.RequestContext) {
	var buf []byte
	w := &byteWriter{buf: &buf}
	if err := metrics.WritePrometheus(w); err != nil {
		ctx.JSON(consts.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	ctx.Data(consts.StatusOK, "text/plain; version=0.0.4; charset=utf-8", buf)
}

type byteWriter struct {
	buf *[]byte
}

func (w *byteWriter) Write(p []byte) (int, error) {
	*w.buf = append(*w.buf, p...)
	return len(p), nil
}

// observe 请求计数与时延指标
func (h *Handler) observe(route string, start time.Time, ctx *app.RequestContext) {
	status := "ok"
	if ctx.Response.StatusCode() >= 400 {
		status = "error"
	}
	metrics.QueryTotal.WithLabelValues(route, status).Inc()
	metrics.QueryDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
}
