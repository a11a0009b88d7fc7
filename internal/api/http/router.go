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
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// Router HTTP 路由器
type Router struct {
	handler     *Handler
	corsOrigins []string
	enableCORS  bool
}

// NewRouter 创建路由器
func NewRouter(handler *Handler) *Router {
	return &Router{handler: handler}
}

// SetCORS 启用 CORS，origins 为空时允许所有来源
func (r *Router) SetCORS(origins []string) {
	r.enableCORS = true
	r.corsOrigins = origins
}

// Build 创建 Hertz server 并注册路由
func (r *Router) Build(addr string, opts ...config.Option) *server.Hertz {
	serverOpts := append([]config.Option{server.WithHostPorts(addr)}, opts...)
	h := server.Default(serverOpts...)

	if r.enableCORS {
		h.Use(r.corsMiddleware())
	}
	r.Register(h)
	return h
}

// Register 注册所有路由
func (r *Router) Register(h *server.Hertz) {
	h.GET("/healthz", r.handler.HealthCheck)
	h.GET("/metrics", r.handler.Metrics)

	api := h.Group("/api")
	{
		api.POST("/case/save", r.handler.SaveCase)
		api.POST("/diagnose", r.handler.Diagnose)
		api.POST("/patient/info", r.handler.PatientInfo)
		api.POST("/query", r.handler.Query)
		api.POST("/session/reset", r.handler.ResetSession)
		api.GET("/sessions", r.handler.Sessions)
		api.GET("/results", r.handler.Results)
	}
}

// corsMiddleware 简单 CORS 处理，预检请求直接放行
func (r *Router) corsMiddleware() app.HandlerFunc {
	allowed := "*"
	if len(r.corsOrigins) > 0 {
		allowed = strings.Join(r.corsOrigins, ", ")
	}
	return func(c context.Context, ctx *app.RequestContext) {
		ctx.Header("Access-Control-Allow-Origin", allowed)
		ctx.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		ctx.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if string(ctx.Method()) == "OPTIONS" {
			ctx.AbortWithStatus(consts.StatusNoContent)
			return
		}
		ctx.Next(c)
	}
}
