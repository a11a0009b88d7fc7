package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"tcm-cbr/internal/app"
	"tcm-cbr/internal/eval"
	"tcm-cbr/pkg/config"
	pkglog "tcm-cbr/pkg/log"
)

func main() {
	input := flag.String("input", "", "待评估 CSV 路径（需含 Expected 与 PredPattern 列）")
	output := flag.String("output", "", "输出 CSV 路径，默认在输入档名后加 _scored")
	workers := flag.Int("workers", 5, "并发评分 worker 数")
	flag.Parse()

	if *input == "" {
		fmt.Fprintln(os.Stderr, "Usage: evaluator -input results.csv [-output results_scored.csv] [-workers 5]")
		os.Exit(1)
	}
	if *output == "" {
		*output = scoredPath(*input)
	}

	cfg, err := config.LoadModelConfig()
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	logger, err := pkglog.NewLogger(&pkglog.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}

	client, err := app.NewLLMClientFromConfig(cfg)
	if err != nil {
		log.Fatalf("初始化 LLM 客户端失败: %v", err)
	}

	in, err := os.Open(*input)
	if err != nil {
		log.Fatalf("打开输入档失败: %v", err)
	}
	defer in.Close()

	out, err := os.Create(*output)
	if err != nil {
		log.Fatalf("创建输出档失败: %v", err)
	}
	defer out.Close()

	evaluator := eval.NewEvaluator(client, logger, *workers)
	result, err := evaluator.Run(context.Background(), in, out)
	if err != nil {
		log.Fatalf("评估失败: %v", err)
	}

	fmt.Println(summaryLine(result, *output))
}

func summaryLine(result *eval.Result, output string) string {
	return fmt.Sprintf("已评估 %d 笔，平均分 %.4f，结果写入 %s", len(result.Rows), result.Average, output)
}

// scoredPath results.csv -> results_scored.csv
func scoredPath(input string) string {
	ext := ".csv"
	base := input
	if n := len(input) - len(ext); n > 0 && input[n:] == ext {
		base = input[:n]
	}
	return base + "_scored" + ext
}
