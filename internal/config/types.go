package config

import "oscarflow/pkg/hadron"

// Config: 一次运行的完整配置（文件 / ENV / CLI 合并后的结果）。
// 数值字段使用指针：nil 表示“未设置”，以便 0 也能作为覆盖值参与合并。
type Config struct {
	Format      string   `json:"format" yaml:"format"`
	Inputs      []string `json:"inputs" yaml:"inputs"`
	Output      string   `json:"output" yaml:"output"`
	Concurrency int      `json:"concurrency" yaml:"concurrency" validate:"gte=0,lte=1024"`

	Logging    Logging    `json:"logging" yaml:"logging"`
	Binning    Binning    `json:"binning" yaml:"binning"`
	Cuts       Cuts       `json:"cuts" yaml:"cuts"`
	Components Components `json:"components" yaml:"components"`
	Options    Options    `json:"options" yaml:"options"`

	// Hadrons: 自定义强子登记表；为空使用默认集合。
	Hadrons []hadron.Species `json:"hadrons,omitempty" yaml:"hadrons,omitempty"`
	// MetricsFile: 运行结束时写出 prometheus 文本格式指标；为空不写。
	MetricsFile string `json:"metrics_file,omitempty" yaml:"metrics_file,omitempty"`
}

type Logging struct {
	Level string `json:"level" yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Dir   string `json:"dir" yaml:"dir"`
}

// Binning: 两条轴的分辨率与范围。
type Binning struct {
	RapidityResolution *float64 `json:"rapidity_resolution,omitempty" yaml:"rapidity_resolution,omitempty" validate:"omitempty,gt=0"`
	MaxRapidity        *float64 `json:"max_rapidity,omitempty" yaml:"max_rapidity,omitempty" validate:"omitempty,gte=0"`
	PTResolution       *float64 `json:"pt_resolution,omitempty" yaml:"pt_resolution,omitempty" validate:"omitempty,gt=0"`
	MaxPT              *float64 `json:"max_pt,omitempty" yaml:"max_pt,omitempty" validate:"omitempty,gt=0"`
}

// Cuts: 接受窗口。pt_min/pt_max 作用于快度直方图，rapidity 作用于横动量直方图。
type Cuts struct {
	PTMin    *float64 `json:"pt_min,omitempty" yaml:"pt_min,omitempty" validate:"omitempty,gte=0"`
	PTMax    *float64 `json:"pt_max,omitempty" yaml:"pt_max,omitempty" validate:"omitempty,gt=0"`
	Rapidity *float64 `json:"rapidity,omitempty" yaml:"rapidity,omitempty" validate:"omitempty,gte=0"`
}

type Components struct {
	Reader  string `json:"reader" yaml:"reader"`
	Encoder string `json:"encoder" yaml:"encoder"`
	Writer  string `json:"writer" yaml:"writer"`
}

// Options: 各组件的原样选项子树，由 registry 工厂严格解码。
// 使用通用 map 以便 YAML 与 JSON 两种来源共用同一结构。
type Options struct {
	Reader  map[string]any `json:"reader,omitempty" yaml:"reader,omitempty"`
	Encoder map[string]any `json:"encoder,omitempty" yaml:"encoder,omitempty"`
	Writer  map[string]any `json:"writer,omitempty" yaml:"writer,omitempty"`
}
