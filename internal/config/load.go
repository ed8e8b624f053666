package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"oscarflow/pkg/contract"
	"oscarflow/pkg/hadron"
)

// EnvPrefix 为环境变量覆盖的统一前缀。
const EnvPrefix = "OSCARFLOW_"

// DefaultFiles 为未显式指定配置来源时在工作目录中依次查找的文件。
var DefaultFiles = []string{"oscarflow.yaml", "config.json"}

// Defaults 返回带有默认值的 Config。
func Defaults() Config {
	return Config{
		Format:      "SMASH",
		Output:      "./output.json",
		Concurrency: 1,
		Logging:     Logging{Level: "info"},
		Binning: Binning{
			RapidityResolution: ptr(0.2),
			MaxRapidity:        ptr(5.1),
			PTResolution:       ptr(0.1),
			MaxPT:              ptr(4.0),
		},
		Cuts: Cuts{
			PTMin:    ptr(0.0),
			PTMax:    ptr(1000.0),
			Rapidity: ptr(1000.0),
		},
		Components: Components{
			Reader:  "fs",
			Encoder: "json",
			Writer:  "fs",
		},
	}
}

// Load 从文件路径或原始字节解析 Config（严格拒绝未知字段）。
// path 扩展名为 .yaml/.yml 时按 YAML 解码，否则按 JSON 解码；raw 非空时优先使用 raw。
func Load(path string, raw []byte) (Config, error) {
	var cfg Config
	if len(raw) == 0 {
		if path == "" {
			return cfg, fmt.Errorf("%w: no config source provided", contract.ErrConfig)
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("%w: %v", contract.ErrConfig, err)
		}
		raw = b
	}
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = decodeYAML(raw, &cfg)
	default:
		err = decodeJSON(raw, &cfg)
	}
	if err != nil {
		if path != "" {
			return Config{}, fmt.Errorf("%w: %s: %v", contract.ErrConfig, path, err)
		}
		return Config{}, fmt.Errorf("%w: %v", contract.ErrConfig, err)
	}
	return cfg, nil
}

func decodeJSON(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func decodeYAML(raw []byte, v any) error {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// LoadSources 按优先级选择唯一的配置文件来源：
// flagPath > OSCARFLOW_CONFIG_FILE > OSCARFLOW_CONFIG_JSON > dir 下的 DefaultFiles。
// 无任何来源时返回空 Config 与空 source（不是错误）。
func LoadSources(flagPath string, environ []string, dir string) (Config, string, error) {
	env := envMap(environ)
	if p := strings.TrimSpace(flagPath); p != "" {
		cfg, err := Load(p, nil)
		return cfg, p, err
	}
	if p := strings.TrimSpace(env["CONFIG_FILE"]); p != "" {
		cfg, err := Load(p, nil)
		return cfg, p, err
	}
	if raw := strings.TrimSpace(env["CONFIG_JSON"]); raw != "" {
		cfg, err := Load("", []byte(raw))
		return cfg, EnvPrefix + "CONFIG_JSON", err
	}
	for _, name := range DefaultFiles {
		p := filepath.Join(dir, name)
		info, err := os.Stat(p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return Config{}, p, fmt.Errorf("%w: %v", contract.ErrConfig, err)
		}
		if info.IsDir() {
			continue
		}
		cfg, err := Load(p, nil)
		return cfg, p, err
	}
	return Config{}, "", nil
}

// Merge 按优先级合并（over 覆盖 base）。
// 字符串/列表为空、数值为 0 或 nil 时视为未设置；不做深度合并，Options 子树整体替换。
func Merge(base, over Config) Config {
	out := base
	out.Inputs = cloneStrings(base.Inputs)
	out.Hadrons = cloneSpecies(base.Hadrons)

	if s := strings.TrimSpace(over.Format); s != "" {
		out.Format = s
	}
	if len(over.Inputs) > 0 {
		out.Inputs = cloneStrings(over.Inputs)
	}
	if s := strings.TrimSpace(over.Output); s != "" {
		out.Output = s
	}
	if over.Concurrency != 0 {
		out.Concurrency = over.Concurrency
	}
	if s := strings.TrimSpace(over.Logging.Level); s != "" {
		out.Logging.Level = s
	}
	if s := strings.TrimSpace(over.Logging.Dir); s != "" {
		out.Logging.Dir = s
	}

	mergeFloat(&out.Binning.RapidityResolution, over.Binning.RapidityResolution)
	mergeFloat(&out.Binning.MaxRapidity, over.Binning.MaxRapidity)
	mergeFloat(&out.Binning.PTResolution, over.Binning.PTResolution)
	mergeFloat(&out.Binning.MaxPT, over.Binning.MaxPT)
	mergeFloat(&out.Cuts.PTMin, over.Cuts.PTMin)
	mergeFloat(&out.Cuts.PTMax, over.Cuts.PTMax)
	mergeFloat(&out.Cuts.Rapidity, over.Cuts.Rapidity)

	// 组件名（空不覆盖）
	if over.Components.Reader != "" {
		out.Components.Reader = over.Components.Reader
	}
	if over.Components.Encoder != "" {
		out.Components.Encoder = over.Components.Encoder
	}
	if over.Components.Writer != "" {
		out.Components.Writer = over.Components.Writer
	}

	// Options（完整替换对应键）
	if len(over.Options.Reader) > 0 {
		out.Options.Reader = over.Options.Reader
	}
	if len(over.Options.Encoder) > 0 {
		out.Options.Encoder = over.Options.Encoder
	}
	if len(over.Options.Writer) > 0 {
		out.Options.Writer = over.Options.Writer
	}

	if len(over.Hadrons) > 0 {
		out.Hadrons = cloneSpecies(over.Hadrons)
	}
	if s := strings.TrimSpace(over.MetricsFile); s != "" {
		out.MetricsFile = s
	}
	return out
}

// EnvOverlay 从环境变量构建一个 Config 覆盖（仅解析有限键集合）。
// 前缀 OSCARFLOW_；集合之外的键忽略。数值非法时返回 ErrConfig，不静默吞掉。
// 支持：FORMAT, INPUTS, OUTPUT, CONCURRENCY, LOG_LEVEL, LOG_DIR, ENCODER, METRICS_FILE,
// DY, MAX_RAPIDITY, DPT, MAX_PT, PT_MIN, PT_MAX, RAPIDITY_CUT。
// CONFIG_FILE 与 CONFIG_JSON 由 LoadSources 处理。
func EnvOverlay(environ []string) (Config, error) {
	var over Config
	floats := map[string]**float64{
		"DY":           &over.Binning.RapidityResolution,
		"MAX_RAPIDITY": &over.Binning.MaxRapidity,
		"DPT":          &over.Binning.PTResolution,
		"MAX_PT":       &over.Binning.MaxPT,
		"PT_MIN":       &over.Cuts.PTMin,
		"PT_MAX":       &over.Cuts.PTMax,
		"RAPIDITY_CUT": &over.Cuts.Rapidity,
	}
	for key, val := range envMap(environ) {
		val = strings.TrimSpace(val)
		if val == "" {
			continue
		}
		switch key {
		case "FORMAT":
			over.Format = val
		case "INPUTS":
			over.Inputs = splitComma(val)
		case "OUTPUT":
			over.Output = val
		case "CONCURRENCY":
			v, err := atoi(val)
			if err != nil {
				return Config{}, fmt.Errorf("%w: %sCONCURRENCY: %v", contract.ErrConfig, EnvPrefix, err)
			}
			over.Concurrency = v
		case "LOG_LEVEL":
			over.Logging.Level = val
		case "LOG_DIR":
			over.Logging.Dir = val
		case "ENCODER":
			over.Components.Encoder = val
		case "METRICS_FILE":
			over.MetricsFile = val
		default:
			dst, ok := floats[key]
			if !ok {
				continue
			}
			f, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return Config{}, fmt.Errorf("%w: %s%s: %v", contract.ErrConfig, EnvPrefix, key, err)
			}
			*dst = ptr(f)
		}
	}
	return over, nil
}

// envMap 去掉前缀后返回键值；同名键后者覆盖前者。
func envMap(environ []string) map[string]string {
	m := map[string]string{}
	for _, kv := range environ {
		if !strings.HasPrefix(kv, EnvPrefix) {
			continue
		}
		eq := strings.IndexByte(kv, '=')
		if eq <= len(EnvPrefix) {
			continue
		}
		m[kv[len(EnvPrefix):eq]] = kv[eq+1:]
	}
	return m
}

func mergeFloat(dst **float64, over *float64) {
	if over != nil {
		*dst = ptr(*over)
	}
}

func ptr(f float64) *float64 { return &f }

func cloneStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneSpecies(in []hadron.Species) []hadron.Species {
	if len(in) == 0 {
		return nil
	}
	out := make([]hadron.Species, len(in))
	copy(out, in)
	return out
}

func splitComma(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func atoi(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}
