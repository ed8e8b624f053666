package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"oscarflow/internal/binning"
	"oscarflow/internal/pipeline"
	"oscarflow/pkg/contract"
	"oscarflow/pkg/hadron"
	"oscarflow/pkg/histo"
	"oscarflow/pkg/oscar"
	"oscarflow/pkg/registry"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate 对合并后的配置做静态校验。
// 未知格式返回 ErrUnknownFormat，其余问题返回 ErrConfig；两者都在打开任何输入前发生。
func Validate(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("%w: %v", contract.ErrConfig, err)
	}
	if registry.Format[cfg.Format] == nil {
		if _, err := oscar.ParseFormat(cfg.Format); err != nil {
			return err
		}
		return fmt.Errorf("%w: %q not registered", contract.ErrUnknownFormat, cfg.Format)
	}
	if len(cfg.Inputs) == 0 {
		return fmt.Errorf("%w: inputs empty", contract.ErrConfig)
	}
	// 输入路径不得为空字符串；"-" 不能与其他根混用
	dash := false
	for _, r := range cfg.Inputs {
		if strings.TrimSpace(r) == "" {
			return fmt.Errorf("%w: input path cannot be empty", contract.ErrConfig)
		}
		if strings.TrimSpace(r) == "-" {
			dash = true
		}
	}
	if dash && len(cfg.Inputs) > 1 {
		return fmt.Errorf("%w: '-' cannot be mixed with other inputs", contract.ErrConfig)
	}
	if strings.TrimSpace(cfg.Output) == "" {
		return fmt.Errorf("%w: output not set", contract.ErrConfig)
	}
	if cfg.Concurrency < 1 {
		return fmt.Errorf("%w: concurrency must be >= 1", contract.ErrConfig)
	}
	if _, _, err := cfg.axes(); err != nil {
		return err
	}
	if _, err := cfg.cuts(); err != nil {
		return err
	}
	if _, err := cfg.hadrons(); err != nil {
		return err
	}
	d := Defaults()
	if name := effName(cfg.Components.Reader, d.Components.Reader); registry.Reader[name] == nil {
		return fmt.Errorf("%w: reader %q not registered (known: %s)", contract.ErrConfig, name, strings.Join(registry.Names(registry.Reader), ", "))
	}
	if name := effName(cfg.Components.Encoder, d.Components.Encoder); registry.Encoder[name] == nil {
		return fmt.Errorf("%w: encoder %q not registered (known: %s)", contract.ErrConfig, name, strings.Join(registry.Names(registry.Encoder), ", "))
	}
	if name := effName(cfg.Components.Writer, d.Components.Writer); registry.Writer[name] == nil {
		return fmt.Errorf("%w: writer %q not registered (known: %s)", contract.ErrConfig, name, strings.Join(registry.Names(registry.Writer), ", "))
	}
	return nil
}

// Assemble 构造 Components 与 Settings。
// 严格 Options 解析在 registry（工厂）层进行；此处只转成原样 JSON。
func Assemble(cfg Config) (pipeline.Components, pipeline.Settings, error) {
	if err := Validate(cfg); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	k, err := cfg.Kernel()
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}

	// 有效名称
	d := Defaults()
	rn := effName(cfg.Components.Reader, d.Components.Reader)
	en := effName(cfg.Components.Encoder, d.Components.Encoder)
	wn := effName(cfg.Components.Writer, d.Components.Writer)

	// 构造实例
	raw, err := rawOptions("reader", cfg.Options.Reader)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	r, err := registry.Reader[rn](raw)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	raw, err = rawOptions("encoder", cfg.Options.Encoder)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	enc, err := registry.Encoder[en](raw)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	raw, err = rawOptions("writer", cfg.Options.Writer)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	w, err := registry.Writer[wn](raw)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}

	comp := pipeline.Components{Reader: r, Encoder: enc, Writer: w}
	set := pipeline.Settings{
		Inputs:      cloneStrings(cfg.Inputs),
		Output:      strings.TrimSpace(cfg.Output),
		Concurrency: cfg.Concurrency,
		Kernel:      k,
	}
	return comp, set, nil
}

// Kernel 构造格式适配器、分箱引擎与强子登记表。
func (c Config) Kernel() (pipeline.Kernel, error) {
	newAdapter := registry.Format[c.Format]
	if newAdapter == nil {
		_, err := oscar.ParseFormat(c.Format)
		if err == nil {
			err = fmt.Errorf("%w: %q not registered", contract.ErrUnknownFormat, c.Format)
		}
		return pipeline.Kernel{}, err
	}
	a, err := newAdapter()
	if err != nil {
		return pipeline.Kernel{}, err
	}
	y, pt, err := c.axes()
	if err != nil {
		return pipeline.Kernel{}, err
	}
	cuts, err := c.cuts()
	if err != nil {
		return pipeline.Kernel{}, err
	}
	eng, err := binning.New(y, pt, cuts)
	if err != nil {
		return pipeline.Kernel{}, fmt.Errorf("%w: %v", contract.ErrConfig, err)
	}
	reg, err := c.hadrons()
	if err != nil {
		return pipeline.Kernel{}, err
	}
	return pipeline.Kernel{Adapter: a, Engine: eng, Hadrons: reg}, nil
}

func (c Config) axes() (histo.Axis, histo.Axis, error) {
	b := c.Binning
	if b.RapidityResolution == nil || b.MaxRapidity == nil || b.PTResolution == nil || b.MaxPT == nil {
		return histo.Axis{}, histo.Axis{}, fmt.Errorf("%w: binning incomplete", contract.ErrConfig)
	}
	y, err := histo.RapidityAxis(*b.RapidityResolution, *b.MaxRapidity)
	if err != nil {
		return histo.Axis{}, histo.Axis{}, fmt.Errorf("%w: %v", contract.ErrConfig, err)
	}
	pt, err := histo.PTAxis(*b.PTResolution, *b.MaxPT)
	if err != nil {
		return histo.Axis{}, histo.Axis{}, fmt.Errorf("%w: %v", contract.ErrConfig, err)
	}
	return y, pt, nil
}

func (c Config) cuts() (binning.Cuts, error) {
	if c.Cuts.PTMin == nil || c.Cuts.PTMax == nil || c.Cuts.Rapidity == nil {
		return binning.Cuts{}, fmt.Errorf("%w: cuts incomplete", contract.ErrConfig)
	}
	cuts := binning.Cuts{PTMin: *c.Cuts.PTMin, PTMax: *c.Cuts.PTMax, Rapidity: *c.Cuts.Rapidity}
	if !(cuts.PTMin < cuts.PTMax) {
		return binning.Cuts{}, fmt.Errorf("%w: pt_min %v must be < pt_max %v", contract.ErrConfig, cuts.PTMin, cuts.PTMax)
	}
	return cuts, nil
}

func (c Config) hadrons() (*hadron.Registry, error) {
	if len(c.Hadrons) == 0 {
		return hadron.Default(), nil
	}
	reg, err := hadron.New(c.Hadrons)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contract.ErrConfig, err)
	}
	return reg, nil
}

// rawOptions 把通用 map 转为工厂接收的原样 JSON；nil 保持为空。
func rawOptions(comp string, m map[string]any) (json.RawMessage, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("%w: options.%s: %v", contract.ErrConfig, comp, err)
	}
	return b, nil
}

func effName(got, def string) string {
	if got == "" {
		return def
	}
	return got
}
